package feedpoll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jfarrow/feedpoll/internal/activity"
	"github.com/jfarrow/feedpoll/internal/dedup"
	"github.com/jfarrow/feedpoll/internal/fetch"
	"github.com/jfarrow/feedpoll/internal/registry"
	"github.com/jfarrow/feedpoll/internal/sched"
	"github.com/jfarrow/feedpoll/internal/server"
	"github.com/jfarrow/feedpoll/internal/sink"
	"github.com/jfarrow/feedpoll/internal/status"
)

const (
	defaultWorkers = 10
	defaultPort    = 8080

	// registryRefresh is how often the feeds file is re-checked for added
	// or removed sources while running. Cheap when the file is unchanged;
	// the registry caches against the file's mtime.
	registryRefresh = time.Minute
)

// Poller is the main orchestrator: it polls feed sources on adaptive
// per-source intervals, deduplicates and validates their entries,
// publishes accepted items to the sink, and serves the operational HTTP
// endpoints.
//
// Poller is created with [New] using functional options and run with
// [Poller.Start], which blocks until the context is cancelled:
//
//	p, err := feedpoll.New(feedpoll.WithFeedsFile("feeds.json"))
//	if err != nil {
//	    slog.Error("failed to create poller", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	p.Start(ctx) // blocks until context cancelled
type Poller struct {
	feedsFile    string
	sources      []Source
	reader       Reader
	sink         Sink
	store        Store
	rule         Rule
	workers      int
	port         int
	timeout      time.Duration
	rateLimit    time.Duration
	rateLimitSet bool
	logger       *slog.Logger
	callbacks    []func(PollResult)
}

// New creates a [Poller] with the given options.
//
// At least one source must be available, either programmatically via
// [WithSource] / [WithSources] or from a feeds file via [WithFeedsFile].
// Everything else has defaults: an HTTP reader with conditional-GET
// support, a logging sink, no persistence, [DefaultRules] validation,
// 10 workers, and port 8080.
func New(opts ...Option) (*Poller, error) {
	cfg := &pollerConfig{
		workers: defaultWorkers,
		port:    defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.feedsFile == "" && len(cfg.sources) == 0 {
		return nil, errors.New("at least one source or a feeds file is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	rule := cfg.rule
	if rule == nil {
		rule = DefaultRules
	}

	return &Poller{
		feedsFile:    cfg.feedsFile,
		sources:      cfg.sources,
		reader:       cfg.reader,
		sink:         cfg.sink,
		store:        cfg.store,
		rule:         rule,
		workers:      cfg.workers,
		port:         cfg.port,
		timeout:      cfg.timeout,
		rateLimit:    cfg.rateLimit,
		rateLimitSet: cfg.rateLimitSet,
		logger:       logger,
		callbacks:    cfg.callbacks,
	}, nil
}

// Port returns the configured operational HTTP port.
func (p *Poller) Port() int {
	return p.port
}

// Start runs the poller until the context is cancelled.
//
// On startup the feeds file (if configured) is loaded, all active sources
// are registered in batches, the scheduler begins firing, and the
// operational server starts. On context cancellation the scheduler stops
// firing, in-flight polls are given a bounded grace period, and the
// reader and sink are released.
//
// Returns nil on graceful shutdown. Returns an error if the operational
// server fails to bind.
func (p *Poller) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	reader := p.reader
	if reader == nil {
		var fetchOpts []fetch.Option
		if p.timeout > 0 {
			fetchOpts = append(fetchOpts, fetch.WithTimeout(p.timeout))
		}
		if p.rateLimitSet {
			fetchOpts = append(fetchOpts, fetch.WithRateLimit(p.rateLimit))
		}
		reader = fetch.New(fetchOpts...)
	}

	pollSink := p.sink
	if pollSink == nil {
		pollSink = sink.NewLog(p.logger)
	}

	var reg *registry.Registry
	var updater sched.StatusUpdater
	if p.feedsFile != "" {
		reg = registry.New(p.feedsFile, p.logger)
		updater = registryUpdater{reg: reg}
	}

	scheduler, err := sched.New(sched.Deps{
		Reader:  reader,
		Sink:    pollSink,
		Store:   p.store,
		Rule:    p.rule,
		Dedup:   dedup.NewIndex(),
		Updater: updater,
		Logger:  p.logger,
	}, sched.Config{Workers: p.workers})
	if err != nil {
		return err
	}

	act := activity.NewLog()
	board := status.NewBoard()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.consumeResults(scheduler.Results(), act, board)
	}()

	cleanup := func() {
		scheduler.Shutdown() // closes the results channel
		wg.Wait()            // wait for all results to be processed
	}

	httpServer := server.New(act, board, scheduler, p.port, p.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return err
	}

	known := p.collectSources(reg)
	p.logger.Info("feedpoll starting",
		"sources", len(known.list),
		"workers", p.workers,
		"port", p.port,
	)

	scheduler.Start(ctx, known.list)

	if reg != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.watchRegistry(ctx, reg, scheduler, known)
		}()
	}

	<-ctx.Done()
	cleanup()
	p.logger.Info("feedpoll stopped")
	return nil
}

// consumeResults drains the scheduler's result stream into the read
// models and the registered callbacks.
func (p *Poller) consumeResults(results <-chan PollResult, act *activity.Log, board *status.Board) {
	for r := range results {
		// read models update first; callbacks observe consistent state
		board.Update(r)
		switch r.Outcome {
		case OutcomeFailure:
			act.RecordFailure(r.CheckedAt)
		default:
			act.RecordSuccess(r.CheckedAt)
		}
		act.RecordItems(r.Accepted, r.Rejected, r.Duplicates)

		for _, cb := range p.callbacks {
			invokeCallbackSafe(cb, r, p.logger)
		}

		logAttrs := []any{
			"outcome", r.Outcome,
			"source", r.SourceName,
			"accepted", r.Accepted,
			"interval", r.Interval,
			"elapsed_ms", r.Elapsed.Milliseconds(),
		}
		if r.Error != nil {
			p.logger.Warn("poll completed with error", append(logAttrs, "error", r.Error.Error())...)
		} else {
			p.logger.Debug("poll completed", logAttrs...)
		}
	}
}

// sourceSet is the combined registration list plus the identity set used
// to diff registry reloads against the live job table.
type sourceSet struct {
	list []sched.Source
	ids  map[string]registryIdentity
}

type registryIdentity struct {
	name string
	url  string
}

func identityKey(name, url string) string {
	return name + "\x00" + url
}

// collectSources merges programmatic sources with the registry's active
// records. Inactive programmatic sources are skipped, matching the
// registry's active filter.
func (p *Poller) collectSources(reg *registry.Registry) *sourceSet {
	set := &sourceSet{ids: make(map[string]registryIdentity)}

	for _, s := range p.sources {
		if !s.Active() {
			continue
		}
		set.list = append(set.list, sched.Source{
			Name:     s.Name(),
			URL:      s.URL(),
			Interval: s.Interval(),
			Priority: s.Priority(),
		})
	}

	if reg != nil {
		for _, rs := range reg.Active() {
			set.list = append(set.list, registrySource(rs))
			set.ids[identityKey(rs.Name, rs.URL)] = registryIdentity{name: rs.Name, url: rs.URL}
		}
	}
	return set
}

// watchRegistry keeps the job table in sync with the feeds file: sources
// added to the file gain jobs, and sources removed or deactivated lose
// theirs. Live jobs for unchanged identities are left alone so their
// adaptive intervals are not reset.
func (p *Poller) watchRegistry(ctx context.Context, reg *registry.Registry, scheduler *sched.Scheduler, known *sourceSet) {
	ticker := time.NewTicker(registryRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := make(map[string]registry.Source)
			for _, rs := range reg.Active() {
				current[identityKey(rs.Name, rs.URL)] = rs
			}

			for key, rs := range current {
				if _, ok := known.ids[key]; ok {
					continue
				}
				if err := scheduler.Register(registrySource(rs)); err != nil {
					p.logger.Error("failed to register source", "source", rs.Name, "error", err)
					continue
				}
				known.ids[key] = registryIdentity{name: rs.Name, url: rs.URL}
				p.logger.Info("source added", "source", rs.Name, "url", rs.URL)
			}

			for key, id := range known.ids {
				if _, ok := current[key]; ok {
					continue
				}
				scheduler.Remove(id.name, id.url)
				delete(known.ids, key)
				p.logger.Info("source removed", "source", id.name)
			}
		}
	}
}

// registrySource converts a registry record to the scheduler's source
// shape, carrying forward persisted state so a restart resumes where the
// last run left off.
func registrySource(rs registry.Source) sched.Source {
	return sched.Source{
		Name:       rs.Name,
		URL:        rs.URL,
		Interval:   rs.Interval,
		Priority:   rs.Priority,
		ErrorCount: rs.ErrorCount,
		Validators: Validators{ETag: rs.ETag, LastModified: rs.LastModified},
	}
}

// registryUpdater adapts the registry's partial-update API to the
// scheduler's status contract.
type registryUpdater struct {
	reg *registry.Registry
}

func (u registryUpdater) UpdateStatus(name string, st sched.StatusUpdate) {
	u.reg.Update(name, registry.Status{
		Interval:     st.Interval,
		ErrorCount:   st.ErrorCount,
		LastSuccess:  st.LastSuccess,
		LastError:    st.LastError,
		ETag:         st.ETag,
		LastModified: st.LastModified,
	})
}

// invokeCallbackSafe calls a poll callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(PollResult), result PollResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("poll callback panicked",
				"panic", r,
				"source", result.SourceName,
			)
		}
	}()
	cb(result)
}
