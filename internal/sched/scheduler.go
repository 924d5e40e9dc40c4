// Package sched drives the per-source polling state machine.
//
// Each active source owns exactly one job in an explicit job table, keyed
// by an id derived from the source's (name, URL) identity. A single
// scheduling loop ticks once a second, collects due jobs, and hands them
// to a bounded worker pool; the pool size is independent of the source
// count, so registering thousands of sources cannot exhaust goroutines.
//
// Two guarantees are explicit in the job table rather than delegated to a
// timer library: a source never has two polls in flight at once, and a
// firing that would overlap an in-flight poll is coalesced (dropped, with
// the next fire re-armed), never queued.
package sched

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jfarrow/feedpoll/internal/dedup"
	"github.com/jfarrow/feedpoll/internal/feed"
	"github.com/jfarrow/feedpoll/internal/policy"
)

// Defaults for [Config] fields left zero.
const (
	DefaultWorkers      = 10
	DefaultBatchSize    = 50
	DefaultBatchPause   = 100 * time.Millisecond
	DefaultTick         = time.Second
	DefaultMisfireGrace = 60 * time.Second
	DefaultShutdownWait = 30 * time.Second
)

// resultBuffer bounds the observational result stream. A stalled consumer
// drops results rather than blocking poll workers.
const resultBuffer = 128

// Source is the scheduler-internal description of one source to poll.
//
// This is decoupled from both the SDK's public Source and the registry
// record so the scheduler does not depend on where a source came from.
type Source struct {
	Name       string
	URL        string
	Interval   time.Duration
	Priority   feed.Priority
	ErrorCount int
	Validators feed.Validators
}

// StatusUpdate is a partial per-source status written back after a poll.
// Nil fields are not updated.
type StatusUpdate struct {
	Interval     *time.Duration
	ErrorCount   *int
	LastSuccess  *time.Time
	LastError    *time.Time
	ETag         *string
	LastModified *string
}

// StatusUpdater receives per-source status after each poll. Implementations
// must tolerate unknown names (sources registered outside the registry).
type StatusUpdater interface {
	UpdateStatus(name string, st StatusUpdate)
}

// Deps are the collaborators a [Scheduler] drives. Reader, Sink, and
// Dedup are required; Store, Updater, and Rule are optional (a nil Rule
// accepts everything).
type Deps struct {
	Reader  feed.Reader
	Sink    feed.Sink
	Store   feed.Store
	Rule    feed.Rule
	Dedup   *dedup.Index
	Updater StatusUpdater
	Logger  *slog.Logger
}

// Config tunes the scheduling machinery. Zero fields take the package
// defaults.
type Config struct {
	// Workers is the size of the poll worker pool.
	Workers int

	// BatchSize and BatchPause throttle startup registration so a large
	// source list does not hit the job table as one storm.
	BatchSize  int
	BatchPause time.Duration

	// Tick is the scheduling loop's resolution.
	Tick time.Duration

	// MisfireGrace is how far past its fire time a job may be picked up
	// before the delay is logged as a misfire. The run is still coalesced
	// to a single firing.
	MisfireGrace time.Duration

	// ShutdownWait bounds how long Shutdown waits for in-flight polls.
	ShutdownWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchPause <= 0 {
		c.BatchPause = DefaultBatchPause
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = DefaultMisfireGrace
	}
	if c.ShutdownWait <= 0 {
		c.ShutdownWait = DefaultShutdownWait
	}
	return c
}

// job is one row of the job table.
type job struct {
	id         string
	name       string
	url        string
	interval   time.Duration
	priority   feed.Priority
	errorCount int
	validators feed.Validators
	nextFire   time.Time
	inFlight   bool
}

// Scheduler owns the job table and the polling loop.
//
// All lifecycle methods (Start, Shutdown) are safe for concurrent use, as
// are the registration and accessor methods.
type Scheduler struct {
	reader  feed.Reader
	sink    feed.Sink
	store   feed.Store
	rule    feed.Rule
	dedup   *dedup.Index
	updater StatusUpdater
	logger  *slog.Logger
	cfg     Config

	results chan feed.PollResult

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	stopped bool

	loopCtx    context.Context
	loopCancel context.CancelFunc
	pollCtx    context.Context
	pollCancel context.CancelFunc
	wg         sync.WaitGroup
	workCh     chan *job
	closeOnce  sync.Once
}

// New creates a [Scheduler]. It does not fire until [Scheduler.Start].
func New(deps Deps, cfg Config) (*Scheduler, error) {
	if deps.Reader == nil {
		return nil, errors.New("sched: reader is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("sched: sink is required")
	}
	if deps.Dedup == nil {
		return nil, errors.New("sched: dedup index is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rule := deps.Rule
	if rule == nil {
		rule = func(feed.Entry) error { return nil }
	}

	return &Scheduler{
		pollCtx: context.Background(),
		reader:  deps.Reader,
		sink:    deps.Sink,
		store:   deps.Store,
		rule:    rule,
		dedup:   deps.Dedup,
		updater: deps.Updater,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		results: make(chan feed.PollResult, resultBuffer),
		jobs:    make(map[string]*job),
		workCh:  make(chan *job, resultBuffer),
	}, nil
}

// jobID derives the collision-resistant job id for a source identity.
// Hashing the URL into the id means a renamed source or a changed URL
// yields a fresh job instead of colliding with the old one.
func jobID(name, url string) string {
	sum := sha256.Sum256([]byte(url))
	return name + "_" + hex.EncodeToString(sum[:4])
}

// Register adds or replaces the job for one source.
//
// Idempotent: a pre-existing job with the same derived id is removed
// before the new one is added, so re-registering a source resets its
// timer rather than duplicating it. A zero interval takes the default;
// all intervals are clamped to the policy bounds.
//
// Returns an error for a source missing its name or URL; the caller
// decides whether that aborts anything (batch registration does not).
func (s *Scheduler) Register(src Source) error {
	if src.Name == "" {
		return errors.New("source has no name")
	}
	if src.URL == "" {
		return errors.New("source has no url")
	}

	interval := src.Interval
	if interval <= 0 {
		interval = policy.DefaultInterval
	}
	interval = policy.Clamp(interval)

	id := jobID(src.Name, src.URL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		s.logger.Debug("replacing existing job", "source", src.Name, "job_id", id)
	}
	s.jobs[id] = &job{
		id:         id,
		name:       src.Name,
		url:        src.URL,
		interval:   interval,
		priority:   src.Priority,
		errorCount: src.ErrorCount,
		validators: src.Validators,
		// first fire soon after registration, staggered so a batch of
		// sources does not hit the network in lockstep
		nextFire: time.Now().Add(policy.Jitter()),
	}
	return nil
}

// RegisterAll registers sources in bounded batches with a small pause
// between batches, so startup with a large source list does not hammer
// the job table and the first fetch wave all at once.
//
// One bad source never aborts the batch: registration failures are logged
// and skipped. Returns the number of jobs actually registered.
func (s *Scheduler) RegisterAll(sources []Source) int {
	registered := 0
	for i := 0; i < len(sources); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(sources) {
			end = len(sources)
		}
		for _, src := range sources[i:end] {
			if err := s.Register(src); err != nil {
				s.logger.Error("failed to register source", "source", src.Name, "url", src.URL, "error", err)
				continue
			}
			registered++
		}
		s.logger.Debug("registered batch", "from", i+1, "to", end, "total", len(sources))
		if end < len(sources) {
			time.Sleep(s.cfg.BatchPause)
		}
	}
	return registered
}

// Remove deletes the job for a source identity, returning whether a job
// existed. An in-flight poll for the removed source finishes normally;
// its results are simply no longer rescheduled.
func (s *Scheduler) Remove(name, url string) bool {
	id := jobID(name, url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// Start registers the given sources and begins firing.
//
// Start is non-blocking once registration completes. It is idempotent;
// calls after the first (or after Shutdown) are no-ops.
func (s *Scheduler) Start(ctx context.Context, sources []Source) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.loopCtx, s.loopCancel = context.WithCancel(ctx)
	// polls get their own context so shutdown can stop new firings
	// immediately while letting in-flight network calls run to their own
	// timeout instead of being killed mid-request
	s.pollCtx, s.pollCancel = context.WithCancel(context.Background())
	loopCtx := s.loopCtx
	s.mu.Unlock()

	registered := s.RegisterAll(sources)
	s.logger.Info("scheduler starting", "jobs", registered, "workers", s.cfg.Workers)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(loopCtx)
	}

	s.wg.Add(1)
	go s.loop(loopCtx)
}

// loop is the single scheduling goroutine: it ticks, collects due jobs,
// and dispatches them to the worker pool.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx, time.Now())
		}
	}
}

// dispatchDue finds jobs whose fire time has passed and hands them to the
// workers, highest priority first.
func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	var due []*job

	s.mu.Lock()
	for _, j := range s.jobs {
		if now.Before(j.nextFire) {
			continue
		}
		if j.inFlight {
			// the previous poll is still running; drop this firing and
			// re-arm rather than queueing a backlog behind a slow source
			j.nextFire = now.Add(j.interval + policy.Jitter())
			s.logger.Debug("firing coalesced, poll still in flight", "source", j.name)
			continue
		}
		if overdue := now.Sub(j.nextFire); overdue > s.cfg.MisfireGrace {
			s.logger.Warn("job misfired", "source", j.name, "overdue", overdue)
		}
		j.inFlight = true
		// tentative next fire; the poll outcome may re-arm it
		j.nextFire = now.Add(j.interval + policy.Jitter())
		due = append(due, j)
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	sort.SliceStable(due, func(i, k int) bool {
		return due[i].priority.Weight() < due[k].priority.Weight()
	})

	for _, j := range due {
		select {
		case s.workCh <- j:
		case <-ctx.Done():
			s.mu.Lock()
			j.inFlight = false
			s.mu.Unlock()
			return
		}
	}
}

// worker executes polls until the scheduling context is cancelled.
func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.workCh:
			s.pollOnce(j)
		}
	}
}

// pollOnce runs one poll of one source: fetch, dedup, validate, persist,
// publish, then apply the interval policy. Any panic inside the poll is
// caught at this boundary and converted into the failure path for this
// source only; it can never take down the scheduler or other sources'
// jobs.
func (s *Scheduler) pollOnce(j *job) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("poll panicked",
				"source", j.name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			s.handleFailure(j, fmt.Errorf("poll panic (correlation_id: %s)", correlationID), start)
		}

		s.mu.Lock()
		j.inFlight = false
		s.mu.Unlock()

		s.logger.Debug("poll completed", "source", j.name, "elapsed", time.Since(start))
	}()

	s.mu.Lock()
	cached := j.validators
	s.mu.Unlock()

	result, err := s.reader.Fetch(s.pollCtx, j.url, cached)
	switch {
	case err != nil:
		s.handleFailure(j, err, start)
	case result.NotModified:
		s.handleNotModified(j, start)
	default:
		s.handleSuccess(j, result, start)
	}
}

// handleSuccess processes a fetched document: entries flow through the
// dedup index, then the validation rule; survivors are persisted and
// published. The entry count handed to the interval policy is the count
// of accepted entries, not raw fetched entries.
func (s *Scheduler) handleSuccess(j *job, fetched feed.FetchResult, start time.Time) {
	now := time.Now()

	var accepted []feed.Entry
	duplicates, rejected := 0, 0

	for _, e := range fetched.Entries {
		e.Source = j.name
		if e.Link == "" {
			rejected++
			s.deadLetter(e, "missing link")
			continue
		}
		if s.dedup.Seen(dedup.Key(e.Link)) {
			duplicates++
			continue
		}
		if err := s.rule(e); err != nil {
			rejected++
			s.deadLetter(e, err.Error())
			continue
		}
		accepted = append(accepted, e)
	}

	if s.store != nil && len(accepted) > 0 {
		if _, err := s.store.Append(s.pollCtx, accepted); err != nil {
			// storage trouble is not a fetch failure; the items are still
			// published and the source stays on the success path
			s.logger.Error("failed to persist items", "source", j.name, "error", err)
		}
	}

	for _, e := range accepted {
		if err := s.sink.Publish(s.pollCtx, e); err != nil {
			s.logger.Error("failed to publish item", "source", j.name, "link", e.Link, "error", err)
		}
	}

	s.mu.Lock()
	j.errorCount = 0
	j.validators = fetched.Validators
	current := j.interval
	proposed := policy.OnSuccess(current, len(accepted), fetched.FeedUpdated, now)
	if policy.ShouldReschedule(current, proposed) {
		j.interval = proposed
		j.nextFire = now.Add(proposed + policy.Jitter())
		s.logger.Info("interval adjusted", "source", j.name, "from", current, "to", proposed, "accepted", len(accepted))
	}
	interval := j.interval
	s.mu.Unlock()

	if s.updater != nil {
		zero := 0
		s.updater.UpdateStatus(j.name, StatusUpdate{
			Interval:     &interval,
			ErrorCount:   &zero,
			LastSuccess:  &now,
			ETag:         &fetched.Validators.ETag,
			LastModified: &fetched.Validators.LastModified,
		})
	}

	s.emit(feed.PollResult{
		SourceName: j.name,
		URL:        j.url,
		Outcome:    feed.OutcomeSuccess,
		Fetched:    len(fetched.Entries),
		Duplicates: duplicates,
		Rejected:   rejected,
		Accepted:   len(accepted),
		Interval:   interval,
		Elapsed:    time.Since(start),
		CheckedAt:  now,
	})
}

// handleNotModified records a 304: not an error, and no state change
// beyond keeping the validators we already hold.
func (s *Scheduler) handleNotModified(j *job, start time.Time) {
	now := time.Now()

	s.mu.Lock()
	interval := j.interval
	errorCount := j.errorCount
	s.mu.Unlock()

	s.emit(feed.PollResult{
		SourceName: j.name,
		URL:        j.url,
		Outcome:    feed.OutcomeNotModified,
		Interval:   interval,
		ErrorCount: errorCount,
		Elapsed:    time.Since(start),
		CheckedAt:  now,
	})
}

// handleFailure applies the backoff path: the consecutive-failure counter
// increments and the job is always rescheduled to the backoff delay - no
// hysteresis gate, every consecutive failure pushes the interval out until
// the cap.
func (s *Scheduler) handleFailure(j *job, err error, start time.Time) {
	now := time.Now()

	s.mu.Lock()
	j.errorCount++
	errorCount := j.errorCount
	backoff := policy.OnFailure(errorCount)
	j.interval = backoff
	j.nextFire = now.Add(backoff)
	s.mu.Unlock()

	s.logger.Warn("poll failed, backing off",
		"source", j.name,
		"error", err,
		"error_count", errorCount,
		"backoff", backoff,
	)

	if s.updater != nil {
		s.updater.UpdateStatus(j.name, StatusUpdate{
			ErrorCount: &errorCount,
			LastError:  &now,
		})
	}

	s.emit(feed.PollResult{
		SourceName: j.name,
		URL:        j.url,
		Outcome:    feed.OutcomeFailure,
		Interval:   backoff,
		ErrorCount: errorCount,
		Elapsed:    time.Since(start),
		CheckedAt:  now,
		Error:      err,
	})
}

// deadLetter forwards a rejected entry, absorbing sink errors - a broken
// dead-letter channel must not fail the poll.
func (s *Scheduler) deadLetter(e feed.Entry, reason string) {
	if err := s.sink.DeadLetter(s.pollCtx, e, reason); err != nil {
		s.logger.Error("failed to dead-letter item", "source", e.Source, "link", e.Link, "error", err)
	}
}

// emit publishes a result to the observational stream, dropping it if the
// consumer has stalled.
func (s *Scheduler) emit(r feed.PollResult) {
	select {
	case s.results <- r:
	default:
		s.logger.Debug("result dropped, consumer stalled", "source", r.SourceName)
	}
}

// RescheduleIfNeeded re-arms the live job for a source identity with a
// new interval, subject to the policy hysteresis. A lookup miss (the job
// was removed concurrently) is logged, not fatal.
func (s *Scheduler) RescheduleIfNeeded(name, url string, newInterval time.Duration) {
	id := jobID(name, url)
	newInterval = policy.Clamp(newInterval)

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("cannot reschedule, job not found", "source", name)
		return
	}
	if !policy.ShouldReschedule(j.interval, newInterval) {
		s.mu.Unlock()
		return
	}
	old := j.interval
	j.interval = newInterval
	j.nextFire = time.Now().Add(newInterval + policy.Jitter())
	s.mu.Unlock()

	s.logger.Info("job rescheduled", "source", name, "from", old, "to", newInterval)
}

// Results returns the receive-only stream of poll results. The channel is
// closed when the scheduler shuts down.
func (s *Scheduler) Results() <-chan feed.PollResult {
	return s.results
}

// JobCount returns the number of registered jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// NextFireTimes returns each source's next scheduled fire time, keyed by
// source name.
func (s *Scheduler) NextFireTimes() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := make(map[string]time.Time, len(s.jobs))
	for _, j := range s.jobs {
		times[j.name] = j.nextFire
	}
	return times
}

// Shutdown stops firing new polls, waits up to the configured bound for
// in-flight polls to finish, then releases the reader and sink.
//
// Idempotent: a second call is a no-op. Calling Shutdown before Start is
// a safe no-op apart from closing the results channel.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	loopCancel := s.loopCancel
	pollCancel := s.pollCancel
	s.mu.Unlock()

	if loopCancel != nil {
		loopCancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownWait):
		s.logger.Warn("shutdown wait elapsed, cancelling in-flight polls", "wait", s.cfg.ShutdownWait)
		if pollCancel != nil {
			pollCancel()
		}
		<-done
	}
	if pollCancel != nil {
		pollCancel()
	}

	s.reader.Close()
	if err := s.sink.Close(); err != nil {
		s.logger.Error("error closing sink", "error", err)
	}

	s.closeOnce.Do(func() { close(s.results) })
	s.logger.Info("scheduler stopped")
}
