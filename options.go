package feedpoll

import (
	"errors"
	"log/slog"
	"time"
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
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

// Option is a function that configures a [Poller] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*pollerConfig) error

// WithFeedsFile sets the path of the JSON source registry.
//
// The registry is loaded at startup and kept in sync while running: new
// active sources gain jobs, deactivated or removed sources lose theirs,
// and per-source status (interval, error count, validators) is written
// back after each poll. A missing or unreadable file is logged, never
// fatal.
//
// Sources from the registry combine with any added via [WithSource].
func WithFeedsFile(path string) Option {
	return func(cfg *pollerConfig) error {
		if path == "" {
			return errors.New("feeds file path cannot be empty")
		}
		cfg.feedsFile = path
		return nil
	}
}

// WithSource adds a single [Source] to the polling list.
//
// Can be called multiple times. Sources added here are registered
// alongside any loaded from the feeds file; inactive sources are skipped.
func WithSource(s Source) Option {
	return func(cfg *pollerConfig) error {
		cfg.sources = append(cfg.sources, s)
		return nil
	}
}

// WithSources adds multiple [Source] values to the polling list.
// Equivalent to calling [WithSource] multiple times.
func WithSources(sources ...Source) Option {
	return func(cfg *pollerConfig) error {
		cfg.sources = append(cfg.sources, sources...)
		return nil
	}
}

// WithReader replaces the default HTTP feed reader.
//
// Use this to fetch from somewhere other than HTTP, or in tests. The
// poller takes ownership: the reader is closed at shutdown.
func WithReader(r Reader) Option {
	return func(cfg *pollerConfig) error {
		if r == nil {
			return errors.New("reader cannot be nil")
		}
		cfg.reader = r
		return nil
	}
}

// WithSink sets the delivery sink for accepted and rejected items.
//
// Defaults to a sink that logs each item. The poller takes ownership:
// the sink is closed at shutdown.
func WithSink(s Sink) Option {
	return func(cfg *pollerConfig) error {
		if s == nil {
			return errors.New("sink cannot be nil")
		}
		cfg.sink = s
		return nil
	}
}

// WithStore sets the persistence layer for accepted items.
//
// No store is configured by default; items are published but not
// persisted. The poller does not take ownership - the caller closes the
// store after [Poller.Start] returns.
func WithStore(s Store) Option {
	return func(cfg *pollerConfig) error {
		if s == nil {
			return errors.New("store cannot be nil")
		}
		cfg.store = s
		return nil
	}
}

// WithRules sets the validation rule applied to each fetched entry.
// Defaults to [DefaultRules]. Compose several rules with [AllOf].
func WithRules(r Rule) Option {
	return func(cfg *pollerConfig) error {
		if r == nil {
			return errors.New("rule cannot be nil")
		}
		cfg.rule = r
		return nil
	}
}

// WithWorkers sets the size of the poll worker pool.
//
// The pool bounds how many sources are polled concurrently regardless of
// how many are registered. Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithWorkers(n int) Option {
	return func(cfg *pollerConfig) error {
		if n <= 0 {
			return errors.New("workers must be positive")
		}
		cfg.workers = n
		return nil
	}
}

// WithPort sets the port for the operational HTTP server, which exposes
// /health and /metrics. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *pollerConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithRequestTimeout sets the per-request timeout of the default reader.
// Ignored when [WithReader] is used. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithRateLimit sets the minimum spacing between any two HTTP requests
// of the default reader, across all sources. Ignored when [WithReader]
// is used. Defaults to 1 second.
//
// Returns an error if the duration is negative; zero disables the limit.
func WithRateLimit(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d < 0 {
			return errors.New("rate limit cannot be negative")
		}
		cfg.rateLimit = d
		cfg.rateLimitSet = true
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the poller.
//
// This allows SDK consumers to control where logs are written and in
// what format. If not specified, [slog.Default] is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithPollCallback registers a function invoked after every poll with
// its [PollResult].
//
// Callbacks run on the result consumer goroutine, after the status board
// has been updated. A panicking callback is recovered and logged; it
// cannot take down the poller. Can be called multiple times to register
// several callbacks, invoked in registration order.
func WithPollCallback(cb func(PollResult)) Option {
	return func(cfg *pollerConfig) error {
		if cb == nil {
			return errors.New("callback cannot be nil")
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
