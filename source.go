package feedpoll

import (
	"errors"
	"net/url"
	"time"

	"github.com/jfarrow/feedpoll/internal/feed"
)

// Priority is a scheduling hint for a source.
//
// Priority orders dispatch when several sources come due on the same tick;
// it never preempts a running poll. Unknown values parse as
// [PriorityMedium].
type Priority = feed.Priority

const (
	// PriorityHigh sources are dispatched first when due.
	PriorityHigh = feed.PriorityHigh

	// PriorityMedium is the default priority.
	PriorityMedium = feed.PriorityMedium

	// PriorityLow sources are dispatched last when due.
	PriorityLow = feed.PriorityLow
)

// ParsePriority maps a string to a [Priority], defaulting to medium.
func ParsePriority(s string) Priority {
	return feed.ParsePriority(s)
}

// Source is a named feed location, polled independently on its own
// adaptive interval.
//
// Source identity is the (name, URL) pair; the scheduler derives a
// collision-resistant job id from both, so renaming a source or changing
// its URL produces a fresh job rather than a collision. Source is
// immutable after creation via [NewSource]; the live polling state
// (current interval, error count, validators) is owned by the scheduler
// and the registry, not by this value.
type Source struct {
	name     string
	url      string
	interval time.Duration
	priority Priority
	active   bool
}

// Name returns the source's display name.
func (s Source) Name() string {
	return s.name
}

// URL returns the feed URL that will be polled.
func (s Source) URL() string {
	return s.url
}

// Interval returns the source's starting poll interval.
// Returns 0 if no custom interval was specified, meaning the default
// interval (1 hour) should be used.
func (s Source) Interval() time.Duration {
	return s.interval
}

// Priority returns the source's scheduling hint.
func (s Source) Priority() Priority {
	return s.priority
}

// Active reports whether the source should be polled at all.
func (s Source) Active() bool {
	return s.active
}

// NewSource creates a [Source] with the given name, URL, and options.
//
// The name is a human-readable identifier; together with the URL it forms
// the source's identity. The rawURL must be a valid URL with an http or
// https scheme.
//
// Example:
//
//	src, err := feedpoll.NewSource("BBC World", "https://feeds.bbci.co.uk/news/world/rss.xml",
//	    feedpoll.WithInterval(30 * time.Minute),
//	    feedpoll.WithPriority(feedpoll.PriorityHigh),
//	)
func NewSource(name, rawURL string, opts ...SourceOption) (Source, error) {
	if name == "" {
		return Source{}, errors.New("source name cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Source{}, errors.New("invalid URL: " + err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Source{}, errors.New("URL scheme must be http or https")
	}

	cfg := &sourceConfig{
		priority: PriorityMedium,
		active:   true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Source{}, err
		}
	}

	return Source{
		name:     name,
		url:      rawURL,
		interval: cfg.interval,
		priority: cfg.priority,
		active:   cfg.active,
	}, nil
}
