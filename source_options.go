package feedpoll

import (
	"errors"
	"time"
)

// sourceConfig holds mutable state during Source construction.
type sourceConfig struct {
	interval time.Duration
	priority Priority
	active   bool
}

// SourceOption configures a [Source] during construction via [NewSource].
type SourceOption func(*sourceConfig) error

// WithInterval sets the source's starting poll interval.
//
// The scheduler adapts the interval at runtime within the policy bounds
// (5 minutes to 24 hours); this option only seeds the starting value.
// If not specified, the default interval of 1 hour is used.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithPriority sets the source's scheduling hint.
//
// Priority orders dispatch when multiple sources come due at the same
// time; it does not preempt running polls. Defaults to [PriorityMedium].
func WithPriority(p Priority) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.priority = ParsePriority(string(p))
		return nil
	}
}

// WithActive marks the source active or inactive.
//
// Inactive sources are kept in the registry but never registered with the
// scheduler. Defaults to true.
func WithActive(active bool) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.active = active
		return nil
	}
}
