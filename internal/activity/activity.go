// Package activity tracks aggregate fetch and publish counters.
//
// The log is purely observational: the operational HTTP surface reads it,
// but scheduling decisions never do - those are driven by each source's
// own error count and interval.
package activity

import (
	"sync"
	"time"
)

// Log accumulates counters across all sources. Safe for concurrent use.
type Log struct {
	mu          sync.Mutex
	successes   int64
	failures    int64
	published   int64
	rejected    int64
	duplicates  int64
	lastSuccess time.Time
	lastFailure time.Time
}

// NewLog creates an empty [Log].
func NewLog() *Log {
	return &Log{}
}

// RecordSuccess counts one successful fetch at time t.
func (l *Log) RecordSuccess(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successes++
	l.lastSuccess = t
}

// RecordFailure counts one failed fetch at time t.
func (l *Log) RecordFailure(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
	l.lastFailure = t
}

// RecordItems counts the per-item outcomes of one poll.
func (l *Log) RecordItems(published, rejected, duplicates int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published += int64(published)
	l.rejected += int64(rejected)
	l.duplicates += int64(duplicates)
}

// Snapshot is a point-in-time copy of the counters, shaped for the
// operational surface's JSON responses.
type Snapshot struct {
	SuccessfulFetches int64      `json:"successful_fetches"`
	FailedFetches     int64      `json:"failed_fetches"`
	PublishedItems    int64      `json:"published_items"`
	RejectedItems     int64      `json:"rejected_items"`
	DuplicateItems    int64      `json:"duplicate_items"`
	LastSuccess       *time.Time `json:"last_success,omitempty"`
	LastFailure       *time.Time `json:"last_failure,omitempty"`
}

// Snapshot returns a consistent copy of the current counters.
func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Snapshot{
		SuccessfulFetches: l.successes,
		FailedFetches:     l.failures,
		PublishedItems:    l.published,
		RejectedItems:     l.rejected,
		DuplicateItems:    l.duplicates,
	}
	if !l.lastSuccess.IsZero() {
		t := l.lastSuccess
		s.LastSuccess = &t
	}
	if !l.lastFailure.IsZero() {
		t := l.lastFailure
		s.LastFailure = &t
	}
	return s
}
