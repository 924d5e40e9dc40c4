// Package status keeps the latest poll result for each source.
//
// The board is the read model behind the operational HTTP surface: the
// scheduler's result stream flows into it, and /metrics reads it back
// out. It holds only the most recent result per source.
package status

import (
	"sort"
	"sync"

	"github.com/jfarrow/feedpoll/internal/feed"
)

// Board stores the latest [feed.PollResult] per source.
//
// Safe for concurrent access. Results are keyed by source name, so each
// update replaces the previous value for that source.
type Board struct {
	mu      sync.RWMutex
	results map[string]feed.PollResult
}

// NewBoard creates an empty [Board].
func NewBoard() *Board {
	return &Board{results: make(map[string]feed.PollResult)}
}

// Update records the latest result for its source.
func (b *Board) Update(r feed.PollResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[r.SourceName] = r
}

// All returns a snapshot of the latest result per source, ordered by
// source name. The returned slice is a copy; modifying it does not
// affect the board.
func (b *Board) All() []feed.PollResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]feed.PollResult, 0, len(b.results))
	for _, r := range b.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceName < out[j].SourceName })
	return out
}
