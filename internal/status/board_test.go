package status

import (
	"sync"
	"testing"

	"github.com/jfarrow/feedpoll/internal/feed"
)

// TestUpdate_ReplacesPerSource verifies the board keeps only the latest
// result for each source.
func TestUpdate_ReplacesPerSource(t *testing.T) {
	b := NewBoard()

	b.Update(feed.PollResult{SourceName: "a", Accepted: 1})
	b.Update(feed.PollResult{SourceName: "a", Accepted: 7})
	b.Update(feed.PollResult{SourceName: "b", Accepted: 2})

	all := b.All()
	if len(all) != 2 {
		t.Fatalf("All() has %d results, want 2", len(all))
	}
	if all[0].SourceName != "a" || all[0].Accepted != 7 {
		t.Errorf("latest result for a = %+v, want the second update", all[0])
	}
}

// TestAll_SortedByName verifies a deterministic ordering for the
// operational surface.
func TestAll_SortedByName(t *testing.T) {
	b := NewBoard()
	for _, name := range []string{"zebra", "alpha", "mid"} {
		b.Update(feed.PollResult{SourceName: name})
	}

	all := b.All()
	want := []string{"alpha", "mid", "zebra"}
	for i, r := range all {
		if r.SourceName != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, r.SourceName, want[i])
		}
	}
}

// TestBoard_ConcurrentUpdates verifies the board under parallel writers
// and readers; run with -race.
func TestBoard_ConcurrentUpdates(t *testing.T) {
	b := NewBoard()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Update(feed.PollResult{SourceName: "contested", Accepted: j})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.All()
			}
		}()
	}
	wg.Wait()

	if len(b.All()) != 1 {
		t.Errorf("board has %d sources, want 1", len(b.All()))
	}
}
