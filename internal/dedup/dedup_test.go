package dedup

import (
	"sync"
	"testing"
)

// TestSeen_FirstCallUnseen verifies the check-and-set contract: the first
// call for an id returns false, every later call returns true.
func TestSeen_FirstCallUnseen(t *testing.T) {
	idx := NewIndex()
	id := Key("https://example.com/article-1")

	if idx.Seen(id) {
		t.Error("first Seen call returned true, want false")
	}
	if !idx.Seen(id) {
		t.Error("second Seen call returned false, want true")
	}
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}

// TestSeen_CrossSourceDuplicate verifies that an item cross-posted to two
// sources is only unseen once: the second source's poll sees a duplicate.
func TestSeen_CrossSourceDuplicate(t *testing.T) {
	idx := NewIndex()
	url := "https://example.com/shared-article"

	if idx.Seen(Key(url)) {
		t.Error("first source's poll saw the item as already seen")
	}
	if !idx.Seen(Key(url)) {
		t.Error("second source's poll did not see the item as duplicate")
	}
}

// TestSeen_ConcurrentExactlyOneUnseen verifies that racing Seen calls for
// the same id yield exactly one false across all callers.
func TestSeen_ConcurrentExactlyOneUnseen(t *testing.T) {
	idx := NewIndex()
	id := Key("https://example.com/contested")

	const goroutines = 50
	var wg sync.WaitGroup
	unseen := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !idx.Seen(id) {
				unseen <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(unseen)

	count := 0
	for range unseen {
		count++
	}
	if count != 1 {
		t.Errorf("%d goroutines observed unseen, want exactly 1", count)
	}
}

// TestKey_CanonicalizesSpellings verifies that trivially different
// spellings of the same location collapse to one id.
func TestKey_CanonicalizesSpellings(t *testing.T) {
	base := Key("https://example.com/article")

	same := []string{
		"HTTPS://EXAMPLE.COM/article",
		"https://Example.Com/article",
		"https://example.com/article#comments",
		"  https://example.com/article  ",
	}
	for _, spelling := range same {
		if Key(spelling) != base {
			t.Errorf("Key(%q) differs from canonical form", spelling)
		}
	}
}

// TestKey_DistinguishesDifferentResources verifies that path, query, and
// host differences produce different ids.
func TestKey_DistinguishesDifferentResources(t *testing.T) {
	base := Key("https://example.com/article")

	different := []string{
		"https://example.com/article-2",
		"https://example.com/article?page=2",
		"https://other.example.com/article",
		"http://example.com/article",
	}
	for _, u := range different {
		if Key(u) == base {
			t.Errorf("Key(%q) collides with a different resource", u)
		}
	}
}

// TestKey_UnparseableInputStillStable verifies that garbage input yields
// a stable key rather than panicking.
func TestKey_UnparseableInputStillStable(t *testing.T) {
	raw := "http://bad url\x7f"
	if Key(raw) != Key(raw) {
		t.Error("unparseable URL did not hash stably")
	}
}
