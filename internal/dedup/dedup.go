// Package dedup tracks which items this process has already handed
// downstream.
//
// The index is a process-lifetime set of hashed item identifiers. It only
// grows; there is no eviction. That unbounded growth is an accepted
// boundary of the design - restarting the process resets the set, and
// downstream consumers are expected to tolerate the resulting replays.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
)

// Index is a content-addressed set of seen item identifiers.
//
// Safe for concurrent use by multiple poll workers. The membership test
// and insert are a single atomic unit: for any id, exactly one Seen call
// over the index's lifetime observes "unseen".
type Index struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewIndex creates an empty [Index].
func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// Seen reports whether id was already marked seen, marking it as a side
// effect. This is a combined check-and-set, not a pure predicate: the
// first call for a given id returns false and every later call returns
// true, even when calls race from different sources' polls.
func (i *Index) Seen(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.seen[id]; ok {
		return true
	}
	i.seen[id] = struct{}{}
	return false
}

// Len returns the number of distinct ids marked seen so far.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.seen)
}

// Key derives the stable identifier for an item URL.
//
// The URL is canonicalized (lowercased scheme and host, fragment dropped)
// and then hashed, so the index never stores raw URLs - query strings may
// carry tokens that should not sit in memory verbatim - and trivially
// different spellings of the same location collapse to one id.
func Key(rawURL string) string {
	canonical := canonicalize(rawURL)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// canonicalize normalizes a URL for identity purposes. Unparseable input
// is used as-is; a stable wrong key is better than no key.
func canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}
