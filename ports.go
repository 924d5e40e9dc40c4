package feedpoll

import "github.com/jfarrow/feedpoll/internal/feed"

// Reader fetches and parses one feed document.
//
// Implementations own the HTTP client and any per-URL state they need for
// conditional requests. Fetch must be safe for concurrent use from multiple
// poll workers; the scheduler guarantees only that no single URL is fetched
// by two polls at once. A non-nil Fetch error means the fetch failed
// (transport error, bad status, or unparseable body) and the source enters
// the backoff path.
type Reader = feed.Reader

// Sink publishes accepted items downstream.
//
// A Publish error means the item was not delivered; implementations are
// expected to route such items (and explicit dead-letters) to a side
// channel rather than lose them. Publish failures never count against a
// source's error counter - that counter tracks fetch failures only.
type Sink = feed.Sink

// Store persists accepted items.
//
// Append must tolerate re-delivery: an item with an id it has already seen
// is ignored, not duplicated. The returned count is the number of items
// actually written.
type Store = feed.Store
