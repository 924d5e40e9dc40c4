package feed

import "context"

// Reader fetches and parses one feed document.
//
// Implementations own the HTTP client and any per-URL state they need for
// conditional requests. Fetch must be safe for concurrent use from multiple
// poll workers; the scheduler guarantees only that no single URL is fetched
// by two polls at once.
type Reader interface {
	// Fetch retrieves the feed at url, sending the cached validators so
	// the server can answer 304. A non-nil error means the fetch failed
	// (transport error, bad status, or unparseable body) and the source
	// enters the backoff path.
	Fetch(ctx context.Context, url string, cached Validators) (FetchResult, error)

	// Close releases pooled connections. The Reader remains usable but
	// new connections will be established as needed.
	Close()
}

// Sink publishes accepted items downstream.
//
// A Publish error means the item was not delivered; implementations are
// expected to route such items (and explicit dead-letters) to a side
// channel rather than lose them. Publish failures never count against a
// source's error counter - that counter tracks fetch failures only.
type Sink interface {
	// Publish delivers one accepted item.
	Publish(ctx context.Context, e Entry) error

	// DeadLetter routes an item that failed validation or delivery to
	// the dead-letter channel, with the reason it was rejected.
	DeadLetter(ctx context.Context, e Entry, reason string) error

	// Close flushes and releases the sink's resources.
	Close() error
}

// Store persists accepted items.
//
// Append must tolerate re-delivery: an item with an id it has already seen
// is ignored, not duplicated. The returned count is the number of items
// actually written.
type Store interface {
	Append(ctx context.Context, entries []Entry) (int, error)
	Close() error
}

// Rule is a function that decides whether an [Entry] is acceptable.
//
// A nil error means the entry is acceptable; a non-nil error carries the
// rejection reason, which the scheduler forwards to the dead-letter
// channel. Rules must be pure: the same entry always produces the same
// result.
type Rule func(e Entry) error
