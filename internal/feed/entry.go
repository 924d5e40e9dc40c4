package feed

import "time"

// Entry is a single item discovered by one fetch of a feed, pre-validation.
//
// Entry is an explicit, typed record: every field a downstream consumer may
// rely on is named here, and optional fields default to the empty string
// rather than being probed dynamically. Entries that pass deduplication and
// validation become accepted items, eligible for persistence and publishing.
type Entry struct {
	// Title is the item headline as published by the feed.
	Title string `json:"title"`

	// Link is the item URL. Deduplication identity is derived from a
	// canonical form of this field.
	Link string `json:"link"`

	// Published is the publication date string exactly as the feed
	// carried it (typically RFC 1123 with a numeric zone).
	Published string `json:"published"`

	// Summary is the item description. Falls back to a truncated content
	// body when the feed carries no description.
	Summary string `json:"summary"`

	// Source is the name of the source the entry was fetched from.
	Source string `json:"source"`

	// Timestamp records when this process first saw the entry (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// Validators holds the opaque HTTP cache validators for one source.
//
// The values are sent back to the server on the next fetch (If-None-Match /
// If-Modified-Since) so unchanged feeds can answer 304 without a body.
// Empty strings mean no validator is known yet.
type Validators struct {
	ETag         string
	LastModified string
}

// FetchResult is the outcome of one successful fetch of a source.
//
// Exactly one of two shapes is produced: NotModified true with no entries
// (the server answered 304), or NotModified false with the parsed entries
// and refreshed validators. Fetch failures are reported as errors instead,
// never as a FetchResult.
type FetchResult struct {
	// Entries are the parsed feed items, in document order.
	Entries []Entry

	// NotModified is true when the server indicated the feed has not
	// changed since the cached validators were issued.
	NotModified bool

	// Validators are the cache validators to use for the next fetch.
	Validators Validators

	// FeedUpdated is the feed-level "last updated" timestamp, when the
	// document advertised one. Zero otherwise. The interval policy uses
	// it as a freshness hint.
	FeedUpdated time.Time
}
