package feedpoll

import "github.com/jfarrow/feedpoll/internal/feed"

// Entry is a single item discovered by one fetch of a feed, pre-validation.
//
// Entry is an explicit, typed record: every field a downstream consumer may
// rely on is named here, and optional fields default to the empty string
// rather than being probed dynamically. Entries that pass deduplication and
// validation become accepted items, eligible for persistence and publishing.
type Entry = feed.Entry

// Validators holds the opaque HTTP cache validators for one source.
//
// The values are sent back to the server on the next fetch (If-None-Match /
// If-Modified-Since) so unchanged feeds can answer 304 without a body.
// Empty strings mean no validator is known yet.
type Validators = feed.Validators

// FetchResult is the outcome of one successful fetch of a source.
//
// Exactly one of two shapes is produced: NotModified true with no entries
// (the server answered 304), or NotModified false with the parsed entries
// and refreshed validators. Fetch failures are reported as errors instead,
// never as a FetchResult.
type FetchResult = feed.FetchResult
