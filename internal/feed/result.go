package feed

import "time"

// Outcome classifies how a single poll of a source ended.
//
// Outcome is a string type that can hold one of three predefined values:
// [OutcomeSuccess], [OutcomeFailure], or [OutcomeNotModified]. Using a
// string type allows easy JSON serialization and human-readable logging
// while keeping type safety through the defined constants.
type Outcome string

const (
	// OutcomeSuccess indicates the fetch succeeded and entries (possibly
	// zero) were processed. A fetch that yields no new items is still a
	// success, distinct from a fetch that fails outright.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure indicates the fetch failed (transport error, bad
	// HTTP status, or unparseable body) and the source entered backoff.
	OutcomeFailure Outcome = "failure"

	// OutcomeNotModified indicates the server answered 304; nothing was
	// processed and the source's interval and error count are unchanged.
	OutcomeNotModified Outcome = "not_modified"
)

// String returns the string representation of the outcome.
// This implements the fmt.Stringer interface.
func (o Outcome) String() string {
	return string(o)
}

// PollResult holds the observable outcome of polling a single source once.
//
// PollResult is purely observational: the operational surface and any
// registered callbacks consume it, but the scheduler's own decisions are
// driven by the per-source error count and interval, never by these
// records.
type PollResult struct {
	// SourceName is the display name of the polled source.
	SourceName string `json:"source"`

	// URL is the feed URL that was polled.
	URL string `json:"url"`

	// Outcome classifies how the poll ended.
	Outcome Outcome `json:"outcome"`

	// Fetched is the number of raw entries the feed returned.
	Fetched int `json:"fetched"`

	// Duplicates is the number of entries dropped because some earlier
	// poll (of any source) had already seen them.
	Duplicates int `json:"duplicates"`

	// Rejected is the number of entries that failed validation and were
	// routed to the dead-letter channel.
	Rejected int `json:"rejected"`

	// Accepted is the number of entries that survived deduplication and
	// validation and were persisted and published.
	Accepted int `json:"accepted"`

	// Interval is the source's effective poll interval after this poll,
	// including any adaptive adjustment or backoff it triggered.
	Interval time.Duration `json:"interval_ns"`

	// ErrorCount is the source's consecutive-failure counter after this
	// poll. Zero after any success.
	ErrorCount int `json:"error_count"`

	// Elapsed is the wall time the poll took, including the fetch.
	Elapsed time.Duration `json:"elapsed_ns"`

	// CheckedAt is when the poll completed.
	CheckedAt time.Time `json:"checked_at"`

	// Error is the fetch error for failure outcomes, nil otherwise.
	Error error `json:"-"`
}
