package feedpoll

import "github.com/jfarrow/feedpoll/internal/feed"

// Outcome classifies how a single poll of a source ended.
//
// Outcome is a string type that can hold one of three predefined values:
// [OutcomeSuccess], [OutcomeFailure], or [OutcomeNotModified]. Using a
// string type allows easy JSON serialization and human-readable logging
// while keeping type safety through the defined constants.
type Outcome = feed.Outcome

const (
	// OutcomeSuccess indicates the fetch succeeded and entries (possibly
	// zero) were processed. A fetch that yields no new items is still a
	// success, distinct from a fetch that fails outright.
	OutcomeSuccess = feed.OutcomeSuccess

	// OutcomeFailure indicates the fetch failed (transport error, bad
	// HTTP status, or unparseable body) and the source entered backoff.
	OutcomeFailure = feed.OutcomeFailure

	// OutcomeNotModified indicates the server answered 304; nothing was
	// processed and the source's interval and error count are unchanged.
	OutcomeNotModified = feed.OutcomeNotModified
)

// PollResult holds the observable outcome of polling a single source once.
//
// PollResult is purely observational: the operational surface and any
// registered callbacks consume it, but the scheduler's own decisions are
// driven by the per-source error count and interval, never by these
// records.
type PollResult = feed.PollResult
