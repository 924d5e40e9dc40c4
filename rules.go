package feedpoll

import "github.com/jfarrow/feedpoll/internal/feed"

// Rule is a function that decides whether an [Entry] is acceptable.
//
// Rule follows functional programming principles: it is a pure function
// where the same input always produces the same result. This makes rules
// easy to test, compose, and reason about. A nil error means the entry is
// acceptable; a non-nil error carries the rejection reason, which the
// scheduler forwards to the dead-letter channel.
//
// Several built-in rules are provided: [RequiredFieldsRule],
// [TitleLengthRule], [LinkRule], [PublishedRule], and [AllOf] for
// composition.
//
// # Panic Safety
//
// Rules are called within a panic recovery boundary at the job level. A
// panicking rule converts that source's poll into the failure path with a
// correlation id logged server-side; it cannot crash the scheduler.
type Rule = feed.Rule

// RequiredFieldsRule rejects entries missing any of the fields every
// downstream consumer relies on: title, link, and published date.
var RequiredFieldsRule = feed.RequiredFieldsRule

// TitleLengthRule returns a [Rule] that rejects entries whose trimmed
// title is shorter than min characters.
func TitleLengthRule(min int) Rule {
	return feed.TitleLengthRule(min)
}

// LinkRule rejects entries whose link is not an absolute http(s) URL.
var LinkRule = feed.LinkRule

// PublishedRule rejects entries whose published date cannot be parsed.
//
// Accepted layouts are RFC 1123 with a numeric zone (the common RSS form),
// RFC 1123 with a zone name, and RFC 3339 (the common Atom form).
var PublishedRule = feed.PublishedRule

// AllOf returns a [Rule] that applies rules in order and reports the
// first rejection.
//
// If every rule accepts the entry, the composed rule accepts it. An empty
// rule list accepts everything.
//
// Example:
//
//	rule := feedpoll.AllOf(
//	    feedpoll.RequiredFieldsRule,
//	    feedpoll.TitleLengthRule(10),
//	)
func AllOf(rules ...Rule) Rule {
	return feed.AllOf(rules...)
}

// DefaultRules is the [Rule] applied when none is configured via
// [WithRules].
//
// It combines the structural check (required fields) with the data-quality
// checks: a minimally useful title, an absolute http(s) link, and a
// parseable published date.
var DefaultRules = feed.DefaultRules
