package feed

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// minTitleLength is the shortest title the default rules accept.
// Shorter strings are almost always truncation artifacts or placeholders.
const minTitleLength = 10

// linkPattern matches absolute http(s) URLs.
var linkPattern = regexp.MustCompile(`^https?://\S+`)

// RequiredFieldsRule rejects entries missing any of the fields every
// downstream consumer relies on: title, link, and published date.
var RequiredFieldsRule Rule = func(e Entry) error {
	switch {
	case e.Title == "":
		return errors.New("missing title")
	case e.Link == "":
		return errors.New("missing link")
	case e.Published == "":
		return errors.New("missing published date")
	}
	return nil
}

// TitleLengthRule returns a [Rule] that rejects entries whose trimmed
// title is shorter than min characters.
func TitleLengthRule(min int) Rule {
	return func(e Entry) error {
		if len(strings.TrimSpace(e.Title)) < min {
			return fmt.Errorf("title shorter than %d characters", min)
		}
		return nil
	}
}

// LinkRule rejects entries whose link is not an absolute http(s) URL.
var LinkRule Rule = func(e Entry) error {
	if !linkPattern.MatchString(e.Link) {
		return errors.New("link is not an absolute http(s) URL")
	}
	return nil
}

// PublishedRule rejects entries whose published date cannot be parsed.
//
// Accepted layouts are RFC 1123 with a numeric zone (the common RSS form),
// RFC 1123 with a zone name, and RFC 3339 (the common Atom form).
var PublishedRule Rule = func(e Entry) error {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if _, err := time.Parse(layout, e.Published); err == nil {
			return nil
		}
	}
	return fmt.Errorf("unparseable published date %q", e.Published)
}

// AllOf returns a [Rule] that applies rules in order and reports the
// first rejection.
//
// If every rule accepts the entry, the composed rule accepts it. An empty
// rule list accepts everything.
func AllOf(rules ...Rule) Rule {
	return func(e Entry) error {
		for _, rule := range rules {
			if err := rule(e); err != nil {
				return err
			}
		}
		return nil
	}
}

// DefaultRules combines the structural check (required fields) with the
// data-quality checks: a minimally useful title, an absolute http(s)
// link, and a parseable published date.
var DefaultRules = AllOf(
	RequiredFieldsRule,
	TitleLengthRule(minTitleLength),
	LinkRule,
	PublishedRule,
)
