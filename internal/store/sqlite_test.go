package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jfarrow/feedpoll/internal/feed"
)

func testEntries(links ...string) []feed.Entry {
	entries := make([]feed.Entry, len(links))
	for i, link := range links {
		entries[i] = feed.Entry{
			Title:     "A headline long enough to keep",
			Link:      link,
			Published: "Mon, 02 Jan 2006 15:04:05 -0700",
			Source:    "test",
			Timestamp: time.Now().UTC(),
		}
	}
	return entries
}

// TestAppend_InsertsAndCounts verifies the basic write path against an
// in-memory database.
func TestAppend_InsertsAndCounts(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	written, err := s.Append(ctx, testEntries(
		"https://example.com/a",
		"https://example.com/b",
	))
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if written != 2 {
		t.Errorf("Append() wrote %d rows, want 2", written)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

// TestAppend_RedeliveryIgnored verifies an item with an already-stored id
// is skipped, not duplicated - the property a process restart relies on.
func TestAppend_RedeliveryIgnored(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Append(ctx, testEntries("https://example.com/a")); err != nil {
		t.Fatal(err)
	}

	written, err := s.Append(ctx, testEntries("https://example.com/a", "https://example.com/b"))
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if written != 1 {
		t.Errorf("redelivery wrote %d rows, want 1", written)
	}

	n, _ := s.Count(ctx)
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

// TestAppend_CanonicalSpellingsCollapse verifies the store uses the same
// URL identity as the dedup index: different spellings of one location
// occupy one row.
func TestAppend_CanonicalSpellingsCollapse(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	written, err := s.Append(ctx, testEntries(
		"https://example.com/a",
		"HTTPS://EXAMPLE.COM/a",
	))
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if written != 1 {
		t.Errorf("Append() wrote %d rows for one canonical URL, want 1", written)
	}
}

// TestAppend_Empty verifies a no-op append succeeds.
func TestAppend_Empty(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	written, err := s.Append(context.Background(), nil)
	if err != nil || written != 0 {
		t.Errorf("Append(nil) = (%d, %v), want (0, nil)", written, err)
	}
}

// TestOpen_FileDatabase verifies the file-backed path creates a usable
// database with the schema in place.
func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", path, err)
	}

	if _, err := s.Append(context.Background(), testEntries("https://example.com/a")); err != nil {
		t.Errorf("Append() on file database failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}

	// reopening must see the persisted row
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	n, err := s2.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}
