// Package store provides SQLite persistence for accepted items.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/jfarrow/feedpoll/internal/dedup"
	"github.com/jfarrow/feedpoll/internal/feed"
)

// SQLite persists accepted items in a single items table.
//
// Thread-safety: all methods are safe for concurrent use via an internal
// mutex. Item ids are the same stable URL hashes the dedup index uses, so
// re-delivered items (after a process restart resets the in-memory index)
// are ignored by the insert rather than duplicated.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a [SQLite] store at the given database path, creating the
// schema if needed. Uses WAL mode for file-based databases.
func Open(dbPath string) (*SQLite, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SQLite{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		published TEXT,
		summary TEXT,
		fetched_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
	CREATE INDEX IF NOT EXISTS idx_items_fetched ON items(fetched_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append implements [feed.Store]. Returns the number of rows actually
// inserted; items whose id already exists are skipped.
func (s *SQLite) Append(ctx context.Context, entries []feed.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, source, title, link, published, summary, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range entries {
		result, err := stmt.ExecContext(ctx,
			dedup.Key(e.Link),
			e.Source,
			e.Title,
			e.Link,
			e.Published,
			e.Summary,
			e.Timestamp,
		)
		if err != nil {
			return written, fmt.Errorf("insert item %s: %w", e.Link, err)
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// Count returns the total number of stored items.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// Close implements [feed.Store].
func (s *SQLite) Close() error {
	return s.db.Close()
}
