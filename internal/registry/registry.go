// Package registry loads and updates the source list backing file.
//
// The backing store is a JSON array of source records (feeds.json). The
// registry is deliberately forgiving: malformed files, missing fields, and
// transient I/O errors are logged and absorbed rather than propagated, so
// the scheduler never crashes because the file is briefly unreadable or
// someone hand-edited it badly. Updates are read-modify-write of the whole
// list without optimistic concurrency control; a concurrent external edit
// during an update can be lost, which is a documented risk, not a
// guaranteed invariant.
package registry

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jfarrow/feedpoll/internal/feed"
	"github.com/jfarrow/feedpoll/internal/policy"
)

// Source is one normalized record from the backing file, with all
// defaults applied.
type Source struct {
	Name         string
	URL          string
	Interval     time.Duration
	Priority     feed.Priority
	ErrorCount   int
	Active       bool
	LastUpdated  time.Time
	ETag         string
	LastModified string
}

// Status is a partial update to one source's record. Nil fields are left
// untouched in the backing file.
type Status struct {
	Interval     *time.Duration
	ErrorCount   *int
	LastSuccess  *time.Time
	LastError    *time.Time
	ETag         *string
	LastModified *string
}

// rawRecord mirrors the backing file's JSON shape. Pointer fields
// distinguish "absent" from zero values so defaults can be applied.
type rawRecord struct {
	Name         any    `json:"name"`
	URL          any    `json:"url"`
	Interval     *int   `json:"interval"`
	Priority     string `json:"priority"`
	ErrorCount   *int   `json:"error_count"`
	Active       *bool  `json:"active"`
	LastUpdated  string `json:"last_updated"`
	ETag         string `json:"etag"`
	LastModified string `json:"last_modified"`
}

// Registry reads and writes the source backing file.
//
// Loads are cached against the file's modification time: a load with an
// unchanged mtime returns the previous parse instead of re-reading.
// Safe for concurrent use.
type Registry struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	cached   []Source
	loadedAt time.Time // mtime of the file the cache was parsed from
	hasCache bool
}

// New creates a [Registry] over the given backing file path.
func New(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{path: path, logger: logger}
}

// Path returns the backing file path.
func (r *Registry) Path() string {
	return r.path
}

// Load returns the validated, deduplicated source list.
//
// Fails soft: a missing file, unreadable file, or malformed JSON yields an
// empty slice and a log line, never an error. Records missing a name or
// URL (or carrying non-string values for either) are discarded. Duplicate
// (name, URL) pairs keep the first occurrence. Omitted optional fields
// receive defaults: 1 hour interval, medium priority, zero errors, active.
func (r *Registry) Load() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(r.path)
	if err != nil {
		r.logger.Error("cannot stat feeds file", "path", r.path, "error", err)
		return nil
	}

	if r.hasCache && !info.ModTime().After(r.loadedAt) {
		return append([]Source(nil), r.cached...)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Error("cannot read feeds file", "path", r.path, "error", err)
		return nil
	}

	var raw []rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		r.logger.Error("invalid JSON in feeds file", "path", r.path, "error", err)
		return nil
	}

	type identity struct{ name, url string }
	seen := make(map[identity]bool, len(raw))
	sources := make([]Source, 0, len(raw))

	for i, rec := range raw {
		name, nameOK := rec.Name.(string)
		url, urlOK := rec.URL.(string)
		if !nameOK || !urlOK || name == "" || url == "" {
			r.logger.Warn("discarding source record", "index", i, "reason", "missing or non-string name/url")
			continue
		}

		id := identity{name, url}
		if seen[id] {
			continue
		}
		seen[id] = true

		sources = append(sources, normalize(rec, name, url))
	}

	r.cached = sources
	r.loadedAt = info.ModTime()
	r.hasCache = true
	return append([]Source(nil), sources...)
}

// normalize applies defaults to a validated raw record.
func normalize(rec rawRecord, name, url string) Source {
	src := Source{
		Name:         name,
		URL:          url,
		Interval:     policy.DefaultInterval,
		Priority:     feed.ParsePriority(rec.Priority),
		Active:       true,
		ETag:         rec.ETag,
		LastModified: rec.LastModified,
	}
	if rec.Interval != nil && *rec.Interval > 0 {
		src.Interval = time.Duration(*rec.Interval) * time.Second
	}
	if rec.ErrorCount != nil && *rec.ErrorCount > 0 {
		src.ErrorCount = *rec.ErrorCount
	}
	if rec.Active != nil {
		src.Active = *rec.Active
	}
	if rec.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339, rec.LastUpdated); err == nil {
			src.LastUpdated = t
		}
	}
	return src
}

// Active returns only the sources with active == true, in file order.
func (r *Registry) Active() []Source {
	all := r.Load()
	active := make([]Source, 0, len(all))
	for _, src := range all {
		if src.Active {
			active = append(active, src)
		}
	}
	return active
}

// Update merges a partial status into the backing record matching name,
// stamping last_updated, and invalidates the load cache.
//
// Best effort: an unreadable file, malformed JSON, or failed write is
// logged and swallowed - the scheduler must not crash because the backing
// store is transiently unwritable. Records are updated in place as loose
// maps so fields this package does not model survive the rewrite.
func (r *Registry) Update(name string, st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Error("cannot read feeds file for update", "path", r.path, "error", err)
		return
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		r.logger.Error("invalid JSON in feeds file, skipping update", "path", r.path, "error", err)
		return
	}

	now := time.Now().UTC()
	for _, rec := range records {
		if recName, _ := rec["name"].(string); recName != name {
			continue
		}
		applyStatus(rec, st)
		rec["last_updated"] = now.Format(time.RFC3339)
		break
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		r.logger.Error("cannot encode feeds file", "path", r.path, "error", err)
		return
	}
	if err := os.WriteFile(r.path, out, 0o644); err != nil {
		r.logger.Error("cannot write feeds file", "path", r.path, "error", err)
		return
	}

	r.hasCache = false
}

// applyStatus copies the non-nil fields of a Status into a raw record.
func applyStatus(rec map[string]any, st Status) {
	if st.Interval != nil {
		rec["interval"] = int(st.Interval.Seconds())
	}
	if st.ErrorCount != nil {
		rec["error_count"] = *st.ErrorCount
	}
	if st.LastSuccess != nil {
		rec["last_success"] = st.LastSuccess.UTC().Format(time.RFC3339)
	}
	if st.LastError != nil {
		rec["last_error"] = st.LastError.UTC().Format(time.RFC3339)
	}
	if st.ETag != nil {
		rec["etag"] = *st.ETag
	}
	if st.LastModified != nil {
		rec["last_modified"] = *st.LastModified
	}
}
