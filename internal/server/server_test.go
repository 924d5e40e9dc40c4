package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jfarrow/feedpoll/internal/activity"
	"github.com/jfarrow/feedpoll/internal/feed"
	"github.com/jfarrow/feedpoll/internal/status"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStats satisfies Stats with fixed values.
type fakeStats struct {
	jobs  int
	fires map[string]time.Time
}

func (f fakeStats) JobCount() int { return f.jobs }

func (f fakeStats) NextFireTimes() map[string]time.Time { return f.fires }

// newTestServer builds a server with populated read models.
func newTestServer() *Server {
	act := activity.NewLog()
	act.RecordSuccess(time.Now())
	act.RecordItems(3, 1, 2)

	board := status.NewBoard()
	board.Update(feed.PollResult{
		SourceName: "bbc",
		Outcome:    feed.OutcomeSuccess,
		Fetched:    5,
		Accepted:   3,
		Rejected:   1,
		Duplicates: 1,
		Interval:   time.Hour,
		CheckedAt:  time.Now(),
	})

	stats := fakeStats{
		jobs:  2,
		fires: map[string]time.Time{"bbc": time.Now().Add(time.Hour)},
	}

	return New(act, board, stats, 8080, testLogger())
}

// TestHandleHealth verifies the liveness body shape.
func TestHandleHealth(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q, want ok", body.Status)
	}
	if body.Jobs != 2 {
		t.Errorf("jobs = %d, want 2", body.Jobs)
	}
	if body.Activity.SuccessfulFetches != 1 {
		t.Errorf("successful fetches = %d, want 1", body.Activity.SuccessfulFetches)
	}
}

// TestHandleMetrics verifies counters, per-source results, and next fire
// times are reported.
func TestHandleMetrics(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.handleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body metricsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Activity.PublishedItems != 3 {
		t.Errorf("published = %d, want 3", body.Activity.PublishedItems)
	}
	if len(body.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(body.Sources))
	}

	src := body.Sources[0]
	if src.Source != "bbc" || src.Outcome != "success" {
		t.Errorf("source metrics = %+v", src)
	}
	if src.IntervalS != 3600 {
		t.Errorf("interval_seconds = %v, want 3600", src.IntervalS)
	}
	if _, ok := body.NextFires["bbc"]; !ok {
		t.Error("next fire times missing bbc")
	}
}

// TestHandlers_MethodNotAllowed verifies non-GET requests are rejected.
func TestHandlers_MethodNotAllowed(t *testing.T) {
	s := newTestServer()

	for _, handler := range []func(http.ResponseWriter, *http.Request){s.handleHealth, s.handleMetrics} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST status = %d, want 405", rec.Code)
		}
	}
}

// TestStart_BindsAndShutsDown verifies the listen-first start surfaces
// port conflicts synchronously and drains on context cancellation.
func TestStart_BindsAndShutsDown(t *testing.T) {
	act := activity.NewLog()
	board := status.NewBoard()
	s := New(act, board, nil, 19201, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", s.Port()))
	if err != nil {
		cancel()
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", resp.StatusCode)
	}

	// a second server on the same port must fail to bind
	dup := New(act, board, nil, 19201, testLogger())
	if err := dup.Start(ctx); err == nil {
		t.Error("second Start() on the same port succeeded, want bind error")
	}

	cancel()
	// give the shutdown goroutine a moment to drain
	time.Sleep(100 * time.Millisecond)
}
