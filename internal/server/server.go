// Package server exposes the operational HTTP surface.
//
// Two endpoints only: GET /health for liveness probes and GET /metrics
// for the aggregate counters plus per-source status. Neither influences
// scheduling; they are read-only views over the activity log, the status
// board, and the scheduler's job table.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jfarrow/feedpoll/internal/activity"
	"github.com/jfarrow/feedpoll/internal/status"
)

// shutdownTimeout bounds the graceful drain of in-flight requests when
// the server context is cancelled.
const shutdownTimeout = 5 * time.Second

// Stats exposes the scheduler state the operational endpoints report.
type Stats interface {
	JobCount() int
	NextFireTimes() map[string]time.Time
}

// Server handles the operational HTTP endpoints.
//
// The server is not started until [Server.Start] is called and shuts
// down gracefully when the start context is cancelled.
type Server struct {
	activity   *activity.Log
	board      *status.Board
	stats      Stats
	port       int
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a [Server] over the given read models. stats may be nil,
// in which case job information is omitted from responses.
func New(act *activity.Log, board *status.Board, stats Stats, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		activity: act,
		board:    board,
		stats:    stats,
		port:     port,
		logger:   logger,
	}
}

// Start begins serving in a background goroutine.
//
// Start is non-blocking and returns once the listener is bound, so a
// port conflict surfaces here rather than asynchronously. The server
// runs until ctx is cancelled, then drains with a bounded timeout.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: mux,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("operational server listening", "addr", ln.Addr().String())
	return nil
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// healthResponse is the /health body.
type healthResponse struct {
	Status    string            `json:"status"`
	Jobs      int               `json:"jobs"`
	Activity  activity.Snapshot `json:"activity"`
	Timestamp time.Time         `json:"timestamp"`
}

// metricsResponse is the /metrics body.
type metricsResponse struct {
	Activity  activity.Snapshot    `json:"activity"`
	Sources   []sourceMetrics      `json:"sources"`
	NextFires map[string]time.Time `json:"next_fires,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// sourceMetrics flattens the latest poll result for one source.
type sourceMetrics struct {
	Source     string    `json:"source"`
	Outcome    string    `json:"outcome"`
	Fetched    int       `json:"fetched"`
	Duplicates int       `json:"duplicates"`
	Rejected   int       `json:"rejected"`
	Accepted   int       `json:"accepted"`
	IntervalS  float64   `json:"interval_seconds"`
	ErrorCount int       `json:"error_count"`
	CheckedAt  time.Time `json:"checked_at"`
}

// handleHealth reports liveness. The process is healthy as long as it
// can answer; the body carries the job count and aggregate counters so
// a probe can alert on a scheduler that is alive but idle.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:    "ok",
		Activity:  s.activity.Snapshot(),
		Timestamp: time.Now().UTC(),
	}
	if s.stats != nil {
		resp.Jobs = s.stats.JobCount()
	}

	s.writeJSON(w, resp)
}

// handleMetrics returns the aggregate counters and the latest result per
// source.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results := s.board.All()
	sources := make([]sourceMetrics, 0, len(results))
	for _, pr := range results {
		sources = append(sources, sourceMetrics{
			Source:     pr.SourceName,
			Outcome:    string(pr.Outcome),
			Fetched:    pr.Fetched,
			Duplicates: pr.Duplicates,
			Rejected:   pr.Rejected,
			Accepted:   pr.Accepted,
			IntervalS:  pr.Interval.Seconds(),
			ErrorCount: pr.ErrorCount,
			CheckedAt:  pr.CheckedAt,
		})
	}

	resp := metricsResponse{
		Activity:  s.activity.Snapshot(),
		Sources:   sources,
		Timestamp: time.Now().UTC(),
	}
	if s.stats != nil {
		resp.NextFires = s.stats.NextFireTimes()
	}

	s.writeJSON(w, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
