package sink

import (
	"context"
	"log/slog"

	"github.com/jfarrow/feedpoll/internal/feed"
)

// Log is a [feed.Sink] that writes items to the logger instead of a
// broker. Useful for local runs and as the default when no brokers are
// configured.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a [Log] sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Publish implements [feed.Sink].
func (l *Log) Publish(_ context.Context, e feed.Entry) error {
	l.logger.Info("item published", "source", e.Source, "title", e.Title, "link", e.Link)
	return nil
}

// DeadLetter implements [feed.Sink].
func (l *Log) DeadLetter(_ context.Context, e feed.Entry, reason string) error {
	l.logger.Warn("item dead-lettered", "source", e.Source, "link", e.Link, "reason", reason)
	return nil
}

// Close implements [feed.Sink].
func (l *Log) Close() error {
	return nil
}
