// Package sink delivers accepted items downstream.
//
// The primary implementation publishes to Kafka, mirroring the dead-letter
// convention: items that fail validation upstream, or fail delivery here,
// are wrapped in an envelope recording the reason and written to a
// dedicated dead-letter topic instead of being dropped.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jfarrow/feedpoll/internal/feed"
)

// KafkaConfig wires a [Kafka] sink.
type KafkaConfig struct {
	// Brokers are the bootstrap broker addresses.
	Brokers []string

	// Topic receives accepted items.
	Topic string

	// DeadLetterTopic receives rejected and undeliverable items.
	// Ignored when DeadLetter is false.
	DeadLetterTopic string

	// DeadLetter enables dead-letter routing. When false, DeadLetter
	// calls only log.
	DeadLetter bool
}

// Kafka is a [feed.Sink] backed by two Kafka writers: one for the
// main topic and one for the dead-letter topic.
//
// Writers are safe for concurrent use; one Kafka value serves all poll
// workers.
type Kafka struct {
	writer     *kafka.Writer
	deadWriter *kafka.Writer
	logger     *slog.Logger
}

// deadLetterEnvelope wraps an item routed to the dead-letter topic with
// the reason it was rejected.
type deadLetterEnvelope struct {
	Original  feed.Entry `json:"original_message"`
	Reason    string         `json:"error_reason"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewKafka creates a [Kafka] sink.
//
// Messages are keyed by source name so one source's items land on one
// partition in order. Writes are retried by the client before failing;
// a failed write is additionally routed to the dead-letter topic so the
// item is not silently lost.
func NewKafka(cfg KafkaConfig, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}

	k := &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
		},
		logger: logger,
	}

	if cfg.DeadLetter && cfg.DeadLetterTopic != "" {
		k.deadWriter = &kafka.Writer{
			Addr:        kafka.TCP(cfg.Brokers...),
			Topic:       cfg.DeadLetterTopic,
			Balancer:    &kafka.LeastBytes{},
			MaxAttempts: 3,
		}
	}

	return k
}

// Publish implements [feed.Sink].
func (k *Kafka) Publish(ctx context.Context, e feed.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Source),
		Value: payload,
	})
	if err != nil {
		k.logger.Error("publish failed", "source", e.Source, "link", e.Link, "error", err)
		if dlErr := k.DeadLetter(ctx, e, err.Error()); dlErr != nil {
			k.logger.Error("dead-letter after failed publish also failed", "source", e.Source, "error", dlErr)
		}
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// DeadLetter implements [feed.Sink]. When dead-letter routing is
// disabled the rejection is logged and dropped.
func (k *Kafka) DeadLetter(ctx context.Context, e feed.Entry, reason string) error {
	if k.deadWriter == nil {
		k.logger.Warn("dropping rejected item", "source", e.Source, "link", e.Link, "reason", reason)
		return nil
	}

	payload, err := json.Marshal(deadLetterEnvelope{
		Original:  e,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode dead-letter envelope: %w", err)
	}

	if err := k.deadWriter.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		return fmt.Errorf("dead-letter publish: %w", err)
	}
	return nil
}

// Close flushes and closes both writers.
func (k *Kafka) Close() error {
	err := k.writer.Close()
	if k.deadWriter != nil {
		if dlErr := k.deadWriter.Close(); err == nil {
			err = dlErr
		}
	}
	return err
}
