package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfarrow/feedpoll"
	"github.com/jfarrow/feedpoll/config"
	"github.com/jfarrow/feedpoll/internal/sink"
	"github.com/jfarrow/feedpoll/internal/store"
)

const (
	shutdownTimeout = 45 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the polling daemon.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the polling daemon",
	Long: `Start the feedpoll daemon.

The daemon will:
  - Load configuration from the specified YAML file
  - Register all configured sources and begin polling
  - Publish accepted items to Kafka (or the log, without brokers)
  - Serve /health and /metrics on the configured port

The daemon runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  feedpoll serve -c config.yaml
  feedpoll serve --config /etc/feedpoll/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"feeds_file", cfg.FeedsFile,
		"sources", len(cfg.Sources),
		"groups", len(cfg.Groups),
	)

	// convert config to SDK sources
	sources, err := config.BuildSources(cfg)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}

	opts := []feedpoll.Option{
		feedpoll.WithPort(cfg.Port),
		feedpoll.WithWorkers(cfg.Workers),
		feedpoll.WithLogger(logger),
	}
	if len(sources) > 0 {
		opts = append(opts, feedpoll.WithSources(sources...))
	}
	if cfg.FeedsFile != "" {
		opts = append(opts, feedpoll.WithFeedsFile(cfg.FeedsFile))
	}
	if cfg.RequestTimeout != 0 {
		opts = append(opts, feedpoll.WithRequestTimeout(cfg.RequestTimeout.Duration()))
	}
	if cfg.RateLimit != 0 {
		opts = append(opts, feedpoll.WithRateLimit(cfg.RateLimit.Duration()))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink := sink.NewKafka(sink.KafkaConfig{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.Topic,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
			DeadLetter:      cfg.Kafka.DeadLetter,
		}, logger)
		opts = append(opts, feedpoll.WithSink(kafkaSink))
		logger.Info("kafka sink configured", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.Database.Path != "" {
		itemStore, err := store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open item store: %w", err)
		}
		defer func() {
			if err := itemStore.Close(); err != nil {
				logger.Error("error closing item store", "error", err)
			}
		}()
		opts = append(opts, feedpoll.WithStore(itemStore))
		logger.Info("item store configured", "path", cfg.Database.Path)
	}

	p, err := feedpoll.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start polling - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("poller error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("poller error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
