package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfarrow/feedpoll/config"
)

// validateCmd validates a config file without starting the daemon.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a feedpoll configuration file without starting the daemon.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  feedpoll validate -c config.yaml
  feedpoll validate --config /etc/feedpoll/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Count total sources (direct + from groups)
	directSources := len(cfg.Sources)
	groupSources := 0
	for _, g := range cfg.Groups {
		// Calculate cartesian product size
		size := 1
		for _, vals := range g.Dimensions {
			size *= len(vals)
		}
		groupSources += size
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:       %d\n", cfg.Port)
	fmt.Printf("  Workers:    %d\n", cfg.Workers)
	if cfg.FeedsFile != "" {
		fmt.Printf("  Feeds file: %s\n", cfg.FeedsFile)
	}
	fmt.Printf("  Sources:    %d direct + %d from groups = %d total\n",
		directSources, groupSources, directSources+groupSources)
	if len(cfg.Kafka.Brokers) > 0 {
		fmt.Printf("  Kafka:      %v -> %s\n", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	return nil
}
