// Package main is the entry point for the feedpoll CLI.
//
// feedpoll can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	feedpoll serve -c config.yaml    # Start polling
//	feedpoll validate -c config.yaml # Validate configuration
//	feedpoll version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "feedpoll",
	Short: "An adaptive feed polling daemon",
	Long: `feedpoll polls RSS and Atom feeds on adaptive per-source intervals.

Busy feeds are polled more often, quiet feeds less often, and failing
feeds back off exponentially. Accepted items are deduplicated, validated,
and published to Kafka (or logged when no brokers are configured).

Quick start:
  1. Create a config file (feedpoll.yaml)
  2. Run: feedpoll serve -c feedpoll.yaml
  3. Check http://localhost:8080/health

Example config:
  port: 8080
  feeds_file: feeds.json
  sources:
    - name: BBC World
      url: https://feeds.bbci.co.uk/news/world/rss.xml
      priority: high`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this feedpoll binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("feedpoll %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
