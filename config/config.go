// Package config provides YAML configuration parsing for feedpoll.
//
// This package enables running feedpoll as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	feeds_file: feeds.json
//	workers: 10
//
//	database:
//	  path: items.db
//
//	kafka:
//	  brokers: ["${KAFKA_BROKERS:-localhost:9092}"]
//	  topic: feed.items
//	  dead_letter_topic: feed.items.dlq
//	  dead_letter: true
//
//	sources:
//	  - name: BBC World
//	    url: https://feeds.bbci.co.uk/news/world/rss.xml
//	    interval: 30m
//	    priority: high
//
//	groups:
//	  - name: HN
//	    url_template: "https://hnrss.org/{{.section}}"
//	    dimensions:
//	      section: [frontpage, newest]
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jfarrow/feedpoll"
)

const (
	defaultPort    = 8080
	defaultWorkers = 10
)

// Config is the root configuration structure for feedpoll.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the operational HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// FeedsFile is the path of the JSON source registry. Optional;
	// sources may instead (or additionally) come from Sources and
	// Groups. Supports environment variable substitution.
	FeedsFile string `yaml:"feeds_file"`

	// Workers is the poll worker pool size. Defaults to 10.
	Workers int `yaml:"workers"`

	// RequestTimeout bounds each feed request. Defaults to 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// RateLimit is the minimum spacing between any two requests across
	// all sources. Defaults to 1s.
	RateLimit Duration `yaml:"rate_limit"`

	// Database configures item persistence. Empty path disables it.
	Database DatabaseConfig `yaml:"database"`

	// Kafka configures the delivery sink. With no brokers configured,
	// items are logged instead of published.
	Kafka KafkaConfig `yaml:"kafka"`

	// Sources defines individual feed sources.
	Sources []SourceConfig `yaml:"sources"`

	// Groups defines source groups that expand via cartesian product.
	Groups []GroupConfig `yaml:"groups"`
}

// DatabaseConfig configures the SQLite item store.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:". Supports
	// environment variable substitution. Empty disables persistence.
	Path string `yaml:"path"`
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	// Brokers are the bootstrap broker addresses. Values support
	// environment variable substitution.
	Brokers []string `yaml:"brokers"`

	// Topic receives accepted items.
	Topic string `yaml:"topic"`

	// DeadLetterTopic receives rejected and undeliverable items.
	DeadLetterTopic string `yaml:"dead_letter_topic"`

	// DeadLetter enables dead-letter routing.
	DeadLetter bool `yaml:"dead_letter"`
}

// SourceConfig defines a single feed source.
type SourceConfig struct {
	// Name is the source's display name.
	Name string `yaml:"name"`

	// URL is the feed URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Interval is the source's starting poll interval. If not
	// specified, the default (1h) applies.
	Interval Duration `yaml:"interval"`

	// Priority orders dispatch when several sources come due at once:
	// high, medium, or low. Defaults to medium.
	Priority string `yaml:"priority"`

	// Active defaults to true; set false to keep a source configured
	// but unpolled.
	Active *bool `yaml:"active"`
}

// GroupConfig defines a source group that expands via cartesian product.
//
// For example, with dimensions {region: [uk, us], section: [news, sport]},
// the group expands to 4 sources: uk/news, uk/sport, us/news, us/sport.
type GroupConfig struct {
	// Name is the base name for generated sources.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating source URLs.
	// Dimension keys are available as template variables: {{.region}}
	// Supports environment variable substitution in the template.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	// The cartesian product of all dimensions generates the sources.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Interval is the starting poll interval for all generated sources.
	Interval Duration `yaml:"interval"`

	// Priority applies to all generated sources.
	Priority string `yaml:"priority"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in paths, URLs, templates, and
// broker addresses. Defaults are applied for Port (8080) and Workers
// (10).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaultWorkers
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", c.RequestTimeout.Duration())
	}
	if c.RateLimit.Duration() < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %s", c.RateLimit.Duration())
	}

	var err error
	if c.FeedsFile != "" {
		if c.FeedsFile, err = expandEnvVars(c.FeedsFile); err != nil {
			return fmt.Errorf("feeds_file: %w", err)
		}
	}
	if c.Database.Path != "" {
		if c.Database.Path, err = expandEnvVars(c.Database.Path); err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
	}

	for i, broker := range c.Kafka.Brokers {
		if c.Kafka.Brokers[i], err = expandEnvVars(broker); err != nil {
			return fmt.Errorf("kafka.brokers[%d]: %w", i, err)
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are configured")
	}
	if c.Kafka.DeadLetter && c.Kafka.DeadLetterTopic == "" {
		return fmt.Errorf("kafka.dead_letter_topic is required when dead_letter is enabled")
	}

	for i := range c.Sources {
		sc := &c.Sources[i]

		if sc.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if sc.URL == "" {
			return fmt.Errorf("sources[%d] (%s): url is required", i, sc.Name)
		}
		if sc.URL, err = expandEnvVars(sc.URL); err != nil {
			return fmt.Errorf("sources[%d] (%s): url: %w", i, sc.Name, err)
		}

		parsedURL, err := url.Parse(sc.URL)
		if err != nil {
			return fmt.Errorf("sources[%d] (%s): invalid url: %w", i, sc.Name, err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("sources[%d] (%s): url scheme must be http or https, got %q", i, sc.Name, parsedURL.Scheme)
		}

		if sc.Interval.Duration() < 0 {
			return fmt.Errorf("sources[%d] (%s): interval cannot be negative, got %s", i, sc.Name, sc.Interval.Duration())
		}
		if err := validatePriority(sc.Priority); err != nil {
			return fmt.Errorf("sources[%d] (%s): %w", i, sc.Name, err)
		}
	}

	for i := range c.Groups {
		gc := &c.Groups[i]

		if gc.Name == "" {
			return fmt.Errorf("groups[%d]: name is required", i)
		}
		if gc.URLTemplate == "" {
			return fmt.Errorf("groups[%d] (%s): url_template is required", i, gc.Name)
		}
		if gc.URLTemplate, err = expandEnvVars(gc.URLTemplate); err != nil {
			return fmt.Errorf("groups[%d] (%s): url_template: %w", i, gc.Name, err)
		}
		if len(gc.Dimensions) == 0 {
			return fmt.Errorf("groups[%d] (%s): at least one dimension is required", i, gc.Name)
		}
		for dim, values := range gc.Dimensions {
			if len(values) == 0 {
				return fmt.Errorf("groups[%d] (%s): dimension %q has no values", i, gc.Name, dim)
			}
		}
		if gc.Interval.Duration() < 0 {
			return fmt.Errorf("groups[%d] (%s): interval cannot be negative, got %s", i, gc.Name, gc.Interval.Duration())
		}
		if err := validatePriority(gc.Priority); err != nil {
			return fmt.Errorf("groups[%d] (%s): %w", i, gc.Name, err)
		}
	}

	if c.FeedsFile == "" && len(c.Sources) == 0 && len(c.Groups) == 0 {
		return fmt.Errorf("no sources configured: set feeds_file, sources, or groups")
	}

	return nil
}

// validatePriority rejects priority strings that are neither empty nor
// one of the defined levels. Empty means the default (medium).
func validatePriority(s string) error {
	switch feedpoll.Priority(s) {
	case "", feedpoll.PriorityHigh, feedpoll.PriorityMedium, feedpoll.PriorityLow:
		return nil
	default:
		return fmt.Errorf("priority must be high, medium, or low, got %q", s)
	}
}
