package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullConfig = `
port: 9090
feeds_file: feeds.json
workers: 4
request_timeout: 15s
rate_limit: 2s

database:
  path: items.db

kafka:
  brokers: ["broker-1:9092", "broker-2:9092"]
  topic: feed.items
  dead_letter_topic: feed.items.dlq
  dead_letter: true

sources:
  - name: BBC World
    url: https://feeds.bbci.co.uk/news/world/rss.xml
    interval: 30m
    priority: high
  - name: Dormant
    url: https://example.com/dormant.xml
    active: false

groups:
  - name: HN
    url_template: "https://hnrss.org/{{.section}}"
    dimensions:
      section: [frontpage, newest]
    interval: 15m
    priority: low
`

// TestParse_FullConfig verifies every section parses into the expected
// values.
func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.FeedsFile != "feeds.json" {
		t.Errorf("feeds_file = %q", cfg.FeedsFile)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}
	if cfg.RequestTimeout.Duration() != 15*time.Second {
		t.Errorf("request_timeout = %v", cfg.RequestTimeout.Duration())
	}
	if cfg.RateLimit.Duration() != 2*time.Second {
		t.Errorf("rate_limit = %v", cfg.RateLimit.Duration())
	}
	if cfg.Database.Path != "items.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "feed.items" || !cfg.Kafka.DeadLetter {
		t.Errorf("kafka section = %+v", cfg.Kafka)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[0].Interval.Duration() != 30*time.Minute {
		t.Errorf("source interval = %v", cfg.Sources[0].Interval.Duration())
	}
	if cfg.Sources[1].Active == nil || *cfg.Sources[1].Active {
		t.Error("explicit active: false not parsed")
	}
	if len(cfg.Groups) != 1 || len(cfg.Groups[0].Dimensions["section"]) != 2 {
		t.Errorf("groups = %+v", cfg.Groups)
	}
}

// TestParse_Defaults verifies port and workers default when omitted.
func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
sources:
  - name: a
    url: https://example.com/feed
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Port)
	}
	if cfg.Workers != 10 {
		t.Errorf("default workers = %d, want 10", cfg.Workers)
	}
}

// TestParse_EnvExpansion verifies ${VAR} and ${VAR:-default} in URLs,
// paths, and broker addresses.
func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("FEED_HOST", "feeds.example.com")

	cfg, err := Parse([]byte(`
feeds_file: "${FEEDS_PATH:-/etc/feedpoll/feeds.json}"
kafka:
  brokers: ["${KAFKA_BROKER:-localhost:9092}"]
  topic: items
sources:
  - name: a
    url: "https://${FEED_HOST}/rss.xml"
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if cfg.Sources[0].URL != "https://feeds.example.com/rss.xml" {
		t.Errorf("url = %q", cfg.Sources[0].URL)
	}
	if cfg.FeedsFile != "/etc/feedpoll/feeds.json" {
		t.Errorf("feeds_file = %q, want the fallback default", cfg.FeedsFile)
	}
	if cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("broker = %q, want the fallback default", cfg.Kafka.Brokers[0])
	}
}

// TestParse_MissingEnvVarFails verifies an unset variable without a
// default is an error, not a silent empty string.
func TestParse_MissingEnvVarFails(t *testing.T) {
	_, err := Parse([]byte(`
sources:
  - name: a
    url: "https://${DEFINITELY_NOT_SET_ANYWHERE}/rss.xml"
`))
	if err == nil || !strings.Contains(err.Error(), "DEFINITELY_NOT_SET_ANYWHERE") {
		t.Errorf("Parse() error = %v, want missing-variable error", err)
	}
}

// TestParse_ValidationErrors covers the rejection paths.
func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no sources at all", `port: 8080`},
		{"source missing name", `
sources:
  - url: https://example.com/feed
`},
		{"source missing url", `
sources:
  - name: a
`},
		{"bad scheme", `
sources:
  - name: a
    url: ftp://example.com/feed
`},
		{"bad priority", `
sources:
  - name: a
    url: https://example.com/feed
    priority: urgent
`},
		{"bad duration", `
sources:
  - name: a
    url: https://example.com/feed
    interval: soon
`},
		{"port out of range", `
port: 70000
sources:
  - name: a
    url: https://example.com/feed
`},
		{"kafka brokers without topic", `
kafka:
  brokers: ["localhost:9092"]
sources:
  - name: a
    url: https://example.com/feed
`},
		{"dead letter without topic", `
kafka:
  brokers: ["localhost:9092"]
  topic: items
  dead_letter: true
sources:
  - name: a
    url: https://example.com/feed
`},
		{"group without dimensions", `
groups:
  - name: g
    url_template: "https://example.com/{{.x}}"
`},
		{"group with empty dimension", `
groups:
  - name: g
    url_template: "https://example.com/{{.x}}"
    dimensions:
      x: []
`},
	}

	for _, tt := range tests {
		if _, err := Parse([]byte(tt.yaml)); err == nil {
			t.Errorf("%s: Parse() succeeded, want error", tt.name)
		}
	}
}

// TestLoad_ReadsFile verifies the file-based entry point.
func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedpoll.yaml")
	if err := os.WriteFile(path, []byte(fullConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() on a missing file succeeded")
	}
}
