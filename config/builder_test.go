package config

import (
	"testing"
	"time"

	"github.com/jfarrow/feedpoll"
)

// TestBuildSources_Direct verifies direct sources carry their options
// through to the SDK type.
func TestBuildSources_Direct(t *testing.T) {
	inactive := false
	cfg := &Config{
		Sources: []SourceConfig{
			{
				Name:     "BBC",
				URL:      "https://example.com/bbc.xml",
				Interval: Duration(30 * time.Minute),
				Priority: "high",
			},
			{
				Name:   "Dormant",
				URL:    "https://example.com/dormant.xml",
				Active: &inactive,
			},
		},
	}

	sources, err := BuildSources(cfg)
	if err != nil {
		t.Fatalf("BuildSources() failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("built %d sources, want 2", len(sources))
	}

	if sources[0].Interval() != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", sources[0].Interval())
	}
	if sources[0].Priority() != feedpoll.PriorityHigh {
		t.Errorf("priority = %q, want high", sources[0].Priority())
	}
	if sources[1].Active() {
		t.Error("explicitly inactive source built as active")
	}
}

// TestBuildSources_GroupExpansion verifies the cartesian product with
// deterministic naming.
func TestBuildSources_GroupExpansion(t *testing.T) {
	cfg := &Config{
		Groups: []GroupConfig{{
			Name:        "Feeds",
			URLTemplate: "https://{{.region}}.example.com/{{.section}}.xml",
			Dimensions: map[string][]string{
				"region":  {"uk", "us"},
				"section": {"news", "sport"},
			},
			Priority: "low",
		}},
	}

	sources, err := BuildSources(cfg)
	if err != nil {
		t.Fatalf("BuildSources() failed: %v", err)
	}
	if len(sources) != 4 {
		t.Fatalf("built %d sources, want 4", len(sources))
	}

	// dimension keys sort alphabetically: region before section
	wantNames := []string{"Feeds uk news", "Feeds uk sport", "Feeds us news", "Feeds us sport"}
	wantURLs := []string{
		"https://uk.example.com/news.xml",
		"https://uk.example.com/sport.xml",
		"https://us.example.com/news.xml",
		"https://us.example.com/sport.xml",
	}
	for i, src := range sources {
		if src.Name() != wantNames[i] {
			t.Errorf("sources[%d].Name() = %q, want %q", i, src.Name(), wantNames[i])
		}
		if src.URL() != wantURLs[i] {
			t.Errorf("sources[%d].URL() = %q, want %q", i, src.URL(), wantURLs[i])
		}
		if src.Priority() != feedpoll.PriorityLow {
			t.Errorf("sources[%d].Priority() = %q, want low", i, src.Priority())
		}
	}
}

// TestBuildSources_TemplateErrors verifies bad templates and references
// to undeclared dimensions fail fast.
func TestBuildSources_TemplateErrors(t *testing.T) {
	bad := &Config{
		Groups: []GroupConfig{{
			Name:        "Broken",
			URLTemplate: "https://example.com/{{.section",
			Dimensions:  map[string][]string{"section": {"a"}},
		}},
	}
	if _, err := BuildSources(bad); err == nil {
		t.Error("unparseable template accepted")
	}

	undeclared := &Config{
		Groups: []GroupConfig{{
			Name:        "Ghost",
			URLTemplate: "https://example.com/{{.other}}",
			Dimensions:  map[string][]string{"section": {"a"}},
		}},
	}
	if _, err := BuildSources(undeclared); err == nil {
		t.Error("template referencing an undeclared dimension accepted")
	}
}

// TestBuildSources_InvalidSourceSurfaces verifies SDK-level validation
// errors propagate out of the builder.
func TestBuildSources_InvalidSourceSurfaces(t *testing.T) {
	cfg := &Config{
		Sources: []SourceConfig{{Name: "bad", URL: "ftp://example.com/feed"}},
	}
	if _, err := BuildSources(cfg); err == nil {
		t.Error("source with a bad scheme accepted")
	}
}
