package config

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"github.com/jfarrow/feedpoll"
)

// BuildSources converts parsed configuration into SDK Source values.
//
// It processes both direct sources and groups, returning a combined
// slice. Group dimensions are expanded via cartesian product.
func BuildSources(cfg *Config) ([]feedpoll.Source, error) {
	var sources []feedpoll.Source

	for _, sc := range cfg.Sources {
		src, err := buildSource(sc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	for _, gc := range cfg.Groups {
		groupSources, err := buildGroupSources(gc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, groupSources...)
	}

	return sources, nil
}

// buildSource converts a single SourceConfig to an SDK Source.
func buildSource(sc SourceConfig) (feedpoll.Source, error) {
	var opts []feedpoll.SourceOption

	if sc.Interval != 0 {
		opts = append(opts, feedpoll.WithInterval(sc.Interval.Duration()))
	}
	if sc.Priority != "" {
		opts = append(opts, feedpoll.WithPriority(feedpoll.ParsePriority(sc.Priority)))
	}
	if sc.Active != nil {
		opts = append(opts, feedpoll.WithActive(*sc.Active))
	}

	return feedpoll.NewSource(sc.Name, sc.URL, opts...)
}

// buildGroupSources expands a GroupConfig into multiple sources via
// cartesian product.
func buildGroupSources(gc GroupConfig) ([]feedpoll.Source, error) {
	// missingkey=error fails fast on template variables outside the
	// declared dimensions
	tmpl, err := template.New("url").Option("missingkey=error").Parse(gc.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("group (%s): invalid url_template: %w", gc.Name, err)
	}

	combinations := cartesianProduct(gc.Dimensions)

	var sources []feedpoll.Source
	for _, combo := range combinations {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, combo); err != nil {
			return nil, fmt.Errorf("group (%s) with dimensions %v: template execution failed: %w", gc.Name, combo, err)
		}

		src, err := buildSource(SourceConfig{
			Name:     buildGroupName(gc.Name, combo),
			URL:      buf.String(),
			Interval: gc.Interval,
			Priority: gc.Priority,
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// buildGroupName creates a display name for a group source.
func buildGroupName(baseName string, combo map[string]string) string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	name := baseName
	for _, k := range keys {
		name += " " + combo[k]
	}
	return name
}

// cartesianProduct generates all combinations of dimension values.
func cartesianProduct(dimensions map[string][]string) []map[string]string {
	if len(dimensions) == 0 {
		return nil
	}

	// sort dimension keys for deterministic ordering
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []map[string]string{{}}

	for _, key := range keys {
		values := dimensions[key]
		var newResult []map[string]string

		for _, combo := range result {
			for _, val := range values {
				newCombo := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					newCombo[k] = v
				}
				newCombo[key] = val
				newResult = append(newResult, newCombo)
			}
		}
		result = newResult
	}

	return result
}
