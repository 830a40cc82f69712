// Package experiment implements deterministic A/B assignment for search
// ranking. Experiments are deploy-time configuration loaded from a YAML
// file; assignments are pure functions of (session key, experiment id), so
// a cache of them is a convenience, never a system of record.
package experiment

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"quickcart-search/internal/ranking"

	"gopkg.in/yaml.v3"
)

// Variant is one arm of an experiment. Split is its share of included
// traffic in percent; Ranking overrides sections of the control config.
type Variant struct {
	ID      string           `yaml:"id"`
	Split   int              `yaml:"split"`
	Ranking ranking.Override `yaml:"ranking"`
}

// Experiment describes one ranking A/B test.
type Experiment struct {
	ID         string     `yaml:"id"`
	Active     bool       `yaml:"active"`
	StartAt    *time.Time `yaml:"start_at"`
	EndAt      *time.Time `yaml:"end_at"`
	Allocation int        `yaml:"allocation"` // percent of all traffic included
	Variants   []Variant  `yaml:"variants"`
}

// Validate rejects definitions that could never assign consistently.
// Variant splits may sum to less than 100 — the remainder falls back to
// control — but never more.
func (e Experiment) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("experiment: missing id")
	}
	if e.Allocation < 0 || e.Allocation > 100 {
		return fmt.Errorf("experiment %s: allocation %d out of range", e.ID, e.Allocation)
	}
	sum := 0
	for _, v := range e.Variants {
		if v.ID == "" {
			return fmt.Errorf("experiment %s: variant missing id", e.ID)
		}
		if v.Split < 0 {
			return fmt.Errorf("experiment %s: variant %s has negative split", e.ID, v.ID)
		}
		sum += v.Split
	}
	if sum > 100 {
		return fmt.Errorf("experiment %s: variant splits sum to %d%%", e.ID, sum)
	}
	return nil
}

// RunningAt reports whether the experiment accepts traffic at t.
func (e Experiment) RunningAt(t time.Time) bool {
	if !e.Active {
		return false
	}
	if e.StartAt != nil && t.Before(*e.StartAt) {
		return false
	}
	if e.EndAt != nil && t.After(*e.EndAt) {
		return false
	}
	return true
}

type file struct {
	Experiments []Experiment `yaml:"experiments"`
}

// Load reads experiment definitions from a YAML file. Misconfigured
// experiments are logged and dropped rather than failing the load — a bad
// experiment must degrade to control, not take the service down.
func Load(path string) ([]Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("experiment: parse %s: %w", path, err)
	}

	valid := f.Experiments[:0]
	for _, e := range f.Experiments {
		if err := e.Validate(); err != nil {
			slog.Warn("dropping misconfigured experiment",
				"component", "experiment",
				"experiment_id", e.ID,
				"error", err,
			)
			continue
		}
		valid = append(valid, e)
	}
	return valid, nil
}
