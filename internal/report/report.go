// Package report aggregates row outcomes into the run report written at the
// end of a batch.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"manifestfill/internal/manifest"
)

// Summary counts outcomes by status.
type Summary struct {
	Total         int `yaml:"total" json:"total"`
	Submitted     int `yaml:"submitted" json:"submitted"`
	Failed        int `yaml:"failed" json:"failed"`
	LowConfidence int `yaml:"low_confidence" json:"low_confidence"`
	// NotProcessed counts records skipped because the batch was interrupted.
	NotProcessed int `yaml:"not_processed" json:"not_processed"`
}

// Item is the report line for one record.
type Item struct {
	manifest.Outcome `yaml:",inline"`
	LowConfidence    bool `yaml:"low_confidence,omitempty" json:"low_confidence,omitempty"`
}

// RunReport is the stable output of a batch run.
type RunReport struct {
	RunID     string `yaml:"run_id" json:"run_id"`
	TargetURL string `yaml:"target_url" json:"target_url"`
	BatchFile string `yaml:"batch_file" json:"batch_file"`

	StartedAt  time.Time `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time `yaml:"finished_at" json:"finished_at"`

	Interrupted bool    `yaml:"interrupted,omitempty" json:"interrupted,omitempty"`
	Summary     Summary `yaml:"summary" json:"summary"`
	Items       []Item  `yaml:"items" json:"items"`
}

// Build assembles a report from outcomes. total is the number of records in
// the batch, which exceeds len(outcomes) when the run was interrupted.
func Build(runID string, total int, outcomes []manifest.Outcome) *RunReport {
	r := &RunReport{RunID: runID}
	for _, o := range outcomes {
		r.Items = append(r.Items, Item{Outcome: o, LowConfidence: o.LowConfidence()})
	}
	r.Summary.Total = total
	r.Interrupted = len(outcomes) < total
	r.Finalize()
	return r
}

// Finalize normalizes timestamps to UTC and recomputes the summary from the
// items. Items keep batch order.
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := Summary{Total: r.Summary.Total}
	for _, it := range r.Items {
		switch it.Status {
		case manifest.StatusSubmitted:
			s.Submitted++
		case manifest.StatusFailed:
			s.Failed++
		}
		if it.LowConfidence {
			s.LowConfidence++
		}
	}
	if s.Total < len(r.Items) {
		s.Total = len(r.Items)
	}
	s.NotProcessed = s.Total - len(r.Items)
	r.Summary = s
}

// Failed returns the items that were not submitted.
func (r *RunReport) Failed() []Item {
	var out []Item
	for _, it := range r.Items {
		if it.Status != manifest.StatusSubmitted {
			out = append(out, it)
		}
	}
	return out
}

// Save writes the report as JSON when path ends in .json and YAML otherwise.
func (r *RunReport) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = yaml.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
