package manifest

import (
	"errors"
	"time"
)

// Row-scoped failures. None of them stops a batch.
var (
	// ErrEntrySurfaceTimeout: the identity probe never appeared after the
	// open trigger was clicked.
	ErrEntrySurfaceTimeout = errors.New("entry surface did not open")
	// ErrSubmissionUnconfirmed: every confirmation tier ran and the entry
	// surface stayed open.
	ErrSubmissionUnconfirmed = errors.New("could not confirm submission after all strategies")
	// ErrRowPanic wraps a panic recovered while processing a row.
	ErrRowPanic = errors.New("row processing panicked")
)

// Status is the terminal state of one record.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Resolution records how an autocomplete field was settled.
type Resolution struct {
	Field string `yaml:"field" json:"field"`
	Query string `yaml:"query" json:"query"`
	// Mode is one of skipped, exact, prefix, sentinel, last_resort.
	Mode  string `yaml:"mode" json:"mode"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// LastResortMode is the Resolution.Mode of a blind first-entry selection.
const LastResortMode = "last_resort"

// Outcome is the result of processing one record. It is built once by the
// driver and never modified.
type Outcome struct {
	Row    int    `yaml:"row" json:"row"`
	TripID string `yaml:"trip_id" json:"trip_id"`
	Status Status `yaml:"status" json:"status"`
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
	// Tier is the confirmation strategy that closed the entry surface.
	Tier        string        `yaml:"tier,omitempty" json:"tier,omitempty"`
	Resolutions []Resolution  `yaml:"resolutions,omitempty" json:"resolutions,omitempty"`
	Duration    time.Duration `yaml:"duration" json:"duration"`

	Err error `yaml:"-" json:"-"`
}

// Submitted builds a successful outcome.
func Submitted(rec Record, tier string, res []Resolution, d time.Duration) Outcome {
	return Outcome{
		Row:         rec.Row,
		TripID:      rec.TripID,
		Status:      StatusSubmitted,
		Tier:        tier,
		Resolutions: res,
		Duration:    d,
	}
}

// Failed builds a failed outcome carrying err as the reason.
func Failed(rec Record, err error, res []Resolution, d time.Duration) Outcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{
		Row:         rec.Row,
		TripID:      rec.TripID,
		Status:      StatusFailed,
		Reason:      reason,
		Resolutions: res,
		Duration:    d,
		Err:         err,
	}
}

// OK reports whether the record was submitted.
func (o Outcome) OK() bool { return o.Status == StatusSubmitted }

// LowConfidence reports whether any autocomplete field was settled by the
// last-resort selection, which may have picked the wrong entry.
func (o Outcome) LowConfidence() bool {
	for _, r := range o.Resolutions {
		if r.Mode == LastResortMode {
			return true
		}
	}
	return false
}
