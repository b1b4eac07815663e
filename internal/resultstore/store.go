// Package resultstore keeps a local record of what each run measured and where it was submitted.
package resultstore

import (
	"context"
	"time"
)

// Run describes one execution of a suite.
type Run struct {
	ID        string
	Suite     string
	AutoRun   bool
	StartTime time.Time
}

// Record is the outcome of a single measurement within a run.
type Record struct {
	// Locally generated, unique across runs.
	ID         string
	RunID      string
	Suite      string
	Experiment string
	Origin     string
	// Empty for experiments without input.
	Input          string
	ReportID       string
	MeasurementUID string
	// Empty if the measurement was made and submitted.
	Failure         string
	FailureCategory string
	StartTime       time.Time
	Runtime         time.Duration
	// Position of the record within its run.
	Seq int
}

// Failed returns true if the measurement could not be made or submitted.
func (r *Record) Failed() bool {
	return r.Failure != ""
}

// Store persists runs and their records. Implementations must be safe for concurrent use.
type Store interface {
	// SaveRun creates or replaces a run.
	SaveRun(ctx context.Context, run *Run) error
	// Save creates or replaces records. Records are stored atomically: either all or none are saved.
	Save(ctx context.Context, records ...*Record) error
	// ByRun returns the records of a run ordered by Seq. It returns an empty slice for an unknown run.
	ByRun(ctx context.Context, runID string) ([]*Record, error)
	// Runs returns all runs ordered by start time.
	Runs(ctx context.Context) ([]*Run, error)
}
