// Package store persists simulation runs: one row per run and one row per
// executed tick, in a local SQLite database.
package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/nvandessel/fuzzbrake/internal/constants"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// Run is the header of one recorded simulation run.
type Run struct {
	ID              string            `json:"id"`
	Scenario        string            `json:"scenario"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
	InitialSpeed    float64           `json:"initial_speed"`
	InitialDistance float64           `json:"initial_distance"`
	Multiplier      float64           `json:"multiplier"`
	Outcome         constants.Outcome `json:"outcome"`
	Ticks           int               `json:"ticks"`
}

// Finished reports whether FinishRun has been called for the run.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// RunParams describes a run about to start.
type RunParams struct {
	Scenario   string
	Speed      float64
	Distance   float64
	Multiplier float64
}

// Sample is the state after one executed tick.
type Sample struct {
	RunID       string   `json:"run_id"`
	Tick        int      `json:"tick"`
	Speed       float64  `json:"speed"`
	Position    float64  `json:"position"`
	Distance    float64  `json:"distance"`
	Brake       float64  `json:"brake"`
	Running     bool     `json:"running"`
	ActiveRules []string `json:"active_rules"`
}

// RunStore records and queries simulation runs.
type RunStore interface {
	BeginRun(ctx context.Context, params RunParams) (Run, error)
	RecordSample(ctx context.Context, sample Sample) error
	FinishRun(ctx context.Context, runID string, outcome constants.Outcome, ticks int) error

	// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, runID string) (Run, error)
	Samples(ctx context.Context, runID string) ([]Sample, error)
	DeleteRun(ctx context.Context, runID string) error

	// ExportJSONL writes one JSON object per sample, in tick order.
	ExportJSONL(ctx context.Context, runID string, w io.Writer) error

	Close() error
}
