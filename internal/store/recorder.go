package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/nvandessel/fuzzbrake/internal/constants"
	"github.com/nvandessel/fuzzbrake/internal/simulation"
)

// RunRecorder records one run's ticks into a RunStore. It implements
// simulation.Recorder and finishes the run itself when it sees the engine
// stop; Finish covers stops that happen between ticks (manual stop, reset).
type RunRecorder struct {
	mu       sync.Mutex
	store    RunStore
	run      Run
	ticks    int
	finished bool
}

var _ simulation.Recorder = (*RunRecorder)(nil)

// StartRecording opens a new run in s.
func StartRecording(ctx context.Context, s RunStore, params RunParams) (*RunRecorder, error) {
	run, err := s.BeginRun(ctx, params)
	if err != nil {
		return nil, err
	}
	return &RunRecorder{store: s, run: run}, nil
}

// Run returns the run header as last known to the recorder.
func (r *RunRecorder) Run() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}

// RecordTick stores the state as a sample. Ticks after the run finished are ignored.
func (r *RunRecorder) RecordTick(ctx context.Context, state simulation.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return nil
	}

	rules := make([]string, len(state.ActiveRules))
	for i, rule := range state.ActiveRules {
		rules[i] = rule.String()
	}
	if err := r.store.RecordSample(ctx, Sample{
		RunID:       r.run.ID,
		Tick:        state.Tick,
		Speed:       state.Speed,
		Position:    state.Position,
		Distance:    state.Distance,
		Brake:       state.BrakeIntensity,
		Running:     state.Running,
		ActiveRules: rules,
	}); err != nil {
		return err
	}
	r.ticks = state.Tick

	if !state.Running {
		return r.finishLocked(ctx, state.StopReason)
	}
	return nil
}

// Finish closes the run with outcome. Calling it again is a no-op.
func (r *RunRecorder) Finish(ctx context.Context, outcome constants.Outcome) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.finishLocked(ctx, outcome); err != nil {
		return r.run, err
	}
	return r.run, nil
}

func (r *RunRecorder) finishLocked(ctx context.Context, outcome constants.Outcome) error {
	if r.finished {
		return nil
	}
	if err := r.store.FinishRun(ctx, r.run.ID, outcome, r.ticks); err != nil {
		return fmt.Errorf("finishing run %s: %w", r.run.ID, err)
	}
	r.finished = true

	finished, err := r.store.GetRun(ctx, r.run.ID)
	if err != nil {
		return err
	}
	r.run = finished
	return nil
}
