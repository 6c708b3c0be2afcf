package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// ImportRun inserts a complete run with its original ID and timestamps.
// It reports false, without touching the store, when a run with the same
// ID already exists.
func (s *SQLiteRunStore) ImportRun(ctx context.Context, run Run, samples []Sample) (bool, error) {
	if !run.Outcome.Valid() {
		return false, fmt.Errorf("run %s: invalid outcome %q", run.ID, run.Outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	var finishedAt any
	if run.FinishedAt != nil {
		finishedAt = formatTime(run.FinishedAt.UTC())
	}
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (id, scenario, started_at, finished_at, initial_speed, initial_distance, multiplier, outcome, ticks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, formatTime(run.StartedAt.UTC()), finishedAt,
		run.InitialSpeed, run.InitialDistance, run.Multiplier, string(run.Outcome), run.Ticks)
	if err != nil {
		return false, fmt.Errorf("failed to import run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, sample := range samples {
		rules, err := json.Marshal(nonNil(sample.ActiveRules))
		if err != nil {
			return false, fmt.Errorf("failed to marshal active rules: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO samples (run_id, tick, speed, position, distance, brake, running, active_rules)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, sample.Tick, sample.Speed, sample.Position, sample.Distance,
			sample.Brake, boolToInt(sample.Running), string(rules)); err != nil {
			return false, fmt.Errorf("failed to import sample %d for run %s: %w", sample.Tick, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit import of run %s: %w", run.ID, err)
	}
	return true, nil
}
