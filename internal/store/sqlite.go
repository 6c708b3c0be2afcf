package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/fuzzbrake/internal/constants"
)

// SQLiteRunStore implements RunStore on a single SQLite file.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore opens (creating if needed) the run log at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// BeginRun inserts a new run header and returns it.
func (s *SQLiteRunStore) BeginRun(ctx context.Context, params RunParams) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{
		ID:              uuid.NewString(),
		Scenario:        params.Scenario,
		StartedAt:       s.now().UTC(),
		InitialSpeed:    params.Speed,
		InitialDistance: params.Distance,
		Multiplier:      params.Multiplier,
		Outcome:         constants.OutcomeNone,
	}
	if run.Scenario == "" {
		run.Scenario = "custom"
	}
	if run.Multiplier <= 0 {
		run.Multiplier = constants.DefaultSpeedMultiplier
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, started_at, initial_speed, initial_distance, multiplier, outcome, ticks)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		run.ID, run.Scenario, formatTime(run.StartedAt),
		run.InitialSpeed, run.InitialDistance, run.Multiplier, string(run.Outcome))
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// RecordSample appends one tick to a run. Recording the same tick twice
// replaces the earlier sample.
func (s *SQLiteRunStore) RecordSample(ctx context.Context, sample Sample) error {
	rules, err := json.Marshal(nonNil(sample.ActiveRules))
	if err != nil {
		return fmt.Errorf("failed to marshal active rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO samples (run_id, tick, speed, position, distance, brake, running, active_rules)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.RunID, sample.Tick, sample.Speed, sample.Position, sample.Distance,
		sample.Brake, boolToInt(sample.Running), string(rules))
	if err != nil {
		return fmt.Errorf("failed to insert sample %d for run %s: %w", sample.Tick, sample.RunID, err)
	}
	return nil
}

// FinishRun stamps a run's outcome and tick count.
func (s *SQLiteRunStore) FinishRun(ctx context.Context, runID string, outcome constants.Outcome, ticks int) error {
	if !outcome.Valid() {
		return fmt.Errorf("invalid outcome %q", outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, outcome = ?, ticks = ? WHERE id = ?`,
		formatTime(s.now().UTC()), string(outcome), ticks, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, scenario, started_at, finished_at, initial_speed, initial_distance, multiplier, outcome, ticks
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run header.
func (s *SQLiteRunStore) GetRun(ctx context.Context, runID string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, started_at, finished_at, initial_speed, initial_distance, multiplier, outcome, ticks
		FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// Samples returns a run's samples in tick order.
func (s *SQLiteRunStore) Samples(ctx context.Context, runID string) ([]Sample, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, tick, speed, position, distance, brake, running, active_rules
		FROM samples WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var (
			sample  Sample
			running int
			rules   sql.NullString
		)
		if err := rows.Scan(&sample.RunID, &sample.Tick, &sample.Speed, &sample.Position,
			&sample.Distance, &sample.Brake, &running, &rules); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		sample.Running = running != 0
		sample.ActiveRules = []string{}
		if rules.Valid && rules.String != "" {
			if err := json.Unmarshal([]byte(rules.String), &sample.ActiveRules); err != nil {
				return nil, fmt.Errorf("failed to decode active rules for tick %d: %w", sample.Tick, err)
			}
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// DeleteRun removes a run and its samples.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Helper functions

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		outcome    string
	)
	if err := row.Scan(&run.ID, &run.Scenario, &startedAt, &finishedAt,
		&run.InitialSpeed, &run.InitialDistance, &run.Multiplier, &outcome, &run.Ticks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Outcome = constants.Outcome(outcome)

	t, err := parseTime(startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad started_at: %w", run.ID, err)
	}
	run.StartedAt = t

	if finishedAt.Valid {
		ft, err := parseTime(finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: bad finished_at: %w", run.ID, err)
		}
		run.FinishedAt = &ft
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
