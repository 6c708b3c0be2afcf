package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/fuzzbrake/internal/constants"
)

func newTestStore(t *testing.T) *SQLiteRunStore {
	t.Helper()
	s, err := NewSQLiteRunStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteRunStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := NewSQLiteRunStore(DBPath(dir))
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, "runs.db")); os.IsNotExist(err) {
		t.Error("runs.db was not created")
	}
	if s.Path() != DBPath(dir) {
		t.Errorf("Path() = %s", s.Path())
	}
}

func TestSQLiteRunStore_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.BeginRun(ctx, RunParams{Scenario: "near-fast", Speed: 100, Distance: 20, Multiplier: 1})
	if err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}
	if run.ID == "" || run.Finished() {
		t.Errorf("BeginRun() = %+v", run)
	}

	for tick := 1; tick <= 3; tick++ {
		err := s.RecordSample(ctx, Sample{
			RunID:       run.ID,
			Tick:        tick,
			Speed:       100 - float64(tick),
			Position:    540 + float64(tick),
			Distance:    20 - float64(tick),
			Brake:       75,
			Running:     tick < 3,
			ActiveRules: []string{"IF Fast AND Near THEN Strong Brake"},
		})
		if err != nil {
			t.Fatalf("RecordSample(%d) error = %v", tick, err)
		}
	}

	if err := s.FinishRun(ctx, run.ID, constants.OutcomeCollision, 3); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !got.Finished() || got.Outcome != constants.OutcomeCollision || got.Ticks != 3 {
		t.Errorf("GetRun() = %+v", got)
	}
	if got.Scenario != "near-fast" || got.InitialSpeed != 100 || got.InitialDistance != 20 {
		t.Errorf("run header not preserved: %+v", got)
	}
	if got.StartedAt.IsZero() || got.FinishedAt.Before(got.StartedAt) {
		t.Errorf("timestamps = %v / %v", got.StartedAt, got.FinishedAt)
	}

	samples, err := s.Samples(ctx, run.ID)
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("Samples() = %d, want 3", len(samples))
	}
	for i, sample := range samples {
		if sample.Tick != i+1 {
			t.Errorf("sample %d tick = %d", i, sample.Tick)
		}
		if len(sample.ActiveRules) != 1 || !strings.HasPrefix(sample.ActiveRules[0], "IF Fast") {
			t.Errorf("sample %d rules = %v", i, sample.ActiveRules)
		}
	}
	if samples[2].Running || !samples[0].Running {
		t.Error("running flag not round-tripped")
	}
}

func TestSQLiteRunStore_RecordSampleReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run, _ := s.BeginRun(ctx, RunParams{Scenario: "default", Speed: 80, Distance: 100})

	_ = s.RecordSample(ctx, Sample{RunID: run.ID, Tick: 1, Speed: 10})
	_ = s.RecordSample(ctx, Sample{RunID: run.ID, Tick: 1, Speed: 20})

	samples, _ := s.Samples(ctx, run.ID)
	if len(samples) != 1 || samples[0].Speed != 20 {
		t.Errorf("samples = %+v, want single replaced sample", samples)
	}
	if samples[0].ActiveRules == nil {
		t.Error("nil rules should read back as empty slice")
	}
}

func TestSQLiteRunStore_RecordSampleUnknownRun(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordSample(context.Background(), Sample{RunID: "missing", Tick: 1})
	if err == nil {
		t.Error("RecordSample for unknown run should violate the foreign key")
	}
}

func TestSQLiteRunStore_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
	if _, err := s.Samples(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Samples() error = %v, want ErrRunNotFound", err)
	}
	if err := s.FinishRun(ctx, "nope", constants.OutcomeRest, 1); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun() error = %v, want ErrRunNotFound", err)
	}
	if err := s.DeleteRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("DeleteRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteRunStore_FinishRunInvalidOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run, _ := s.BeginRun(ctx, RunParams{Scenario: "default"})
	if err := s.FinishRun(ctx, run.ID, constants.Outcome("exploded"), 1); err == nil {
		t.Error("FinishRun() accepted an invalid outcome")
	}
}

func TestSQLiteRunStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"default", "far-slow", "emergency"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		run, err := s.BeginRun(ctx, RunParams{Scenario: name})
		if err != nil {
			t.Fatalf("BeginRun(%s) error = %v", name, err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRuns() = %d runs, want 3", len(runs))
	}
	if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
		t.Error("ListRuns() not newest first")
	}
	if runs[0].Multiplier != 1 {
		t.Errorf("default multiplier = %v, want 1", runs[0].Multiplier)
	}

	limited, _ := s.ListRuns(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("ListRuns(2) = %d runs", len(limited))
	}
}

func TestSQLiteRunStore_DeleteRunCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run, _ := s.BeginRun(ctx, RunParams{Scenario: "default"})
	_ = s.RecordSample(ctx, Sample{RunID: run.ID, Tick: 1})

	if err := s.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM samples WHERE run_id = ?`, run.ID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d samples survived run deletion", n)
	}
}

func TestSQLiteRunStore_ExportJSONL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run, _ := s.BeginRun(ctx, RunParams{Scenario: "default", Speed: 80, Distance: 100})
	for tick := 1; tick <= 4; tick++ {
		_ = s.RecordSample(ctx, Sample{RunID: run.ID, Tick: tick, Speed: 80 - float64(tick), Running: true})
	}

	var buf bytes.Buffer
	if err := s.ExportJSONL(ctx, run.ID, &buf); err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("exported %d lines, want 4", len(lines))
	}
	for i, line := range lines {
		var sample Sample
		if err := json.Unmarshal([]byte(line), &sample); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if sample.Tick != i+1 || sample.RunID != run.ID {
			t.Errorf("line %d = %+v", i, sample)
		}
	}

	if err := s.ExportJSONL(ctx, "nope", &buf); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ExportJSONL(unknown) error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteRunStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := NewSQLiteRunStore(path)
	if err != nil {
		t.Fatal(err)
	}
	run, _ := s.BeginRun(ctx, RunParams{Scenario: "emergency"})
	s.Close()

	s, err = NewSQLiteRunStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.GetRun(ctx, run.ID); err != nil {
		t.Errorf("run lost across reopen: %v", err)
	}
}
