// Package backup archives the run log to compressed, checksummed files and
// restores runs from them.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/fuzzbrake/internal/store"
)

// Archive is the decompressed payload of a backup file.
type Archive struct {
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// ArchivedRun is one run header with all of its samples.
type ArchivedRun struct {
	store.Run
	Samples []store.Sample `json:"samples"`
}

// SampleCount returns the total number of samples across all runs.
func (a *Archive) SampleCount() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Samples)
	}
	return n
}

// Source is the read side of the run log that Backup needs.
type Source interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	Samples(ctx context.Context, runID string) ([]store.Sample, error)
}

// Importer is the write side of the run log that Restore needs.
type Importer interface {
	ImportRun(ctx context.Context, run store.Run, samples []store.Sample) (bool, error)
}

// DefaultBackupDir returns the backups directory inside dataDir.
func DefaultBackupDir(dataDir string) string {
	return filepath.Join(dataDir, "backups")
}

// Backup writes every run in src, with its samples, to outputPath.
func Backup(ctx context.Context, src Source, outputPath string) (*Archive, error) {
	runs, err := src.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	archive := &Archive{
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, 0, len(runs)),
	}
	for _, run := range runs {
		samples, err := src.Samples(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read samples for %s: %w", run.ID, err)
		}
		archive.Runs = append(archive.Runs, ArchivedRun{Run: run, Samples: samples})
	}

	if err := Write(outputPath, archive); err != nil {
		return nil, err
	}
	return archive, nil
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	RunsRestored    int `json:"runs_restored"`
	RunsSkipped     int `json:"runs_skipped"`
	SamplesRestored int `json:"samples_restored"`
}

// Restore imports every run from a backup file. Runs whose ID is already in
// dst are skipped, so restoring the same file twice is harmless.
func Restore(ctx context.Context, dst Importer, inputPath string) (*RestoreResult, error) {
	archive, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, ar := range archive.Runs {
		imported, err := dst.ImportRun(ctx, ar.Run, ar.Samples)
		if err != nil {
			return result, fmt.Errorf("failed to restore run %s: %w", ar.ID, err)
		}
		if !imported {
			result.RunsSkipped++
			continue
		}
		result.RunsRestored++
		result.SamplesRestored += len(ar.Samples)
	}
	return result, nil
}

// GenerateBackupPath creates a timestamped backup filename in the given directory.
func GenerateBackupPath(dir string, now time.Time) string {
	ts := now.Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, ts, fileExt))
}
