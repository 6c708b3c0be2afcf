package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/backup"
	"github.com/nvandessel/fuzzbrake/internal/pathutil"
	"github.com/nvandessel/fuzzbrake/internal/store"
)

func newRunsBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the whole run log to a compressed file",
		Long: `Write every recorded run and its samples to a gzip-compressed archive with
a checksummed header line.

Archives go to <data-dir>/backups by default. Explicit --output paths must be
inside that folder or the working directory.

Examples:
  fuzzbrake runs backup
  fuzzbrake runs backup --keep 5 --max-age 30d
  fuzzbrake runs backup --max-runs 500
  fuzzbrake runs backup -o ./runs.jsonl.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")
			maxRuns, _ := cmd.Flags().GetInt("max-runs")

			retention, err := retentionFlags(keep, maxAge, maxRuns)
			if err != nil {
				return err
			}

			return withRunStore(cmd, func(env *appEnv, rs *store.SQLiteRunStore) error {
				dir := backup.DefaultBackupDir(env.dataDir)
				if output == "" {
					output = backup.GenerateBackupPath(dir, time.Now())
				}
				if err := pathutil.ValidatePath(output, pathutil.AllowedArchiveDirs(env.dataDir)); err != nil {
					return err
				}

				archive, err := backup.Backup(cmd.Context(), rs, output)
				if err != nil {
					return fmt.Errorf("backup failed: %w", err)
				}

				removed, err := backup.Prune(dir, retention)
				if err != nil {
					return fmt.Errorf("prune archives: %w", err)
				}

				env.logger.Info("run log archived", "path", pathutil.RedactPath(output), "runs", len(archive.Runs))
				if env.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"path":    output,
						"runs":    len(archive.Runs),
						"samples": archive.SampleCount(),
						"pruned":  removed,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %d runs (%d samples) to %s\n", len(archive.Runs), archive.SampleCount(), output)
				for _, a := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s (%d runs)\n", filepath.Base(a.Path), a.RunCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "Archive path (default: <data-dir>/backups/fuzzbrake-runs-<timestamp>.jsonl.gz)")
	cmd.Flags().Int("keep", 0, "Keep the N newest archives in the backups folder")
	cmd.Flags().String("max-age", "", "Also keep archives newer than this (e.g. 30d, 2w, 720h)")
	cmd.Flags().Int("max-runs", 0, "Also keep the newest archives while their combined run count fits this budget")

	return cmd
}

func newRunsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive>",
		Short: "Import runs from an archive, skipping runs already present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunStore(cmd, func(env *appEnv, rs *store.SQLiteRunStore) error {
				path := args[0]
				if err := pathutil.ValidatePath(path, pathutil.AllowedArchiveDirs(env.dataDir)); err != nil {
					return err
				}
				result, err := backup.Restore(cmd.Context(), rs, path)
				if err != nil {
					return fmt.Errorf("restore failed: %w", err)
				}
				if env.jsonOut {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d runs (%d samples), skipped %d already present\n",
					result.RunsRestored, result.SamplesRestored, result.RunsSkipped)
				return nil
			})
		},
	}
}

// retentionFlags turns the prune flags into a Retention. With no flags set
// the result keeps every archive.
func retentionFlags(keep int, maxAge string, maxRuns int) (backup.Retention, error) {
	if keep < 0 || maxRuns < 0 {
		return backup.Retention{}, fmt.Errorf("--keep and --max-runs must not be negative")
	}
	r := backup.Retention{Newest: keep, MaxRuns: maxRuns}
	if maxAge != "" {
		d, err := backup.ParseAge(maxAge)
		if err != nil {
			return backup.Retention{}, fmt.Errorf("invalid --max-age: %w", err)
		}
		r.MaxAge = d
	}
	return r, nil
}
