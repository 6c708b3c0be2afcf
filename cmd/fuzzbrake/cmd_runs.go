package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the recorded run log",
	}
	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsExportCmd(),
		newRunsDeleteCmd(),
		newRunsBackupCmd(),
		newRunsRestoreCmd(),
	)
	return cmd
}

// withRunStore loads the environment, opens the run log and hands both to fn.
func withRunStore(cmd *cobra.Command, fn func(env *appEnv, rs *store.SQLiteRunStore) error) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	rs, err := env.openRunStore()
	if err != nil {
		return err
	}
	defer rs.Close()

	return fn(env, rs)
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withRunStore(cmd, func(env *appEnv, rs *store.SQLiteRunStore) error {
				runs, err := rs.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if env.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"runs":  runs,
						"count": len(runs),
					})
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded.")
					return nil
				}
				fmt.Fprintf(out, "%-36s  %-10s  %-9s  %5s  %s\n", "ID", "SCENARIO", "OUTCOME", "TICKS", "STARTED")
				for _, r := range runs {
					outcome := r.Outcome.String()
					if !r.Finished() {
						outcome = "running"
					}
					fmt.Fprintf(out, "%-36s  %-10s  %-9s  %5d  %s\n",
						r.ID, r.Scenario, outcome, r.Ticks, r.StartedAt.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's header and samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunStore(cmd, func(env *appEnv, rs *store.SQLiteRunStore) error {
				ctx := cmd.Context()
				run, err := rs.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				samples, err := rs.Samples(ctx, run.ID)
				if err != nil {
					return err
				}
				if env.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"run":     run,
						"samples": samples,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:       %s\n", run.ID)
				fmt.Fprintf(out, "Scenario:  %s (%.1f km/h, %.1f m, x%g)\n", run.Scenario, run.InitialSpeed, run.InitialDistance, run.Multiplier)
				fmt.Fprintf(out, "Outcome:   %s after %d ticks\n", run.Outcome, run.Ticks)
				fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
				if tail, _ := cmd.Flags().GetInt("tail"); tail > 0 && len(samples) > tail {
					samples = samples[len(samples)-tail:]
				}
				for _, s := range samples {
					fmt.Fprintf(out, "  %4d  speed %7.2f  distance %7.2f  brake %6.2f\n", s.Tick, s.Speed, s.Distance, s.Brake)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("tail", 10, "Show only the last N samples (0 for all)")
	return cmd
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run's samples as JSON Lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return withRunStore(cmd, func(_ *appEnv, rs *store.SQLiteRunStore) error {
				if output == "" || output == "-" {
					return rs.ExportJSONL(cmd.Context(), args[0], cmd.OutOrStdout())
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := rs.ExportJSONL(cmd.Context(), args[0], f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunStore(cmd, func(env *appEnv, rs *store.SQLiteRunStore) error {
				if err := rs.DeleteRun(cmd.Context(), args[0]); err != nil {
					return err
				}
				if env.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return nil
			})
		},
	}
}
