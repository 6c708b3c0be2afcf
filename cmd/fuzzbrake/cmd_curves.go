package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/visualization"
)

func newCurvesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curves <speed|distance|brake>",
		Short: "Sample the membership functions of one axis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			axis, err := fuzzy.ParseAxis(args[0])
			if err != nil {
				return err
			}
			steps, _ := cmd.Flags().GetInt("steps")
			jsonOut, _ := cmd.Flags().GetBool("json")

			curves, err := fuzzy.NewEngine().Curves(axis, steps)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), curves)
			}

			out := cmd.OutOrStdout()
			for _, c := range curves {
				fmt.Fprintf(out, "%s %s %v\n", c.Label, c.Shape, c.Params)
				for _, p := range c.Points {
					fmt.Fprintf(out, "  %8.2f %.3f\n", p.X, p.Y)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("steps", 20, "Number of sampling intervals across the axis")
	return cmd
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Export PNG charts of membership functions and recorded runs",
	}
	cmd.AddCommand(newPlotCurvesCmd(), newPlotRunCmd())
	return cmd
}

func newPlotCurvesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curves <speed|distance|brake>",
		Short: "Plot one axis's membership functions to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			axis, err := fuzzy.ParseAxis(args[0])
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			steps, _ := cmd.Flags().GetInt("steps")
			if output == "" {
				output = string(axis) + ".png"
			}

			curves, err := fuzzy.NewEngine().Curves(axis, steps)
			if err != nil {
				return err
			}
			if err := writePlotFile(output, func(f *os.File) error {
				return visualization.PlotCurves(f, axis, curves)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default: <axis>.png)")
	cmd.Flags().Int("steps", 200, "Number of sampling intervals across the axis")
	return cmd
}

func newPlotRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Plot a recorded run's speed, distance and brake to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			ctx := cmd.Context()
			run, err := rs.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			samples, err := rs.Samples(ctx, run.ID)
			if err != nil {
				return err
			}

			points := make([]visualization.TracePoint, len(samples))
			for i, s := range samples {
				points[i] = visualization.TracePoint{Tick: s.Tick, Speed: s.Speed, Distance: s.Distance, Brake: s.Brake}
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = "run-" + shortID(run.ID) + ".png"
			}
			title := fmt.Sprintf("%s (%s, %d ticks)", run.Scenario, run.Outcome, run.Ticks)
			if err := writePlotFile(output, func(f *os.File) error {
				return visualization.PlotTrace(f, title, points)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default: run-<id>.png)")
	return cmd
}

func writePlotFile(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
