package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
)

func newInferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer <speed> <distance>",
		Short: "Infer brake intensity for a speed (km/h) and distance (m)",
		Long: `Run one inference pass with the default membership functions and rule
table, and print the defuzzified brake intensity with the rules that fired.

Examples:
  fuzzbrake infer 80 5
  fuzzbrake infer 50 15 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			speed, distance, err := parseInputs(args)
			if err != nil {
				return err
			}
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			engine := fuzzy.NewEngine(fuzzy.WithLogger(env.logger))
			inf := engine.Infer(speed, distance)

			if env.jsonOut {
				return writeJSON(cmd.OutOrStdout(), inf)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Brake intensity: %.2f%%\n", inf.Intensity)
			printDegrees(out, inf.SpeedDegrees, inf.DistanceDegrees)
			if len(inf.Rules) == 0 {
				fmt.Fprintln(out, "No rules fired.")
				return nil
			}
			fmt.Fprintf(out, "Fired rules (%d):\n", len(inf.Rules))
			for _, r := range inf.Rules {
				fmt.Fprintf(out, "  %s (%.3f)\n", r, inf.Activations[r.Brake])
			}
			return nil
		},
	}
	return cmd
}

func newFuzzifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuzzify <speed> <distance>",
		Short: "Print membership degrees for a speed (km/h) and distance (m)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			speed, distance, err := parseInputs(args)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			sd, dd := fuzzy.NewEngine().Fuzzify(speed, distance)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"speed":            speed,
					"distance":         distance,
					"speed_degrees":    sd,
					"distance_degrees": dd,
				})
			}
			printDegrees(cmd.OutOrStdout(), sd, dd)
			return nil
		},
	}
}

func parseInputs(args []string) (speed, distance float64, err error) {
	speed, err = strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid speed %q: %w", args[0], err)
	}
	distance, err = strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid distance %q: %w", args[1], err)
	}
	return speed, distance, nil
}

func printDegrees(w io.Writer, sd map[fuzzy.SpeedLabel]float64, dd map[fuzzy.DistanceLabel]float64) {
	fmt.Fprintln(w, "Speed:")
	for _, l := range fuzzy.SpeedLabels() {
		if v, ok := sd[l]; ok {
			fmt.Fprintf(w, "  %-10s %.3f\n", l, v)
		}
	}
	fmt.Fprintln(w, "Distance:")
	for _, l := range fuzzy.DistanceLabels() {
		if v, ok := dd[l]; ok {
			fmt.Fprintf(w, "  %-10s %.3f\n", l, v)
		}
	}
}
