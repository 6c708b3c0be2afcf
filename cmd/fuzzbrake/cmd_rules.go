package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/visualization"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the default rule table",
		Long: `Render the default rule base as a table, Graphviz DOT, JSON or markdown.

When --speed and --distance are both given, an inference pass is run first
and the rules that fired are highlighted.

Examples:
  fuzzbrake rules
  fuzzbrake rules --format dot --speed 80 --distance 5 | dot -Tpng -o rules.png
  fuzzbrake rules --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				format = string(visualization.FormatJSON)
			}

			engine := fuzzy.NewEngine()
			var firing []fuzzy.Rule
			if cmd.Flags().Changed("speed") && cmd.Flags().Changed("distance") {
				speed, _ := cmd.Flags().GetFloat64("speed")
				distance, _ := cmd.Flags().GetFloat64("distance")
				firing = engine.Infer(speed, distance).Rules
			}
			rules := engine.Rules()
			out := cmd.OutOrStdout()

			switch visualization.Format(format) {
			case "table", "":
				fmt.Fprintf(out, "%-3s %-10s %-10s %-16s %s\n", "#", "SPEED", "DISTANCE", "BRAKE", "FIRING")
				fired := make(map[string]bool, len(firing))
				for _, r := range firing {
					fired[r.ID] = true
				}
				for i, r := range rules {
					mark := ""
					if fired[r.ID] {
						mark = "*"
					}
					fmt.Fprintf(out, "%-3d %-10s %-10s %-16s %s\n", i+1, r.Speed, r.Distance, r.Brake, mark)
				}
			case visualization.FormatDOT:
				fmt.Fprint(out, visualization.RenderDOT(rules, firing))
			case visualization.FormatJSON:
				return writeJSON(out, visualization.RenderJSON(rules))
			case visualization.FormatMarkdown:
				fmt.Fprint(out, visualization.RenderMarkdown(rules, firing))
			default:
				return fmt.Errorf("unknown format %q (valid: table, dot, json, markdown)", format)
			}
			return nil
		},
	}

	cmd.Flags().String("format", "table", "Output format: table, dot, json, markdown")
	cmd.Flags().Float64("speed", 0, "Speed (km/h) to highlight firing rules for")
	cmd.Flags().Float64("distance", 0, "Distance (m) to highlight firing rules for")

	return cmd
}
