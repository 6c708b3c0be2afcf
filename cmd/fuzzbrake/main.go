package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the release build via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fuzzbrake",
		Short: "Fuzzy logic brake controller and simulator",
		Long: `fuzzbrake infers brake intensity from vehicle speed and distance to an
obstacle using a Mamdani-style fuzzy rule base, and simulates a car braking
toward an obstacle under that controller.

It can be used from the command line, served over HTTP with a control
panel, or exposed to agents as an MCP server.`,
		SilenceUsage: true,
	}

	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(
		newVersionCmd(),
		newInferCmd(),
		newFuzzifyCmd(),
		newRulesCmd(),
		newCurvesCmd(),
		newScenariosCmd(),
		newSimulateCmd(),
		newRunsCmd(),
		newPlotCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	cmd.PersistentFlags().String("config", "", "Config file (default: <data-dir>/config.yaml)")
	cmd.PersistentFlags().String("data-dir", "", "Data directory for the run log and logs (default: ~/.fuzzbrake)")
	cmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")
}
