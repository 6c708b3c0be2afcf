package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/simulation"
	"github.com/nvandessel/fuzzbrake/internal/store"
)

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the preset scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), simulation.Scenarios())
			}
			for _, sc := range simulation.Scenarios() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", sc.Name, sc.Description)
			}
			return nil
		},
	}
}

type simulateResult struct {
	Scenario simulation.Scenario `json:"scenario"`
	Outcome  string              `json:"outcome"`
	Ticks    int                 `json:"ticks"`
	Final    simulation.State    `json:"final"`
	RunID    string              `json:"run_id,omitempty"`
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate [scenario]",
		Short: "Run the braking simulation until the car stops",
		Long: `Run the simulation from a preset scenario (see 'fuzzbrake scenarios') or
from explicit --speed and --distance values.

By default the run is headless: ticks execute back to back and the command
returns as soon as the car comes to rest or reaches the obstacle. With
--realtime the ticks follow the wall clock at the configured tick period
and each one is printed as it happens.

Examples:
  fuzzbrake simulate
  fuzzbrake simulate emergency --json
  fuzzbrake simulate --speed 90 --distance 60 --record
  fuzzbrake simulate near-fast --realtime --multiplier 2`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSimulate,
	}

	cmd.Flags().Float64("speed", 0, "Initial speed in km/h (overrides the scenario)")
	cmd.Flags().Float64("distance", 0, "Initial distance to the obstacle in m (overrides the scenario)")
	cmd.Flags().Bool("realtime", false, "Tick at the wall-clock tick period and print every tick")
	cmd.Flags().Bool("record", false, "Record the run to the run log (default: store.record from config)")
	cmd.Flags().Int("max-ticks", 0, "Tick budget for headless runs (default: simulation.max_ticks from config)")
	cmd.Flags().Float64("multiplier", 0, "Speed multiplier (default: simulation.speed_multiplier from config)")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	sc := simulation.DefaultScenario()
	if len(args) == 1 {
		if sc, err = simulation.LookupScenario(args[0]); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("speed") || cmd.Flags().Changed("distance") {
		speed, distance := sc.Speed, sc.Distance
		if cmd.Flags().Changed("speed") {
			speed, _ = cmd.Flags().GetFloat64("speed")
		}
		if cmd.Flags().Changed("distance") {
			distance, _ = cmd.Flags().GetFloat64("distance")
		}
		sc = simulation.Custom(speed, distance)
	}

	realtime, _ := cmd.Flags().GetBool("realtime")
	record := env.cfg.Store.Record
	if cmd.Flags().Changed("record") {
		record, _ = cmd.Flags().GetBool("record")
	}
	maxTicks, _ := cmd.Flags().GetInt("max-ticks")
	if maxTicks <= 0 {
		maxTicks = env.cfg.Simulation.MaxTicks
	}
	multiplier, _ := cmd.Flags().GetFloat64("multiplier")
	if cmd.Flags().Changed("multiplier") && !(multiplier > 0) {
		return fmt.Errorf("--multiplier must be greater than 0, got %g", multiplier)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	engine := env.newSimulation()
	if multiplier > 0 {
		if _, err := engine.SetSpeedMultiplier(multiplier); err != nil {
			return err
		}
	}

	var recorders multiRecorder
	var rec *store.RunRecorder
	if record {
		rs, err := env.openRunStore()
		if err != nil {
			return err
		}
		defer rs.Close()

		rec, err = store.StartRecording(ctx, rs, store.RunParams{
			Scenario:   sc.Name,
			Speed:      sc.Speed,
			Distance:   sc.Distance,
			Multiplier: engine.Snapshot().Multiplier,
		})
		if err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
		recorders = append(recorders, rec)
	}
	if realtime && !env.jsonOut {
		recorders = append(recorders, tickPrinter{w: cmd.OutOrStdout()})
	}
	if len(recorders) > 0 {
		engine.SetRecorder(recorders)
	}

	res := simulateResult{Scenario: sc}
	if realtime {
		engine.RestartAt(sc.Distance, sc.Speed)
		err = simulation.NewDriver(engine, env.logger).RunUntilStopped(ctx)
		final := engine.Stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		res.Final, res.Outcome, res.Ticks = final, final.StopReason.String(), final.Tick
	} else {
		trace, err := simulation.Run(ctx, engine, sc, maxTicks)
		if err != nil && !errors.Is(err, simulation.ErrTickBudgetExceeded) && !errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, simulation.ErrTickBudgetExceeded) {
			env.logger.Warn("tick budget exceeded", "scenario", sc.Name, "max_ticks", maxTicks)
		}
		res.Final, res.Outcome, res.Ticks = engine.Snapshot(), trace.Outcome.String(), trace.Ticks()
	}

	if rec != nil {
		run, err := rec.Finish(context.WithoutCancel(ctx), res.Final.StopReason)
		if err != nil {
			return fmt.Errorf("finish recording: %w", err)
		}
		res.RunID = run.ID
	}

	if env.jsonOut {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario: %s (%s)\n", sc.Name, sc.Description)
	fmt.Fprintf(out, "Outcome:  %s after %d ticks\n", res.Outcome, res.Ticks)
	fmt.Fprintf(out, "Final:    speed %.2f km/h, distance %.2f m, brake %.2f%%\n",
		res.Final.Speed, res.Final.Distance, res.Final.BrakeIntensity)
	if res.RunID != "" {
		fmt.Fprintf(out, "Recorded: %s\n", res.RunID)
	}
	return nil
}

// multiRecorder fans a tick out to several recorders, stopping at the first error.
type multiRecorder []simulation.Recorder

func (m multiRecorder) RecordTick(ctx context.Context, state simulation.State) error {
	for _, r := range m {
		if err := r.RecordTick(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// tickPrinter writes one line per executed tick.
type tickPrinter struct {
	w io.Writer
}

func (p tickPrinter) RecordTick(_ context.Context, s simulation.State) error {
	_, err := fmt.Fprintf(p.w, "tick %4d  speed %7.2f km/h  distance %7.2f m  brake %6.2f%%\n",
		s.Tick, s.Speed, s.Distance, s.BrakeIntensity)
	return err
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
