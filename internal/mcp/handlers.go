package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/fuzzbrake/internal/constants"
	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/ratelimit"
	"github.com/nvandessel/fuzzbrake/internal/simulation"
	"github.com/nvandessel/fuzzbrake/internal/store"
	"github.com/nvandessel/fuzzbrake/internal/visualization"
)

const (
	stateURI = "fuzzbrake://state"
	rulesURI = "fuzzbrake://rules"
)

// registerTools registers all fuzzbrake MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "fuzzbrake_infer",
		Description: "Run one fuzzy inference pass for a speed (km/h) and distance (m) and return the brake intensity with the rules that fired",
	}, s.handleInfer)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "fuzzbrake_state",
		Description: "Get the current simulation state: speed, position, distance, brake intensity and active rules",
	}, s.handleState)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "fuzzbrake_set_inputs",
		Description: "Set the simulated vehicle speed and/or distance to the obstacle",
	}, s.handleSetInputs)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "fuzzbrake_update_membership",
		Description: "Replace the control points of one membership function (points are clamped to non-decreasing order)",
	}, s.handleUpdateMembership)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "fuzzbrake_rules",
		Description: "List, add, update, remove, toggle or reset the fuzzy rules",
	}, s.handleRules)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "fuzzbrake_simulation",
		Description: "Control the simulation: start, stop, reset, step, run a scenario headlessly, or set the speed multiplier",
	}, s.handleSimulation)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "fuzzbrake_curves",
		Description: "Sample the membership functions of one axis for plotting",
	}, s.handleCurves)

	return nil
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         stateURI,
		Name:        "fuzzbrake-state",
		Description: "Current simulation state and the rules that fired on the last tick.",
		MIMEType:    "text/markdown",
	}, s.handleStateResource)

	s.server.AddResource(&sdk.Resource{
		URI:         rulesURI,
		Name:        "fuzzbrake-rules",
		Description: "The fuzzy rule table.",
		MIMEType:    "text/markdown",
	}, s.handleRulesResource)

	return nil
}

func (s *Server) handleStateResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	st := s.sim.Snapshot()

	var sb strings.Builder
	sb.WriteString("# Simulation State\n\n")
	status := "stopped"
	if st.Running {
		status = "running"
	} else if st.StopReason != constants.OutcomeNone {
		status = "stopped (" + st.StopReason.String() + ")"
	}
	fmt.Fprintf(&sb, "- Status: %s\n", status)
	fmt.Fprintf(&sb, "- Tick: %d\n", st.Tick)
	fmt.Fprintf(&sb, "- Speed: %.2f km/h\n", st.Speed)
	fmt.Fprintf(&sb, "- Distance: %.2f m\n", st.Distance)
	fmt.Fprintf(&sb, "- Brake intensity: %.2f%%\n", st.BrakeIntensity)
	fmt.Fprintf(&sb, "- Speed multiplier: %g\n", st.Multiplier)

	sb.WriteString("\n## Active Rules\n\n")
	if len(st.ActiveRules) == 0 {
		sb.WriteString("No rules fired on the last tick.\n")
	}
	for _, r := range st.ActiveRules {
		fmt.Fprintf(&sb, "- %s\n", r)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      stateURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

func (s *Server) handleRulesResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	text := "# Fuzzy Rules\n\n" + visualization.RenderMarkdown(s.fuzzy.Rules(), s.fuzzy.ActiveRules())
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      rulesURI,
				MIMEType: "text/markdown",
				Text:     text,
			},
		},
	}, nil
}

// handleInfer implements the fuzzbrake_infer tool.
func (s *Server) handleInfer(ctx context.Context, req *sdk.CallToolRequest, args InferInput) (_ *sdk.CallToolResult, _ InferOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("fuzzbrake_infer", start, retErr, formatToolParams(map[string]interface{}{
			"speed": args.Speed, "distance": args.Distance,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "fuzzbrake_infer"); err != nil {
		return nil, InferOutput{}, err
	}

	inf := s.fuzzy.Infer(args.Speed, args.Distance)

	out := InferOutput{
		Intensity:       inf.Intensity,
		SpeedDegrees:    make(map[string]float64, len(inf.SpeedDegrees)),
		DistanceDegrees: make(map[string]float64, len(inf.DistanceDegrees)),
		Activations:     make(map[string]float64, len(inf.Activations)),
		Rules:           summarizeRules(inf.Rules),
	}
	for l, d := range inf.SpeedDegrees {
		out.SpeedDegrees[l.String()] = d
	}
	for l, d := range inf.DistanceDegrees {
		out.DistanceDegrees[l.String()] = d
	}
	for l, a := range inf.Activations {
		out.Activations[l.String()] = a
	}

	if len(inf.Rules) == 0 {
		out.Message = fmt.Sprintf("No rule fired for %.2f km/h at %.2f m; brake intensity 0%%", args.Speed, args.Distance)
	} else {
		out.Message = fmt.Sprintf("Brake intensity %.2f%% from %d rule(s)", inf.Intensity, len(inf.Rules))
	}
	return nil, out, nil
}

// handleState implements the fuzzbrake_state tool.
func (s *Server) handleState(ctx context.Context, req *sdk.CallToolRequest, args StateInput) (_ *sdk.CallToolResult, _ StateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("fuzzbrake_state", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "fuzzbrake_state"); err != nil {
		return nil, StateOutput{}, err
	}

	return nil, stateOutput(s.sim.Snapshot()), nil
}

// handleSetInputs implements the fuzzbrake_set_inputs tool.
func (s *Server) handleSetInputs(ctx context.Context, req *sdk.CallToolRequest, args SetInputsInput) (_ *sdk.CallToolResult, _ StateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("fuzzbrake_set_inputs", start, retErr, formatToolParams(map[string]interface{}{
			"speed": args.Speed, "distance": args.Distance,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "fuzzbrake_set_inputs"); err != nil {
		return nil, StateOutput{}, err
	}

	if args.Speed == nil && args.Distance == nil {
		return nil, StateOutput{}, fmt.Errorf("at least one of 'speed' or 'distance' is required")
	}

	st := s.sim.Snapshot()
	if args.Speed != nil {
		st = s.sim.SetSpeed(*args.Speed)
	}
	if args.Distance != nil {
		st = s.sim.SetDistanceToObstacle(*args.Distance)
	}
	return nil, stateOutput(st), nil
}

// handleUpdateMembership implements the fuzzbrake_update_membership tool.
func (s *Server) handleUpdateMembership(ctx context.Context, req *sdk.CallToolRequest, args UpdateMembershipInput) (_ *sdk.CallToolResult, _ UpdateMembershipOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("fuzzbrake_update_membership", start, retErr, formatToolParams(map[string]interface{}{
			"axis": args.Axis, "label": args.Label, "points": args.Points,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "fuzzbrake_update_membership"); err != nil {
		return nil, UpdateMembershipOutput{}, err
	}

	axis, err := fuzzy.ParseAxis(args.Axis)
	if err != nil {
		return nil, UpdateMembershipOutput{}, err
	}
	if args.Label == "" {
		return nil, UpdateMembershipOutput{}, fmt.Errorf("'label' parameter is required")
	}

	fn, err := s.fuzzy.EditFunction(axis, args.Label, args.Points)
	if err != nil {
		return nil, UpdateMembershipOutput{}, fmt.Errorf("update %s/%s: %w", axis, args.Label, err)
	}

	return nil, UpdateMembershipOutput{
		Axis:    string(axis),
		Label:   fn.Label,
		Shape:   fn.Shape.String(),
		Points:  fn.Points,
		Message: fmt.Sprintf("Updated %s %s to %v", axis, fn.Label, fn.Points),
	}, nil
}

// handleRules implements the fuzzbrake_rules tool.
func (s *Server) handleRules(ctx context.Context, req *sdk.CallToolRequest, args RulesInput) (_ *sdk.CallToolResult, _ RulesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("fuzzbrake_rules", start, retErr, formatToolParams(map[string]interface{}{
			"action": args.Action, "id": args.ID,
			"speed": args.Speed, "distance": args.Distance, "brake": args.Brake,
		}))
	}()

	action := strings.ToLower(strings.TrimSpace(args.Action))
	if action == "" {
		action = "list"
	}

	// Listing is free; mutations are limited.
	if action != "list" {
		if err := ratelimit.CheckLimit(s.toolLimiters, "fuzzbrake_rules"); err != nil {
			return nil, RulesOutput{}, err
		}
	}

	var (
		rule    fuzzy.Rule
		message string
		err     error
	)
	switch action {
	case "list":
		message = "Listed rules"

	case "add":
		if args.Speed == "" && args.Distance == "" && args.Brake == "" {
			rule = s.fuzzy.AddDefaultRule()
		} else {
			var sp fuzzy.SpeedLabel
			var d fuzzy.DistanceLabel
			var b fuzzy.BrakeLabel
			if sp, d, b, err = parseRuleLabels(args); err != nil {
				return nil, RulesOutput{}, err
			}
			if rule, err = s.fuzzy.AddRule(sp, d, b); err != nil {
				return nil, RulesOutput{}, err
			}
		}
		message = "Added rule: " + rule.String()

	case "update":
		if args.ID == "" {
			return nil, RulesOutput{}, fmt.Errorf("'id' parameter is required for update")
		}
		sp, d, b, err := parseRuleLabels(args)
		if err != nil {
			return nil, RulesOutput{}, err
		}
		if rule, err = s.fuzzy.UpdateRule(args.ID, sp, d, b); err != nil {
			return nil, RulesOutput{}, err
		}
		message = "Updated rule: " + rule.String()

	case "remove":
		if args.ID == "" {
			return nil, RulesOutput{}, fmt.Errorf("'id' parameter is required for remove")
		}
		if rule, err = s.fuzzy.Rule(args.ID); err != nil {
			return nil, RulesOutput{}, err
		}
		if err = s.fuzzy.RemoveRule(args.ID); err != nil {
			return nil, RulesOutput{}, err
		}
		message = "Removed rule: " + rule.String()

	case "toggle":
		if args.ID == "" {
			return nil, RulesOutput{}, fmt.Errorf("'id' parameter is required for toggle")
		}
		if rule, err = s.fuzzy.ToggleRule(args.ID); err != nil {
			return nil, RulesOutput{}, err
		}
		state := "disabled"
		if rule.Active {
			state = "enabled"
		}
		message = fmt.Sprintf("Rule %s: %s", state, rule.String())

	case "reset":
		s.fuzzy.ResetRules()
		message = "Restored the default rule table"

	default:
		return nil, RulesOutput{}, fmt.Errorf("invalid action: %s (must be one of: list, add, update, remove, toggle, reset)", args.Action)
	}

	rules := s.fuzzy.Rules()
	out := RulesOutput{
		Rules:   summarizeRules(rules),
		Count:   len(rules),
		Message: message,
	}
	if rule.ID != "" {
		summary := summarizeRule(rule)
		out.Rule = &summary
	}
	return nil, out, nil
}

// handleSimulation implements the fuzzbrake_simulation tool.
func (s *Server) handleSimulation(ctx context.Context, req *sdk.CallToolRequest, args SimulationInput) (_ *sdk.CallToolResult, _ SimulationOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("fuzzbrake_simulation", start, retErr, formatToolParams(map[string]interface{}{
			"action": args.Action, "ticks": args.Ticks, "multiplier": args.Multiplier,
			"scenario": args.Scenario, "speed": args.Speed, "distance": args.Distance,
			"max_ticks": args.MaxTicks, "record": args.Record,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "fuzzbrake_simulation"); err != nil {
		return nil, SimulationOutput{}, err
	}

	switch strings.ToLower(strings.TrimSpace(args.Action)) {
	case "start":
		return nil, SimulationOutput{State: stateOutput(s.sim.Start()), Message: "Simulation started"}, nil

	case "stop":
		return nil, SimulationOutput{State: stateOutput(s.sim.Stop()), Message: "Simulation stopped"}, nil

	case "reset":
		return nil, SimulationOutput{State: stateOutput(s.sim.Reset()), Message: "Simulation reset"}, nil

	case "step":
		n := max(args.Ticks, 1)
		done := 0
		for done < n && s.sim.Tick() {
			done++
		}
		st := s.sim.Snapshot()
		msg := fmt.Sprintf("Executed %d tick(s)", done)
		if done < n && !st.Running {
			msg += "; simulation is stopped"
		}
		return nil, SimulationOutput{State: stateOutput(st), Ticks: done, Outcome: st.StopReason.String(), Message: msg}, nil

	case "multiplier":
		st, err := s.sim.SetSpeedMultiplier(args.Multiplier)
		if err != nil {
			return nil, SimulationOutput{}, err
		}
		return nil, SimulationOutput{State: stateOutput(st), Message: fmt.Sprintf("Speed multiplier set to %g", args.Multiplier)}, nil

	case "run":
		return s.runScenario(ctx, args)
	}

	return nil, SimulationOutput{}, fmt.Errorf("invalid action: %s (must be one of: start, stop, reset, step, run, multiplier)", args.Action)
}

// runScenario runs a scenario headlessly on a scratch engine that shares the
// live rule base and membership functions but not the live vehicle, so the
// wall-clock driver never interleaves ticks with the run.
func (s *Server) runScenario(ctx context.Context, args SimulationInput) (*sdk.CallToolResult, SimulationOutput, error) {
	sc := simulation.DefaultScenario()
	if args.Scenario != "" {
		var err error
		if sc, err = simulation.LookupScenario(args.Scenario); err != nil {
			return nil, SimulationOutput{}, err
		}
	}
	if args.Speed != nil || args.Distance != nil {
		speed, distance := sc.Speed, sc.Distance
		if args.Speed != nil {
			speed = *args.Speed
		}
		if args.Distance != nil {
			distance = *args.Distance
		}
		sc = simulation.Custom(speed, distance)
	}

	cfg := s.sim.Config()
	cfg.SpeedMultiplier = s.sim.Snapshot().Multiplier
	opts := []simulation.EngineOption{
		// Headless runs infer on a snapshot so the live active-rule set
		// keeps reflecting the visualized simulation.
		simulation.WithFuzzyEngine(s.fuzzy.Clone()),
		simulation.WithLogger(s.logger),
	}

	var rec *store.RunRecorder
	if args.Record {
		if s.runs == nil {
			return nil, SimulationOutput{}, fmt.Errorf("recording requested but no run store is configured")
		}
		var err error
		rec, err = store.StartRecording(ctx, s.runs, store.RunParams{
			Scenario:   sc.Name,
			Speed:      sc.Speed,
			Distance:   sc.Distance,
			Multiplier: cfg.SpeedMultiplier,
		})
		if err != nil {
			return nil, SimulationOutput{}, fmt.Errorf("start recording: %w", err)
		}
		opts = append(opts, simulation.WithRecorder(rec))
	}
	scratch := simulation.NewEngine(cfg, opts...)

	trace, err := simulation.Run(ctx, scratch, sc, args.MaxTicks)
	if err != nil && !errors.Is(err, simulation.ErrTickBudgetExceeded) {
		return nil, SimulationOutput{}, err
	}

	out := SimulationOutput{
		State:   stateOutput(trace.Final()),
		Outcome: trace.Outcome.String(),
		Ticks:   trace.Ticks(),
	}
	if rec != nil {
		run, ferr := rec.Finish(ctx, trace.Outcome)
		if ferr != nil {
			return nil, SimulationOutput{}, fmt.Errorf("finish recording: %w", ferr)
		}
		out.RunID = run.ID
	}

	out.Message = fmt.Sprintf("Scenario %s ended with %s after %d tick(s)", sc.Name, trace.Outcome, trace.Ticks())
	if err != nil {
		out.Message += ": " + err.Error()
	}
	return nil, out, nil
}

// handleCurves implements the fuzzbrake_curves tool.
func (s *Server) handleCurves(ctx context.Context, req *sdk.CallToolRequest, args CurvesInput) (_ *sdk.CallToolResult, _ CurvesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("fuzzbrake_curves", start, retErr, formatToolParams(map[string]interface{}{
			"axis": args.Axis, "steps": args.Steps,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "fuzzbrake_curves"); err != nil {
		return nil, CurvesOutput{}, err
	}

	axis, err := fuzzy.ParseAxis(args.Axis)
	if err != nil {
		return nil, CurvesOutput{}, err
	}
	curves, err := s.fuzzy.Curves(axis, args.Steps)
	if err != nil {
		return nil, CurvesOutput{}, err
	}

	out := CurvesOutput{Axis: string(axis), Curves: make([]CurveSummary, 0, len(curves))}
	for _, c := range curves {
		points := make([][]float64, len(c.Points))
		for i, p := range c.Points {
			points[i] = []float64{p.X, p.Y}
		}
		out.Curves = append(out.Curves, CurveSummary{
			Label:  c.Label,
			Shape:  c.Shape.String(),
			Params: c.Params,
			Points: points,
		})
	}
	return nil, out, nil
}

func parseRuleLabels(args RulesInput) (fuzzy.SpeedLabel, fuzzy.DistanceLabel, fuzzy.BrakeLabel, error) {
	sp, err := fuzzy.ParseSpeedLabel(args.Speed)
	if err != nil {
		return 0, 0, 0, err
	}
	d, err := fuzzy.ParseDistanceLabel(args.Distance)
	if err != nil {
		return 0, 0, 0, err
	}
	b, err := fuzzy.ParseBrakeLabel(args.Brake)
	if err != nil {
		return 0, 0, 0, err
	}
	return sp, d, b, nil
}

func summarizeRule(r fuzzy.Rule) RuleSummary {
	return RuleSummary{
		ID:       r.ID,
		Speed:    r.Speed.String(),
		Distance: r.Distance.String(),
		Brake:    r.Brake.String(),
		Active:   r.Active,
		Text:     r.String(),
	}
}

func summarizeRules(rules []fuzzy.Rule) []RuleSummary {
	out := make([]RuleSummary, 0, len(rules))
	for _, r := range rules {
		out = append(out, summarizeRule(r))
	}
	return out
}

func stateOutput(st simulation.State) StateOutput {
	return StateOutput{
		Tick:             st.Tick,
		Speed:            st.Speed,
		Position:         st.Position,
		ObstaclePosition: st.ObstaclePosition,
		Distance:         st.Distance,
		BrakeIntensity:   st.BrakeIntensity,
		ActiveRules:      summarizeRules(st.ActiveRules),
		Running:          st.Running,
		Multiplier:       st.Multiplier,
		StopReason:       st.StopReason.String(),
	}
}
