package mcp

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/ratelimit"
	"github.com/nvandessel/fuzzbrake/internal/store"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		AuditDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func ptr(v float64) *float64 { return &v }

func TestHandleInfer(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		speed    float64
		distance float64
		want     float64
		fired    bool
	}{
		{"fast and very near", 80, 5, 100, true},
		{"slow and far", 20, 100, 0, true},
		{"moderate and near", 50, 15, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleInfer(ctx, &sdk.CallToolRequest{}, InferInput{Speed: tt.speed, Distance: tt.distance})
			if err != nil {
				t.Fatalf("handleInfer: %v", err)
			}
			if math.Abs(out.Intensity-tt.want) > 1e-9 {
				t.Errorf("intensity = %v, want %v", out.Intensity, tt.want)
			}
			if (len(out.Rules) > 0) != tt.fired {
				t.Errorf("rules = %v, fired want %v", out.Rules, tt.fired)
			}
			if out.Message == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestHandleInfer_DegreesUseDisplayNames(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleInfer(context.Background(), nil, InferInput{Speed: 80, Distance: 5})
	if err != nil {
		t.Fatalf("handleInfer: %v", err)
	}
	if _, ok := out.SpeedDegrees["Fast"]; !ok {
		t.Errorf("speed degrees = %v, want Fast present", out.SpeedDegrees)
	}
	if _, ok := out.DistanceDegrees["Very Near"]; !ok {
		t.Errorf("distance degrees = %v, want Very Near present", out.DistanceDegrees)
	}
}

func TestHandleSetInputsAndState(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleSetInputs(ctx, nil, SetInputsInput{}); err == nil {
		t.Error("expected error when no inputs are given")
	}

	_, out, err := server.handleSetInputs(ctx, nil, SetInputsInput{Speed: ptr(-5), Distance: ptr(42)})
	if err != nil {
		t.Fatalf("handleSetInputs: %v", err)
	}
	if out.Speed != 0 {
		t.Errorf("speed = %v, want clamped 0", out.Speed)
	}
	if math.Abs(out.Distance-42) > 1e-9 {
		t.Errorf("distance = %v, want 42", out.Distance)
	}

	_, state, err := server.handleState(ctx, nil, StateInput{})
	if err != nil {
		t.Fatalf("handleState: %v", err)
	}
	if state.Speed != 0 || math.Abs(state.Distance-42) > 1e-9 {
		t.Errorf("state = %+v, want inputs applied", state)
	}
	if state.ActiveRules == nil {
		t.Error("active rules should be an empty list, not nil")
	}
}

func TestHandleUpdateMembership(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleUpdateMembership(ctx, nil, UpdateMembershipInput{
		Axis: "brake", Label: "strong_brake", Points: []float64{70, 60, 95},
	})
	if err != nil {
		t.Fatalf("handleUpdateMembership: %v", err)
	}
	if out.Label != "Strong Brake" || out.Shape != "triangular" {
		t.Errorf("output = %+v", out)
	}
	want := []float64{70, 70, 95}
	for i := range want {
		if out.Points[i] != want[i] {
			t.Fatalf("points = %v, want %v", out.Points, want)
		}
	}
	if got := server.fuzzy.BrakeFunctions()[fuzzy.StrongBrake].Points; got[1] != 70 {
		t.Errorf("engine points = %v, want update applied", got)
	}

	tests := []struct {
		name string
		args UpdateMembershipInput
		want error
	}{
		{"bad axis", UpdateMembershipInput{Axis: "altitude", Label: "x", Points: []float64{1, 2, 3}}, fuzzy.ErrUnknownAxis},
		{"bad label", UpdateMembershipInput{Axis: "speed", Label: "warp", Points: []float64{1, 2, 3}}, fuzzy.ErrUnknownLabel},
		{"wrong count", UpdateMembershipInput{Axis: "distance", Label: "far", Points: []float64{1, 2, 3}}, fuzzy.ErrPointCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleUpdateMembership(ctx, nil, tt.args)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHandleRules(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, list, err := server.handleRules(ctx, nil, RulesInput{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Count != 16 {
		t.Fatalf("count = %d, want 16", list.Count)
	}

	_, added, err := server.handleRules(ctx, nil, RulesInput{
		Action: "add", Speed: "Very Fast", Distance: "Far", Brake: "Light Brake",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Count != 17 || added.Rule == nil {
		t.Fatalf("add output = %+v", added)
	}
	id := added.Rule.ID

	_, toggled, err := server.handleRules(ctx, nil, RulesInput{Action: "toggle", ID: id})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Rule.Active {
		t.Error("toggle should disable the new rule")
	}

	_, updated, err := server.handleRules(ctx, nil, RulesInput{
		Action: "update", ID: id, Speed: "slow", Distance: "near", Brake: "no brake",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Rule.Text != "IF Slow AND Near THEN No Brake" {
		t.Errorf("updated text = %q", updated.Rule.Text)
	}

	_, removed, err := server.handleRules(ctx, nil, RulesInput{Action: "remove", ID: id})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Count != 16 {
		t.Errorf("count after remove = %d, want 16", removed.Count)
	}

	if _, _, err := server.handleRules(ctx, nil, RulesInput{Action: "remove", ID: id}); !errors.Is(err, fuzzy.ErrRuleNotFound) {
		t.Errorf("second remove err = %v, want ErrRuleNotFound", err)
	}
	if _, _, err := server.handleRules(ctx, nil, RulesInput{Action: "explode"}); err == nil {
		t.Error("expected error for invalid action")
	}

	server.fuzzy.AddDefaultRule()
	_, reset, err := server.handleRules(ctx, nil, RulesInput{Action: "reset"})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Count != 16 {
		t.Errorf("count after reset = %d, want 16", reset.Count)
	}
}

func TestHandleSimulation_Controls(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSimulation(ctx, nil, SimulationInput{Action: "step"})
	if err != nil {
		t.Fatalf("step while stopped: %v", err)
	}
	if out.Ticks != 0 {
		t.Errorf("ticks while stopped = %d, want 0", out.Ticks)
	}

	if _, out, err = server.handleSimulation(ctx, nil, SimulationInput{Action: "start"}); err != nil || !out.State.Running {
		t.Fatalf("start: out=%+v err=%v", out.State, err)
	}

	_, out, err = server.handleSimulation(ctx, nil, SimulationInput{Action: "step", Ticks: 5})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.Ticks != 5 || out.State.Tick != 5 {
		t.Errorf("step output ticks=%d tick=%d, want 5", out.Ticks, out.State.Tick)
	}
	if out.State.BrakeIntensity <= 0 {
		t.Errorf("brake = %v, want > 0 at default inputs", out.State.BrakeIntensity)
	}

	if _, _, err = server.handleSimulation(ctx, nil, SimulationInput{Action: "multiplier", Multiplier: -1}); err == nil {
		t.Error("expected error for negative multiplier")
	}
	if _, out, err = server.handleSimulation(ctx, nil, SimulationInput{Action: "multiplier", Multiplier: 2}); err != nil || out.State.Multiplier != 2 {
		t.Errorf("multiplier: out=%+v err=%v", out.State, err)
	}

	if _, out, err = server.handleSimulation(ctx, nil, SimulationInput{Action: "stop"}); err != nil || out.State.Running {
		t.Errorf("stop: out=%+v err=%v", out.State, err)
	}
	if out.State.StopReason != "manual" {
		t.Errorf("stop reason = %q, want manual", out.State.StopReason)
	}

	if _, out, err = server.handleSimulation(ctx, nil, SimulationInput{Action: "reset"}); err != nil || out.State.Tick != 0 {
		t.Errorf("reset: out=%+v err=%v", out.State, err)
	}

	if _, _, err = server.handleSimulation(ctx, nil, SimulationInput{Action: "fly"}); err == nil {
		t.Error("expected error for invalid action")
	}
}

func TestHandleSimulation_Run(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		scenario string
		outcome  string
		ticks    int
	}{
		{"default", "rest", 222},
		{"near-fast", "collision", 20},
		{"far-slow", "rest", 283},
		{"emergency", "collision", 7},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			_, out, err := server.handleSimulation(ctx, nil, SimulationInput{Action: "run", Scenario: tt.scenario})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if out.Outcome != tt.outcome {
				t.Errorf("outcome = %q, want %q", out.Outcome, tt.outcome)
			}
			if out.Ticks != tt.ticks {
				t.Errorf("ticks = %d, want %d", out.Ticks, tt.ticks)
			}
		})
	}

	// Headless runs leave the live simulation alone.
	if live := server.sim.Snapshot(); live.Tick != 0 || live.Running {
		t.Errorf("live state changed by run: %+v", live)
	}
}

func TestHandleSimulation_RunKeepsLiveActiveRules(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	server.fuzzy.Infer(80, 5)
	before := server.fuzzy.ActiveRules()
	if len(before) == 0 {
		t.Fatal("expected active rules after Infer(80, 5)")
	}

	if _, _, err := server.handleSimulation(ctx, nil, SimulationInput{Action: "run", Scenario: "far-slow"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	after := server.fuzzy.ActiveRules()
	if len(after) != len(before) {
		t.Fatalf("active rules = %d after headless run, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID {
			t.Errorf("active rule %d = %s, want %s", i, after[i].ID, before[i].ID)
		}
	}
}

func TestHandleSimulation_RunBudgetAndRecording(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSimulation(ctx, nil, SimulationInput{Action: "run", MaxTicks: 10})
	if err != nil {
		t.Fatalf("budget run: %v", err)
	}
	if out.Outcome != "budget" || out.Ticks != 10 {
		t.Errorf("budget run = %s after %d ticks, want budget after 10", out.Outcome, out.Ticks)
	}

	if _, _, err := server.handleSimulation(ctx, nil, SimulationInput{Action: "run", Record: true}); err == nil {
		t.Error("expected error when recording without a run store")
	}

	runs, err := store.NewSQLiteRunStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRunStore: %v", err)
	}
	defer runs.Close()
	server.runs = runs

	_, out, err = server.handleSimulation(ctx, nil, SimulationInput{
		Action: "run", Speed: ptr(120), Distance: ptr(10), Record: true,
	})
	if err != nil {
		t.Fatalf("recorded run: %v", err)
	}
	if out.RunID == "" {
		t.Fatal("expected a run ID")
	}

	run, err := runs.GetRun(ctx, out.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Scenario != "custom" || run.Outcome != "collision" || run.Ticks != 7 {
		t.Errorf("recorded run = %+v", run)
	}
	samples, err := runs.Samples(ctx, out.RunID)
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(samples) != 7 {
		t.Errorf("samples = %d, want 7", len(samples))
	}
}

func TestHandleCurves(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleCurves(context.Background(), nil, CurvesInput{Axis: "Speed", Steps: 4})
	if err != nil {
		t.Fatalf("handleCurves: %v", err)
	}
	if out.Axis != "speed" || len(out.Curves) != 4 {
		t.Fatalf("output axis=%s curves=%d", out.Axis, len(out.Curves))
	}
	if got := len(out.Curves[0].Points); got != 5 {
		t.Errorf("points = %d, want 5", got)
	}

	if _, _, err := server.handleCurves(context.Background(), nil, CurvesInput{Axis: "nope"}); !errors.Is(err, fuzzy.ErrUnknownAxis) {
		t.Errorf("err = %v, want ErrUnknownAxis", err)
	}
}

func TestHandleCurves_StepsBound(t *testing.T) {
	server := setupTestServer(t)

	_, _, err := server.handleCurves(context.Background(), nil, CurvesInput{Axis: "speed", Steps: math.MaxInt})
	if !errors.Is(err, fuzzy.ErrTooManySteps) {
		t.Errorf("handleCurves(MaxInt) error = %v, want ErrTooManySteps", err)
	}
}

func TestHandleResources(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	res, err := server.handleStateResource(ctx, nil)
	if err != nil {
		t.Fatalf("state resource: %v", err)
	}
	text := res.Contents[0].Text
	if !strings.Contains(text, "# Simulation State") || !strings.Contains(text, "Speed: 80.00 km/h") {
		t.Errorf("state resource = %q", text)
	}

	server.fuzzy.Infer(80, 5)
	res, err = server.handleRulesResource(ctx, nil)
	if err != nil {
		t.Fatalf("rules resource: %v", err)
	}
	text = res.Contents[0].Text
	if res.Contents[0].URI != rulesURI {
		t.Errorf("URI = %q", res.Contents[0].URI)
	}
	if !strings.Contains(text, "| 1 | Slow | Very Near | Moderate Brake | yes | no |") {
		t.Errorf("rules resource missing first rule row:\n%s", text)
	}
	if !strings.Contains(text, "| yes | yes |") {
		t.Error("rules resource should mark firing rules")
	}
}

func TestHandlers_RateLimited(t *testing.T) {
	server := setupTestServer(t)
	server.toolLimiters = ratelimit.ToolLimiters{"fuzzbrake_state": ratelimit.NewLimiter(0, 1)}
	ctx := context.Background()

	if _, _, err := server.handleState(ctx, nil, StateInput{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, _, err := server.handleState(ctx, nil, StateInput{}); !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Errorf("second call err = %v, want ErrRateLimited", err)
	}
}
