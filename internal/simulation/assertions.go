package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/fuzzbrake/internal/constants"
)

// AssertTerminates asserts that the run ended on its own, by collision or
// by coming to rest, and that the final sample is Stopped.
func AssertTerminates(t *testing.T, trace Trace) {
	t.Helper()
	if !trace.Outcome.Terminal() {
		t.Errorf("AssertTerminates: %s ended with outcome %q after %d ticks", trace.Scenario.Name, trace.Outcome, trace.Ticks())
		return
	}
	if final := trace.Final(); final.Running {
		t.Errorf("AssertTerminates: %s final sample still running at tick %d", trace.Scenario.Name, final.Tick)
	}
}

// AssertOutcome asserts the run's stop reason.
func AssertOutcome(t *testing.T, trace Trace, want constants.Outcome) {
	t.Helper()
	if trace.Outcome != want {
		t.Errorf("AssertOutcome: %s ended with %q, want %q (final %+v)", trace.Scenario.Name, trace.Outcome, want, trace.Final())
	}
}

// AssertSpeedNonIncreasing asserts that speed never rises between ticks.
// Braking can only remove speed.
func AssertSpeedNonIncreasing(t *testing.T, trace Trace) {
	t.Helper()
	for i := 1; i < len(trace.Samples); i++ {
		prev, cur := trace.Samples[i-1], trace.Samples[i]
		if cur.Speed > prev.Speed {
			t.Errorf("AssertSpeedNonIncreasing: tick %d: speed rose %.6f -> %.6f", cur.Tick, prev.Speed, cur.Speed)
			return
		}
	}
}

// AssertPositionNonDecreasing asserts that the car never moves backwards.
func AssertPositionNonDecreasing(t *testing.T, trace Trace) {
	t.Helper()
	for i := 1; i < len(trace.Samples); i++ {
		prev, cur := trace.Samples[i-1], trace.Samples[i]
		if cur.Position < prev.Position {
			t.Errorf("AssertPositionNonDecreasing: tick %d: position fell %.6f -> %.6f", cur.Tick, prev.Position, cur.Position)
			return
		}
	}
}

// AssertBrakeInRange asserts that every brake intensity lies in [0, 100].
func AssertBrakeInRange(t *testing.T, trace Trace) {
	t.Helper()
	for _, s := range trace.Samples {
		if math.IsNaN(s.BrakeIntensity) || s.BrakeIntensity < 0 || s.BrakeIntensity > constants.BrakeAxisMax {
			t.Errorf("AssertBrakeInRange: tick %d: brake %.6f outside [0, %.0f]", s.Tick, s.BrakeIntensity, constants.BrakeAxisMax)
			return
		}
	}
}

// AssertDistanceNonNegative asserts that derived distance never goes below 0.
func AssertDistanceNonNegative(t *testing.T, trace Trace) {
	t.Helper()
	for _, s := range trace.Samples {
		if s.Distance < 0 {
			t.Errorf("AssertDistanceNonNegative: tick %d: distance %.6f", s.Tick, s.Distance)
			return
		}
	}
}

// AssertMaxTicks asserts that the run took at most n ticks.
func AssertMaxTicks(t *testing.T, trace Trace, n int) {
	t.Helper()
	if trace.Ticks() > n {
		t.Errorf("AssertMaxTicks: %s took %d ticks (limit %d)", trace.Scenario.Name, trace.Ticks(), n)
	}
}
