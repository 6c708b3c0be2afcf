package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/fuzzbrake/internal/constants"
)

// ErrTickBudgetExceeded is returned by Run when the car neither stopped nor
// reached the obstacle within the tick budget.
var ErrTickBudgetExceeded = errors.New("tick budget exceeded")

// Trace is the full history of a headless run. Samples[0] is the state right
// after the restart; every later sample follows one executed tick.
type Trace struct {
	Scenario Scenario          `json:"scenario"`
	Samples  []State           `json:"samples"`
	Outcome  constants.Outcome `json:"outcome"`
}

// Final returns the last sample, or a zero State for an empty trace.
func (t Trace) Final() State {
	if len(t.Samples) == 0 {
		return State{}
	}
	return t.Samples[len(t.Samples)-1]
}

// Ticks returns the number of executed ticks.
func (t Trace) Ticks() int {
	return max(0, len(t.Samples)-1)
}

// ctxCheckInterval is how many ticks Run executes between context checks.
const ctxCheckInterval = 256

// Run restarts the engine at the scenario and ticks it without waiting on
// wall time until it stops. maxTicks <= 0 uses constants.DefaultMaxTicks.
//
// Hitting the budget stops the engine with OutcomeBudget and returns the
// partial trace with ErrTickBudgetExceeded. Context cancellation stops the
// engine manually and returns ctx.Err().
func Run(ctx context.Context, e *Engine, sc Scenario, maxTicks int) (Trace, error) {
	if maxTicks <= 0 {
		maxTicks = constants.DefaultMaxTicks
	}

	trace := Trace{Scenario: sc}
	trace.Samples = append(trace.Samples, e.RestartAt(sc.Distance, sc.Speed))

	for i := 0; i < maxTicks; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				trace.Samples = append(trace.Samples, e.Stop())
				trace.Outcome = constants.OutcomeManual
				return trace, err
			}
		}
		if !e.Tick() {
			break
		}
		state := e.Snapshot()
		trace.Samples = append(trace.Samples, state)
		if !state.Running {
			trace.Outcome = state.StopReason
			return trace, nil
		}
	}

	if e.Running() {
		e.halt(constants.OutcomeBudget)
		trace.Outcome = constants.OutcomeBudget
		return trace, fmt.Errorf("%w: %s after %d ticks", ErrTickBudgetExceeded, sc.Name, maxTicks)
	}
	trace.Outcome = e.Snapshot().StopReason
	return trace, nil
}

// halt stops a running engine with the given reason.
func (e *Engine) halt(reason constants.Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.stopLocked(reason)
	}
}
