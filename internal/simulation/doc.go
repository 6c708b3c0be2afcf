// Package simulation drives the fuzzy brake controller through a car
// approaching a fixed obstacle.
//
// Engine is a two-state (Stopped, Running) machine advanced one fixed step
// at a time. Tick runs a single step; Advance converts elapsed wall time into
// whole ticks; Driver calls Advance from a time.Ticker for realtime use. Tests
// and batch tooling call Run, which ticks as fast as possible until the car
// stops or a tick budget is spent.
//
// Each step:
//
//  1. stops (collision) if the car's leading edge reached the obstacle
//  2. infers brake intensity from (speed, distance)
//  3. decelerates by (brake/100) x (speed/10) x multiplier, floored at 0
//  4. moves the car by speed x speedScaleFactor x multiplier
//  5. recomputes distance, floored at 0
//  6. stops (rest) once speed falls to the stop threshold
//
// Usage:
//
//	func TestDefaultScenarioStops(t *testing.T) {
//	    e := simulation.NewEngine(simulation.DefaultConfig())
//	    trace, err := simulation.Run(context.Background(), e, simulation.DefaultScenario(), 10000)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    simulation.AssertTerminates(t, trace)
//	    simulation.AssertSpeedNonIncreasing(t, trace)
//	}
package simulation
