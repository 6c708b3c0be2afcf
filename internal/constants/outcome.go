package constants

// Outcome records why a simulation run left the Running state.
// Defined here rather than in the simulation package so the store can
// persist it without importing the engine.
type Outcome string

const (
	// OutcomeNone means the run has not stopped yet.
	OutcomeNone Outcome = ""

	// OutcomeManual means Stop was called by a consumer.
	OutcomeManual Outcome = "manual"

	// OutcomeCollision means the car's leading edge reached the obstacle.
	OutcomeCollision Outcome = "collision"

	// OutcomeRest means the car decelerated below StopSpeedThreshold.
	OutcomeRest Outcome = "rest"

	// OutcomeReset means Reset forced the engine back to Stopped.
	OutcomeReset Outcome = "reset"

	// OutcomeBudget means a headless run hit its tick budget.
	OutcomeBudget Outcome = "budget"
)

// Valid returns true if the outcome is a recognized value.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeNone, OutcomeManual, OutcomeCollision, OutcomeRest, OutcomeReset, OutcomeBudget:
		return true
	}
	return false
}

// Terminal reports whether the outcome ends a run on its own, without a
// consumer asking for it.
func (o Outcome) Terminal() bool {
	return o == OutcomeCollision || o == OutcomeRest
}

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}
