package fuzzy

import (
	"fmt"

	"github.com/google/uuid"
)

// Rule is a single IF speed AND distance THEN brake statement.
type Rule struct {
	ID       string        `json:"id"`
	Speed    SpeedLabel    `json:"speed"`
	Distance DistanceLabel `json:"distance"`
	Brake    BrakeLabel    `json:"brake"`
	Active   bool          `json:"active"`
}

// NewRule creates an active rule with a fresh ID.
func NewRule(speed SpeedLabel, distance DistanceLabel, brake BrakeLabel) Rule {
	return Rule{
		ID:       uuid.NewString(),
		Speed:    speed,
		Distance: distance,
		Brake:    brake,
		Active:   true,
	}
}

// Evaluate returns the rule's consequence and its activation: the fuzzy AND
// (min) of the two antecedent degrees. Labels missing from either map count
// as 0. The activation is returned even when it is 0; the engine filters.
func (r Rule) Evaluate(speedDegrees map[SpeedLabel]float64, distanceDegrees map[DistanceLabel]float64) (BrakeLabel, float64) {
	return r.Brake, min(speedDegrees[r.Speed], distanceDegrees[r.Distance])
}

// String renders the rule the way the rule editor lists it.
func (r Rule) String() string {
	return fmt.Sprintf("IF %s AND %s THEN %s", r.Speed, r.Distance, r.Brake)
}
