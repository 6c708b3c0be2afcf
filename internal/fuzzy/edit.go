package fuzzy

import (
	"fmt"
)

// EditFunction is the editor-facing update used by the HTTP and MCP
// surfaces. It resolves the label on the given axis, clamps the points into
// non-decreasing order, rejects a wrong point count, and commits the result
// through the matching UpdateXxxFunction. The stored function is returned.
func (e *Engine) EditFunction(axis Axis, label string, points []float64) (MembershipFunction, error) {
	clamped := ClampPoints(points)

	switch axis {
	case AxisSpeed:
		l, err := ParseSpeedLabel(label)
		if err != nil {
			return MembershipFunction{}, err
		}
		if err := e.checkCount(e.SpeedFunctions()[l], clamped); err != nil {
			return MembershipFunction{}, err
		}
		if err := e.UpdateSpeedFunction(l, clamped); err != nil {
			return MembershipFunction{}, err
		}
		return e.SpeedFunctions()[l], nil

	case AxisDistance:
		l, err := ParseDistanceLabel(label)
		if err != nil {
			return MembershipFunction{}, err
		}
		if err := e.checkCount(e.DistanceFunctions()[l], clamped); err != nil {
			return MembershipFunction{}, err
		}
		if err := e.UpdateDistanceFunction(l, clamped); err != nil {
			return MembershipFunction{}, err
		}
		return e.DistanceFunctions()[l], nil

	case AxisBrake:
		l, err := ParseBrakeLabel(label)
		if err != nil {
			return MembershipFunction{}, err
		}
		if err := e.checkCount(e.BrakeFunctions()[l], clamped); err != nil {
			return MembershipFunction{}, err
		}
		if err := e.UpdateBrakeFunction(l, clamped); err != nil {
			return MembershipFunction{}, err
		}
		return e.BrakeFunctions()[l], nil
	}
	return MembershipFunction{}, fmt.Errorf("%w: %q", ErrUnknownAxis, axis)
}

func (e *Engine) checkCount(current MembershipFunction, points []float64) error {
	candidate := current
	candidate.Points = points
	return candidate.Validate()
}
