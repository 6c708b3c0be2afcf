package fuzzy

import (
	"fmt"

	"github.com/nvandessel/fuzzbrake/internal/constants"
)

// CurvePoint is one sampled (x, degree) pair.
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Curve is a membership function sampled across its axis.
type Curve struct {
	Label  string       `json:"label"`
	Shape  Shape        `json:"shape"`
	Params []float64    `json:"params"`
	Points []CurvePoint `json:"points"`
}

// AxisMax returns the upper end of an axis's plotting range.
func AxisMax(axis Axis) float64 {
	switch axis {
	case AxisSpeed:
		return constants.SpeedAxisMax
	case AxisDistance:
		return constants.DistanceAxisMax
	case AxisBrake:
		return constants.BrakeAxisMax
	}
	return 0
}

// SpeedCurves samples every speed function at steps+1 points over [0, 200].
func (e *Engine) SpeedCurves(steps int) []Curve {
	fns := e.SpeedFunctions()
	curves := make([]Curve, 0, len(fns))
	for _, label := range SpeedLabels() {
		if fn, ok := fns[label]; ok {
			curves = append(curves, sample(label.String(), fn, constants.SpeedAxisMax, steps))
		}
	}
	return curves
}

// DistanceCurves samples every distance function over [0, 150].
func (e *Engine) DistanceCurves(steps int) []Curve {
	fns := e.DistanceFunctions()
	curves := make([]Curve, 0, len(fns))
	for _, label := range DistanceLabels() {
		if fn, ok := fns[label]; ok {
			curves = append(curves, sample(label.String(), fn, constants.DistanceAxisMax, steps))
		}
	}
	return curves
}

// BrakeCurves samples every brake function over [0, 100].
func (e *Engine) BrakeCurves(steps int) []Curve {
	fns := e.BrakeFunctions()
	curves := make([]Curve, 0, len(fns))
	for _, label := range BrakeLabels() {
		if fn, ok := fns[label]; ok {
			curves = append(curves, sample(label.String(), fn, constants.BrakeAxisMax, steps))
		}
	}
	return curves
}

// Curves dispatches to the per-axis accessor. Used by the transport layers.
// steps above constants.MaxCurveSteps is rejected with ErrTooManySteps.
func (e *Engine) Curves(axis Axis, steps int) ([]Curve, error) {
	if steps > constants.MaxCurveSteps {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManySteps, steps, constants.MaxCurveSteps)
	}
	switch axis {
	case AxisSpeed:
		return e.SpeedCurves(steps), nil
	case AxisDistance:
		return e.DistanceCurves(steps), nil
	case AxisBrake:
		return e.BrakeCurves(steps), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAxis, axis)
}

// sample evaluates fn at steps+1 evenly spaced points over [0, axisMax].
// steps <= 0 uses the default; larger than MaxCurveSteps is clamped.
func sample(label string, fn MembershipFunction, axisMax float64, steps int) Curve {
	if steps <= 0 {
		steps = constants.DefaultCurveSteps
	}
	steps = min(steps, constants.MaxCurveSteps)
	points := make([]CurvePoint, steps+1)
	for i := range points {
		x := axisMax * float64(i) / float64(steps)
		points[i] = CurvePoint{X: x, Y: fn.Degree(x)}
	}
	return Curve{
		Label:  label,
		Shape:  fn.Shape,
		Params: append([]float64(nil), fn.Points...),
		Points: points,
	}
}
