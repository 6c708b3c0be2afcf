// Package fuzzy implements the brake controller's fuzzy inference engine:
// piecewise-linear membership functions over three closed label catalogs,
// min-AND rules aggregated with max-OR, and weighted-average defuzzification
// over each output label's representative value.
package fuzzy

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Shape selects the piecewise-linear form of a membership function.
type Shape int

const (
	// Triangular functions take points (a, b, c) with the peak at b.
	Triangular Shape = iota

	// Trapezoidal functions take points (a, b, c, d) with a plateau on [b, c].
	Trapezoidal
)

// RequiredPoints returns how many control points the shape needs.
func (s Shape) RequiredPoints() int {
	if s == Trapezoidal {
		return 4
	}
	return 3
}

func (s Shape) String() string {
	switch s {
	case Triangular:
		return "triangular"
	case Trapezoidal:
		return "trapezoidal"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// MarshalText encodes the shape by name.
func (s Shape) MarshalText() ([]byte, error) {
	if s != Triangular && s != Trapezoidal {
		return nil, fmt.Errorf("unknown shape %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts "triangular"/"tri" and "trapezoidal"/"trap".
func (s *Shape) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "triangular", "tri", "triangle":
		*s = Triangular
	case "trapezoidal", "trap", "trapezoid":
		*s = Trapezoidal
	default:
		return fmt.Errorf("unknown shape %q", string(text))
	}
	return nil
}

// MembershipFunction maps a crisp value to a degree of membership in [0, 1].
//
// Points must be non-decreasing for the function to be meaningful. The engine
// never enforces this; editors call ClampPoints before committing an update.
type MembershipFunction struct {
	Shape  Shape     `json:"shape"`
	Label  string    `json:"label"`
	Points []float64 `json:"points"`
}

// Tri builds a triangular function.
func Tri(label string, a, b, c float64) MembershipFunction {
	return MembershipFunction{Shape: Triangular, Label: label, Points: []float64{a, b, c}}
}

// Trap builds a trapezoidal function.
func Trap(label string, a, b, c, d float64) MembershipFunction {
	return MembershipFunction{Shape: Trapezoidal, Label: label, Points: []float64{a, b, c, d}}
}

// Degree returns the membership degree of value. A function with fewer
// points than its shape requires evaluates to 0 everywhere.
//
// Boundary checks run before any ramp division so that coincident points
// (a == b, or a == b == c) never divide by zero.
func (m MembershipFunction) Degree(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	switch m.Shape {
	case Triangular:
		if len(m.Points) < 3 {
			return 0
		}
		a, b, c := m.Points[0], m.Points[1], m.Points[2]
		switch {
		case a == b && b == c:
			// Degenerate spike: 1 at exactly the shared point.
			if value == b {
				return 1
			}
			return 0
		case value <= a || value >= c:
			return 0
		case value == b:
			return 1
		case value < b:
			return (value - a) / (b - a)
		default:
			return (c - value) / (c - b)
		}

	case Trapezoidal:
		if len(m.Points) < 4 {
			return 0
		}
		a, b, c, d := m.Points[0], m.Points[1], m.Points[2], m.Points[3]
		switch {
		case a == b && b == c && c == d:
			if value == b {
				return 1
			}
			return 0
		case value <= a || value >= d:
			return 0
		case value >= b && value <= c:
			return 1
		case value < b:
			return (value - a) / (b - a)
		default:
			return (d - value) / (d - c)
		}
	}
	return 0
}

// Representative returns the single value standing in for this function
// during defuzzification: the peak b for triangles, the plateau midpoint
// (b+c)/2 for trapezoids. ok is false when the function is degenerate.
func (m MembershipFunction) Representative() (value float64, ok bool) {
	if len(m.Points) < m.Shape.RequiredPoints() {
		return 0, false
	}
	switch m.Shape {
	case Triangular:
		return m.Points[1], true
	case Trapezoidal:
		return (m.Points[1] + m.Points[2]) / 2, true
	}
	return 0, false
}

// Validate reports a wrong point count or decreasing points. It is meant
// for editing boundaries; Degree tolerates both.
func (m MembershipFunction) Validate() error {
	if want := m.Shape.RequiredPoints(); len(m.Points) != want {
		return fmt.Errorf("%w: %s %q needs %d points, got %d", ErrPointCount, m.Shape, m.Label, want, len(m.Points))
	}
	for i := 1; i < len(m.Points); i++ {
		if m.Points[i] < m.Points[i-1] {
			return fmt.Errorf("%w: %q point %d (%g) is below point %d (%g)",
				ErrPointOrder, m.Label, i, m.Points[i], i-1, m.Points[i-1])
		}
	}
	return nil
}

// Clone returns a copy that shares no memory with m.
func (m MembershipFunction) Clone() MembershipFunction {
	out := m
	out.Points = append([]float64(nil), m.Points...)
	return out
}

// MarshalJSON emits a null-safe points array.
func (m MembershipFunction) MarshalJSON() ([]byte, error) {
	type alias MembershipFunction
	out := alias(m)
	if out.Points == nil {
		out.Points = []float64{}
	}
	return json.Marshal(out)
}

// ClampPoints returns a copy of points lifted into non-decreasing order:
// each point below its predecessor is raised to match it. This is the
// editor-side correction applied before UpdateXxxFunction.
func ClampPoints(points []float64) []float64 {
	out := append([]float64(nil), points...)
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			out[i] = out[i-1]
		}
	}
	return out
}
