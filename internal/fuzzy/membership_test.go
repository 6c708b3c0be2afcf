package fuzzy

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestDegree_Triangular(t *testing.T) {
	fn := Tri("Moderate", 20, 50, 80)

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"left foot", 20, 0},
		{"peak", 50, 1},
		{"right foot", 80, 0},
		{"below support", -5, 0},
		{"above support", 120, 0},
		{"rising ramp", 35, 0.5},
		{"falling ramp", 65, 0.5},
		{"near peak", 47, 0.9},
		{"NaN", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fn.Degree(tt.value); !approx(got, tt.want) {
				t.Errorf("Degree(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDegree_TriangularMonotonic(t *testing.T) {
	for _, fn := range []MembershipFunction{
		Tri("a", 20, 50, 80),
		Tri("b", 5, 15, 25),
		Tri("c", 80, 100, 101),
	} {
		a, b, c := fn.Points[0], fn.Points[1], fn.Points[2]
		prev := fn.Degree(a)
		for i := 1; i <= 100; i++ {
			x := a + (b-a)*float64(i)/100
			d := fn.Degree(x)
			if d < prev {
				t.Fatalf("%s: degree decreased on rising edge at %v: %v < %v", fn.Label, x, d, prev)
			}
			prev = d
		}
		for i := 1; i <= 100; i++ {
			x := b + (c-b)*float64(i)/100
			d := fn.Degree(x)
			if d > prev {
				t.Fatalf("%s: degree increased on falling edge at %v: %v > %v", fn.Label, x, d, prev)
			}
			prev = d
		}
	}
}

func TestDegree_Trapezoidal(t *testing.T) {
	fn := Trap("Very Fast", 100, 130, 200, 200)

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"left foot", 100, 0},
		{"plateau start", 130, 1},
		{"plateau middle", 165, 1},
		{"rising ramp", 115, 0.5},
		{"at d", 200, 0},
		{"beyond d", 250, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fn.Degree(tt.value); !approx(got, tt.want) {
				t.Errorf("Degree(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}

	inner := Trap("inner", 10, 20, 30, 40)
	for x := 20.0; x <= 30; x += 0.5 {
		if got := inner.Degree(x); got != 1 {
			t.Errorf("plateau Degree(%v) = %v, want 1", x, got)
		}
	}
	if got := inner.Degree(35); !approx(got, 0.5) {
		t.Errorf("falling ramp Degree(35) = %v, want 0.5", got)
	}
}

func TestDegree_Degenerate(t *testing.T) {
	spike := Tri("spike", 42, 42, 42)
	if got := spike.Degree(42); got != 1 {
		t.Errorf("Degree(k) = %v, want 1", got)
	}
	for _, x := range []float64{41.999, 0, 43, -42, 1e9} {
		if got := spike.Degree(x); got != 0 {
			t.Errorf("Degree(%v) = %v, want 0", x, got)
		}
	}

	flat := Trap("flat", 7, 7, 7, 7)
	if got := flat.Degree(7); got != 1 {
		t.Errorf("trapezoid Degree(k) = %v, want 1", got)
	}
	if got := flat.Degree(8); got != 0 {
		t.Errorf("trapezoid Degree(8) = %v, want 0", got)
	}

	// Coincident a and b: no division by zero on the left ramp.
	leftShoulder := Tri("slow", 0, 0, 40)
	if got := leftShoulder.Degree(20); !approx(got, 0.5) {
		t.Errorf("Degree(20) = %v, want 0.5", got)
	}
	if got := leftShoulder.Degree(0); got != 0 {
		t.Errorf("Degree(0) = %v, want 0 (boundary check precedes peak)", got)
	}
}

func TestDegree_InsufficientPoints(t *testing.T) {
	tests := []struct {
		name string
		fn   MembershipFunction
	}{
		{"triangle with two points", MembershipFunction{Shape: Triangular, Points: []float64{0, 10}}},
		{"trapezoid with three points", MembershipFunction{Shape: Trapezoidal, Points: []float64{0, 10, 20}}},
		{"no points", MembershipFunction{Shape: Triangular}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, x := range []float64{-1, 0, 5, 10, 15, 100} {
				if got := tt.fn.Degree(x); got != 0 {
					t.Errorf("Degree(%v) = %v, want 0", x, got)
				}
			}
			if _, ok := tt.fn.Representative(); ok {
				t.Error("Representative() ok = true, want false")
			}
		})
	}
}

func TestRepresentative(t *testing.T) {
	tests := []struct {
		name string
		fn   MembershipFunction
		want float64
	}{
		{"triangle peak", Tri("light", 10, 25, 40), 25},
		{"left shoulder", Tri("none", 0, 0, 20), 0},
		{"trapezoid plateau midpoint", Trap("far", 50, 80, 150, 150), 115},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.fn.Representative()
			if !ok || got != tt.want {
				t.Errorf("Representative() = (%v, %v), want (%v, true)", got, ok, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		fn      MembershipFunction
		wantErr error
	}{
		{"valid triangle", Tri("x", 0, 5, 10), nil},
		{"valid degenerate", Tri("x", 3, 3, 3), nil},
		{"too few", MembershipFunction{Shape: Trapezoidal, Points: []float64{1, 2, 3}}, ErrPointCount},
		{"too many", MembershipFunction{Shape: Triangular, Points: []float64{1, 2, 3, 4}}, ErrPointCount},
		{"decreasing", Tri("x", 10, 5, 20), ErrPointOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClampPoints(t *testing.T) {
	tests := []struct {
		name  string
		input []float64
		want  []float64
	}{
		{"already ordered", []float64{1, 2, 3}, []float64{1, 2, 3}},
		{"middle dips", []float64{10, 5, 20}, []float64{10, 10, 20}},
		{"cascade", []float64{50, 40, 30, 20}, []float64{50, 50, 50, 50}},
		{"empty", nil, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]float64(nil), tt.input...)
			got := ClampPoints(input)
			if len(got) != len(tt.want) {
				t.Fatalf("ClampPoints(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ClampPoints(%v) = %v, want %v", tt.input, got, tt.want)
				}
			}
			for i := 1; i < len(got); i++ {
				if got[i] < got[i-1] {
					t.Errorf("result not non-decreasing: %v", got)
				}
			}
			for i := range input {
				if input[i] != tt.input[i] {
					t.Errorf("ClampPoints mutated its input: %v", input)
				}
			}
		})
	}
}

func TestMembershipFunction_JSON(t *testing.T) {
	data, err := json.Marshal(Trap("Far", 50, 80, 150, 150))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"shape":"trapezoidal","label":"Far","points":[50,80,150,150]}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var fn MembershipFunction
	if err := json.Unmarshal([]byte(`{"shape":"tri","label":"x","points":[1,2,3]}`), &fn); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if fn.Shape != Triangular || len(fn.Points) != 3 {
		t.Errorf("Unmarshal = %+v", fn)
	}

	data, _ = json.Marshal(MembershipFunction{Shape: Triangular, Label: "empty"})
	if string(data) != `{"shape":"triangular","label":"empty","points":[]}` {
		t.Errorf("nil points marshaled as %s", data)
	}
}
