package fuzzy

import (
	"fmt"
	"strings"
)

// SpeedLabel is a linguistic term on the speed axis.
type SpeedLabel int

const (
	Slow SpeedLabel = iota
	Moderate
	Fast
	VeryFast
)

var speedNames = [...]string{"Slow", "Moderate", "Fast", "Very Fast"}

// SpeedLabels returns every speed label in declaration order.
func SpeedLabels() []SpeedLabel {
	return []SpeedLabel{Slow, Moderate, Fast, VeryFast}
}

// Valid returns true if l is one of the declared speed labels.
func (l SpeedLabel) Valid() bool { return l >= Slow && l <= VeryFast }

func (l SpeedLabel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("SpeedLabel(%d)", int(l))
	}
	return speedNames[l]
}

// MarshalText encodes the label as its display name.
func (l SpeedLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, l)
	}
	return []byte(l.String()), nil
}

// UnmarshalText accepts any spelling ParseSpeedLabel accepts.
func (l *SpeedLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseSpeedLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseSpeedLabel parses "Very Fast", "veryFast", "very_fast" and similar.
func ParseSpeedLabel(s string) (SpeedLabel, error) {
	i, ok := lookupName(speedNames[:], s)
	if !ok {
		return 0, fmt.Errorf("%w: speed %q", ErrUnknownLabel, s)
	}
	return SpeedLabel(i), nil
}

// DistanceLabel is a linguistic term on the distance axis.
type DistanceLabel int

const (
	VeryNear DistanceLabel = iota
	Near
	Medium
	Far
)

var distanceNames = [...]string{"Very Near", "Near", "Medium", "Far"}

// DistanceLabels returns every distance label in declaration order.
func DistanceLabels() []DistanceLabel {
	return []DistanceLabel{VeryNear, Near, Medium, Far}
}

// Valid returns true if l is one of the declared distance labels.
func (l DistanceLabel) Valid() bool { return l >= VeryNear && l <= Far }

func (l DistanceLabel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("DistanceLabel(%d)", int(l))
	}
	return distanceNames[l]
}

// MarshalText encodes the label as its display name.
func (l DistanceLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, l)
	}
	return []byte(l.String()), nil
}

// UnmarshalText accepts any spelling ParseDistanceLabel accepts.
func (l *DistanceLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseDistanceLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseDistanceLabel parses "Very Near", "veryNear", "very-near" and similar.
func ParseDistanceLabel(s string) (DistanceLabel, error) {
	i, ok := lookupName(distanceNames[:], s)
	if !ok {
		return 0, fmt.Errorf("%w: distance %q", ErrUnknownLabel, s)
	}
	return DistanceLabel(i), nil
}

// BrakeLabel is a linguistic term on the brake output axis.
type BrakeLabel int

const (
	NoBrake BrakeLabel = iota
	LightBrake
	ModerateBrake
	StrongBrake
	EmergencyBrake
)

var brakeNames = [...]string{"No Brake", "Light Brake", "Moderate Brake", "Strong Brake", "Emergency Brake"}

// BrakeLabels returns every brake label in declaration order.
func BrakeLabels() []BrakeLabel {
	return []BrakeLabel{NoBrake, LightBrake, ModerateBrake, StrongBrake, EmergencyBrake}
}

// Valid returns true if l is one of the declared brake labels.
func (l BrakeLabel) Valid() bool { return l >= NoBrake && l <= EmergencyBrake }

func (l BrakeLabel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("BrakeLabel(%d)", int(l))
	}
	return brakeNames[l]
}

// MarshalText encodes the label as its display name.
func (l BrakeLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, l)
	}
	return []byte(l.String()), nil
}

// UnmarshalText accepts any spelling ParseBrakeLabel accepts.
func (l *BrakeLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseBrakeLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseBrakeLabel parses "Emergency Brake", "emergencyBrake", "emergency" and similar.
// The trailing "brake" word may be omitted, and "none" means NoBrake.
func ParseBrakeLabel(s string) (BrakeLabel, error) {
	if i, ok := lookupName(brakeNames[:], s); ok {
		return BrakeLabel(i), nil
	}
	if i, ok := lookupName(brakeNames[:], s+"brake"); ok {
		return BrakeLabel(i), nil
	}
	if normalizeName(s) == "none" {
		return NoBrake, nil
	}
	return 0, fmt.Errorf("%w: brake %q", ErrUnknownLabel, s)
}

// Axis selects one of the three linguistic domains. It exists for transport
// boundaries (HTTP paths, MCP arguments); engine methods are per-axis.
type Axis string

const (
	AxisSpeed    Axis = "speed"
	AxisDistance Axis = "distance"
	AxisBrake    Axis = "brake"
)

// Axes returns the three axes in input-to-output order.
func Axes() []Axis {
	return []Axis{AxisSpeed, AxisDistance, AxisBrake}
}

// ParseAxis parses an axis name, case-insensitively.
func ParseAxis(s string) (Axis, error) {
	switch Axis(strings.ToLower(strings.TrimSpace(s))) {
	case AxisSpeed:
		return AxisSpeed, nil
	case AxisDistance:
		return AxisDistance, nil
	case AxisBrake:
		return AxisBrake, nil
	}
	return "", fmt.Errorf("%w: %q (valid: speed, distance, brake)", ErrUnknownAxis, s)
}

// normalizeName folds case and drops separators so that "Very Fast",
// "veryFast", "very_fast" and "very-fast" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func lookupName(names []string, s string) (int, bool) {
	want := normalizeName(s)
	if want == "" {
		return 0, false
	}
	for i, name := range names {
		if normalizeName(name) == want {
			return i, true
		}
	}
	return 0, false
}
