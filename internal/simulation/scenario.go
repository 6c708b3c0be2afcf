package simulation

import (
	"fmt"
	"strings"
)

// Scenario is a named starting condition for a run.
type Scenario struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Speed       float64 `json:"speed" yaml:"speed"`       // km/h
	Distance    float64 `json:"distance" yaml:"distance"` // meters
}

// Preset scenarios from the input panel.
var (
	scenarioDefault = Scenario{
		Name:        "default",
		Description: "Reset state: 80 km/h, 100 m out",
		Speed:       80,
		Distance:    100,
	}
	scenarioNearFast = Scenario{
		Name:        "near-fast",
		Description: "Close and fast: 100 km/h, 20 m out",
		Speed:       100,
		Distance:    20,
	}
	scenarioFarSlow = Scenario{
		Name:        "far-slow",
		Description: "Distant and slow: 40 km/h, 100 m out",
		Speed:       40,
		Distance:    100,
	}
	scenarioEmergency = Scenario{
		Name:        "emergency",
		Description: "Emergency stop: 120 km/h, 10 m out",
		Speed:       120,
		Distance:    10,
	}
)

// DefaultScenario returns the reset-state scenario.
func DefaultScenario() Scenario {
	return scenarioDefault
}

// Scenarios returns every preset in display order.
func Scenarios() []Scenario {
	return []Scenario{scenarioDefault, scenarioNearFast, scenarioFarSlow, scenarioEmergency}
}

// LookupScenario finds a preset by name, case-insensitively.
// Underscores and spaces are accepted in place of hyphens.
func LookupScenario(name string) (Scenario, error) {
	want := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range Scenarios() {
		if s.Name == want {
			return s, nil
		}
	}
	names := make([]string, 0, 4)
	for _, s := range Scenarios() {
		names = append(names, s.Name)
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q (valid: %s)", name, strings.Join(names, ", "))
}

// Custom builds an ad-hoc scenario from explicit inputs.
func Custom(speed, distance float64) Scenario {
	return Scenario{
		Name:        "custom",
		Description: fmt.Sprintf("%g km/h, %g m out", speed, distance),
		Speed:       speed,
		Distance:    distance,
	}
}
