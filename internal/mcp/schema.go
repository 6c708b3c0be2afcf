// Package mcp provides an MCP (Model Context Protocol) server for fuzzbrake.
package mcp

// RuleSummary is the wire form of a fuzzy rule.
type RuleSummary struct {
	ID       string `json:"id"`
	Speed    string `json:"speed"`
	Distance string `json:"distance"`
	Brake    string `json:"brake"`
	Active   bool   `json:"active"`
	Text     string `json:"text" jsonschema:"Rule rendered as IF speed AND distance THEN brake"`
}

// StateOutput is the wire form of a simulation snapshot.
type StateOutput struct {
	Tick             int           `json:"tick" jsonschema:"Ticks executed since the last restart"`
	Speed            float64       `json:"speed" jsonschema:"Vehicle speed in km/h"`
	Position         float64       `json:"position" jsonschema:"Car position in pixels"`
	ObstaclePosition float64       `json:"obstacle_position" jsonschema:"Obstacle position in pixels"`
	Distance         float64       `json:"distance" jsonschema:"Distance to obstacle in meters"`
	BrakeIntensity   float64       `json:"brake_intensity" jsonschema:"Last inferred brake intensity in percent"`
	ActiveRules      []RuleSummary `json:"active_rules" jsonschema:"Rules that fired on the last tick"`
	Running          bool          `json:"running"`
	Multiplier       float64       `json:"multiplier" jsonschema:"Speed multiplier applied to braking and motion"`
	StopReason       string        `json:"stop_reason,omitempty" jsonschema:"Why the simulation last stopped: manual, collision, rest, reset or budget"`
}

// InferInput defines the input for fuzzbrake_infer tool.
type InferInput struct {
	Speed    float64 `json:"speed" jsonschema:"Crisp speed in km/h"`
	Distance float64 `json:"distance" jsonschema:"Crisp distance to obstacle in meters"`
}

// InferOutput defines the output for fuzzbrake_infer tool.
type InferOutput struct {
	Intensity       float64            `json:"intensity" jsonschema:"Defuzzified brake intensity in percent"`
	SpeedDegrees    map[string]float64 `json:"speed_degrees" jsonschema:"Speed labels with non-zero membership"`
	DistanceDegrees map[string]float64 `json:"distance_degrees" jsonschema:"Distance labels with non-zero membership"`
	Activations     map[string]float64 `json:"activations" jsonschema:"Aggregated activation per brake label"`
	Rules           []RuleSummary      `json:"rules" jsonschema:"Rules that fired"`
	Message         string             `json:"message"`
}

// StateInput defines the input for fuzzbrake_state tool.
type StateInput struct{}

// SetInputsInput defines the input for fuzzbrake_set_inputs tool.
type SetInputsInput struct {
	Speed    *float64 `json:"speed,omitempty" jsonschema:"New speed in km/h; negative values clamp to 0"`
	Distance *float64 `json:"distance,omitempty" jsonschema:"New distance to obstacle in meters; negative values clamp to 0"`
}

// UpdateMembershipInput defines the input for fuzzbrake_update_membership tool.
type UpdateMembershipInput struct {
	Axis   string    `json:"axis" jsonschema:"Axis: speed, distance or brake"`
	Label  string    `json:"label" jsonschema:"Label on the axis, e.g. Very Fast or emergency_brake"`
	Points []float64 `json:"points" jsonschema:"Control points: 3 for triangular, 4 for trapezoidal; out-of-order points are raised to their predecessor"`
}

// UpdateMembershipOutput defines the output for fuzzbrake_update_membership tool.
type UpdateMembershipOutput struct {
	Axis    string    `json:"axis"`
	Label   string    `json:"label"`
	Shape   string    `json:"shape"`
	Points  []float64 `json:"points" jsonschema:"Stored control points after clamping"`
	Message string    `json:"message"`
}

// RulesInput defines the input for fuzzbrake_rules tool.
type RulesInput struct {
	Action   string `json:"action,omitempty" jsonschema:"One of list, add, update, remove, toggle, reset (default: list)"`
	ID       string `json:"id,omitempty" jsonschema:"Rule ID for update, remove and toggle"`
	Speed    string `json:"speed,omitempty" jsonschema:"Speed label for add and update"`
	Distance string `json:"distance,omitempty" jsonschema:"Distance label for add and update"`
	Brake    string `json:"brake,omitempty" jsonschema:"Brake label for add and update"`
}

// RulesOutput defines the output for fuzzbrake_rules tool.
type RulesOutput struct {
	Rules   []RuleSummary `json:"rules" jsonschema:"Rule table after the action"`
	Count   int           `json:"count"`
	Rule    *RuleSummary  `json:"rule,omitempty" jsonschema:"Rule affected by the action"`
	Message string        `json:"message"`
}

// SimulationInput defines the input for fuzzbrake_simulation tool.
type SimulationInput struct {
	Action     string   `json:"action" jsonschema:"One of start, stop, reset, step, run, multiplier"`
	Ticks      int      `json:"ticks,omitempty" jsonschema:"Ticks to execute for step (default: 1)"`
	Multiplier float64  `json:"multiplier,omitempty" jsonschema:"Speed multiplier for the multiplier action; must be positive"`
	Scenario   string   `json:"scenario,omitempty" jsonschema:"Preset for run: default, near-fast, far-slow or emergency"`
	Speed      *float64 `json:"speed,omitempty" jsonschema:"Initial speed for run, overriding the scenario"`
	Distance   *float64 `json:"distance,omitempty" jsonschema:"Initial distance for run, overriding the scenario"`
	MaxTicks   int      `json:"max_ticks,omitempty" jsonschema:"Tick budget for run (default: 100000)"`
	Record     bool     `json:"record,omitempty" jsonschema:"Record the run in the run log"`
}

// SimulationOutput defines the output for fuzzbrake_simulation tool.
type SimulationOutput struct {
	State   StateOutput `json:"state"`
	Outcome string      `json:"outcome,omitempty" jsonschema:"How a run ended"`
	Ticks   int         `json:"ticks,omitempty" jsonschema:"Ticks executed by a run or step"`
	RunID   string      `json:"run_id,omitempty" jsonschema:"Run log ID when recorded"`
	Message string      `json:"message"`
}

// CurvesInput defines the input for fuzzbrake_curves tool.
type CurvesInput struct {
	Axis  string `json:"axis" jsonschema:"Axis: speed, distance or brake"`
	Steps int    `json:"steps,omitempty" jsonschema:"Sampling steps across the axis (default: 100)"`
}

// CurveSummary is the wire form of a sampled membership function.
type CurveSummary struct {
	Label  string       `json:"label"`
	Shape  string       `json:"shape"`
	Params []float64    `json:"params"`
	Points [][]float64 `json:"points" jsonschema:"Sampled [x, degree] pairs"`
}

// CurvesOutput defines the output for fuzzbrake_curves tool.
type CurvesOutput struct {
	Axis   string         `json:"axis"`
	Curves []CurveSummary `json:"curves"`
}
