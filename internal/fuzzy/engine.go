package fuzzy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nvandessel/fuzzbrake/internal/logging"
)

var (
	// ErrUnknownLabel is returned for labels outside the closed catalogs or
	// labels with no membership function configured.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrUnknownAxis is returned by ParseAxis.
	ErrUnknownAxis = errors.New("unknown axis")

	// ErrRuleNotFound is returned by rule mutations given an unknown ID.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrPointCount is returned by Validate when a function has the wrong
	// number of control points for its shape.
	ErrPointCount = errors.New("wrong number of points")

	// ErrPointOrder is returned by Validate when points decrease.
	ErrPointOrder = errors.New("points out of order")

	// ErrTooManySteps is returned by Curves when the requested sampling
	// resolution exceeds constants.MaxCurveSteps.
	ErrTooManySteps = errors.New("too many curve steps")
)

// Inference is the full trace of one inference pass.
type Inference struct {
	Speed    float64 `json:"speed"`
	Distance float64 `json:"distance"`

	// SpeedDegrees and DistanceDegrees hold only labels with degree > 0.
	SpeedDegrees    map[SpeedLabel]float64    `json:"speed_degrees"`
	DistanceDegrees map[DistanceLabel]float64 `json:"distance_degrees"`

	// Activations holds, per consequence, the strongest activation among the
	// active rules that fired for it.
	Activations map[BrakeLabel]float64 `json:"activations"`

	// Rules lists the activated rules in declaration order.
	Rules []Rule `json:"rules"`

	// Intensity is the defuzzified brake intensity (percent).
	Intensity float64 `json:"intensity"`
}

// Engine owns the membership catalogs and the rule table, and performs
// fuzzification, rule aggregation and defuzzification.
// It is safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	speed    map[SpeedLabel]MembershipFunction
	distance map[DistanceLabel]MembershipFunction
	brake    map[BrakeLabel]MembershipFunction
	rules    []Rule
	active   []Rule
	logger   *slog.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the logger used for TRACE-level inference output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithFunctions replaces the default membership catalogs. Nil maps keep the default.
func WithFunctions(speed map[SpeedLabel]MembershipFunction, distance map[DistanceLabel]MembershipFunction, brake map[BrakeLabel]MembershipFunction) Option {
	return func(e *Engine) {
		if speed != nil {
			e.speed = cloneFunctions(speed)
		}
		if distance != nil {
			e.distance = cloneFunctions(distance)
		}
		if brake != nil {
			e.brake = cloneFunctions(brake)
		}
	}
}

// WithRules replaces the default rule table.
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.rules = slices.Clone(rules)
	}
}

// NewEngine creates an engine with the default catalogs and rule table.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		speed:    DefaultSpeedFunctions(),
		distance: DefaultDistanceFunctions(),
		brake:    DefaultBrakeFunctions(),
		rules:    DefaultRules(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clone returns an independent engine carrying the same catalogs, rules,
// and logger. Inference on the clone does not touch this engine's
// active-rule set.
func (e *Engine) Clone() *Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Engine{
		speed:    cloneFunctions(e.speed),
		distance: cloneFunctions(e.distance),
		brake:    cloneFunctions(e.brake),
		rules:    slices.Clone(e.rules),
		logger:   e.logger,
	}
}

// Fuzzify computes membership degrees for every label on the speed and
// distance axes. Only labels with degree > 0 are present in the results.
func (e *Engine) Fuzzify(speed, distance float64) (map[SpeedLabel]float64, map[DistanceLabel]float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fuzzifyLocked(speed, distance)
}

func (e *Engine) fuzzifyLocked(speed, distance float64) (map[SpeedLabel]float64, map[DistanceLabel]float64) {
	return degreesOf(e.speed, speed), degreesOf(e.distance, distance)
}

// InferBrakeIntensity runs one inference pass and returns the brake
// intensity with the rules that fired, in declaration order. When no active
// rule fires the result is (0, empty) and the active-rule set is cleared.
func (e *Engine) InferBrakeIntensity(speed, distance float64) (float64, []Rule) {
	inf := e.Infer(speed, distance)
	return inf.Intensity, inf.Rules
}

// Infer is InferBrakeIntensity with the intermediate degrees and
// activations exposed.
func (e *Engine) Infer(speed, distance float64) Inference {
	e.mu.Lock()
	defer e.mu.Unlock()

	speedDegrees, distanceDegrees := e.fuzzifyLocked(speed, distance)
	inf := Inference{
		Speed:           speed,
		Distance:        distance,
		SpeedDegrees:    speedDegrees,
		DistanceDegrees: distanceDegrees,
		Activations:     make(map[BrakeLabel]float64),
		Rules:           []Rule{},
	}

	for _, rule := range e.rules {
		if !rule.Active {
			continue
		}
		label, activation := rule.Evaluate(speedDegrees, distanceDegrees)
		if activation <= 0 {
			continue
		}
		// Fuzzy OR across rules sharing a consequence: max, not sum.
		if activation > inf.Activations[label] {
			inf.Activations[label] = activation
		}
		inf.Rules = append(inf.Rules, rule)
	}

	var total, weighted float64
	for _, label := range BrakeLabels() {
		activation, ok := inf.Activations[label]
		if !ok {
			continue
		}
		total += activation
		fn, ok := e.brake[label]
		if !ok {
			continue
		}
		rep, ok := fn.Representative()
		if !ok {
			continue
		}
		weighted += rep * activation
	}

	if total == 0 {
		e.active = nil
		e.logger.Log(context.Background(), logging.LevelTrace, "inference: no rule fired",
			"speed", speed, "distance", distance)
		return inf
	}

	inf.Intensity = weighted / total
	e.active = slices.Clone(inf.Rules)

	e.logger.Log(context.Background(), logging.LevelTrace, "inference",
		"speed", speed,
		"distance", distance,
		"rules", len(inf.Rules),
		"intensity", inf.Intensity)

	return inf
}

// ActiveRules returns the rules that fired on the most recent inference.
func (e *Engine) ActiveRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.active)
}

// ClearActiveRules empties the observable active-rule set.
func (e *Engine) ClearActiveRules() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = nil
}

// SpeedFunctions returns a copy of the speed catalog.
func (e *Engine) SpeedFunctions() map[SpeedLabel]MembershipFunction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneFunctions(e.speed)
}

// DistanceFunctions returns a copy of the distance catalog.
func (e *Engine) DistanceFunctions() map[DistanceLabel]MembershipFunction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneFunctions(e.distance)
}

// BrakeFunctions returns a copy of the brake catalog.
func (e *Engine) BrakeFunctions() map[BrakeLabel]MembershipFunction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneFunctions(e.brake)
}

// UpdateSpeedFunction replaces the points of a speed function in place.
// Points are stored as given; ordering is the caller's responsibility.
func (e *Engine) UpdateSpeedFunction(label SpeedLabel, points []float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return updatePoints(e.speed, label, points)
}

// UpdateDistanceFunction replaces the points of a distance function in place.
func (e *Engine) UpdateDistanceFunction(label DistanceLabel, points []float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return updatePoints(e.distance, label, points)
}

// UpdateBrakeFunction replaces the points of a brake function in place.
func (e *Engine) UpdateBrakeFunction(label BrakeLabel, points []float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return updatePoints(e.brake, label, points)
}

// ResetFunctions restores the default membership catalogs. Rules are untouched.
func (e *Engine) ResetFunctions() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = DefaultSpeedFunctions()
	e.distance = DefaultDistanceFunctions()
	e.brake = DefaultBrakeFunctions()
}

// Rules returns a copy of the rule table in declaration order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.rules)
}

// Rule returns the rule with the given ID.
func (e *Engine) Rule(id string) (Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i := e.indexOf(id)
	if i < 0 {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return e.rules[i], nil
}

// AddRule appends an active rule and returns it.
func (e *Engine) AddRule(speed SpeedLabel, distance DistanceLabel, brake BrakeLabel) (Rule, error) {
	if err := validateLabels(speed, distance, brake); err != nil {
		return Rule{}, err
	}
	rule := NewRule(speed, distance, brake)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	return rule, nil
}

// AddDefaultRule appends the editor's placeholder rule:
// IF Moderate AND Medium THEN Moderate Brake.
func (e *Engine) AddDefaultRule() Rule {
	rule, err := e.AddRule(Moderate, Medium, ModerateBrake)
	if err != nil {
		// The placeholder labels are package constants; validateLabels
		// rejecting them means the label tables are broken.
		panic(fmt.Sprintf("fuzzy: default rule rejected: %v", err))
	}
	return rule
}

// UpdateRule changes a rule's antecedents and consequence, keeping its ID
// and active flag.
func (e *Engine) UpdateRule(id string, speed SpeedLabel, distance DistanceLabel, brake BrakeLabel) (Rule, error) {
	if err := validateLabels(speed, distance, brake); err != nil {
		return Rule{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	e.rules[i].Speed = speed
	e.rules[i].Distance = distance
	e.rules[i].Brake = brake
	return e.rules[i], nil
}

// RemoveRule deletes a rule.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	e.rules = slices.Delete(e.rules, i, i+1)
	return nil
}

// SetRuleActive enables or disables a rule.
func (e *Engine) SetRuleActive(id string, active bool) (Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	e.rules[i].Active = active
	return e.rules[i], nil
}

// ToggleRule flips a rule's active flag.
func (e *Engine) ToggleRule(id string) (Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	e.rules[i].Active = !e.rules[i].Active
	return e.rules[i], nil
}

// ResetRules discards every added or edited rule and rebuilds the default
// table. Membership functions are untouched.
func (e *Engine) ResetRules() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = DefaultRules()
}

func (e *Engine) indexOf(id string) int {
	return slices.IndexFunc(e.rules, func(r Rule) bool { return r.ID == id })
}

func validateLabels(speed SpeedLabel, distance DistanceLabel, brake BrakeLabel) error {
	switch {
	case !speed.Valid():
		return fmt.Errorf("%w: %s", ErrUnknownLabel, speed)
	case !distance.Valid():
		return fmt.Errorf("%w: %s", ErrUnknownLabel, distance)
	case !brake.Valid():
		return fmt.Errorf("%w: %s", ErrUnknownLabel, brake)
	}
	return nil
}

func degreesOf[L comparable](functions map[L]MembershipFunction, value float64) map[L]float64 {
	degrees := make(map[L]float64, len(functions))
	for label, fn := range functions {
		if d := fn.Degree(value); d > 0 {
			degrees[label] = d
		}
	}
	return degrees
}

func updatePoints[L comparable](functions map[L]MembershipFunction, label L, points []float64) error {
	fn, ok := functions[label]
	if !ok {
		return fmt.Errorf("%w: no function for %v", ErrUnknownLabel, label)
	}
	fn.Points = slices.Clone(points)
	functions[label] = fn
	return nil
}

func cloneFunctions[L comparable](functions map[L]MembershipFunction) map[L]MembershipFunction {
	out := make(map[L]MembershipFunction, len(functions))
	for label, fn := range functions {
		out[label] = fn.Clone()
	}
	return out
}
