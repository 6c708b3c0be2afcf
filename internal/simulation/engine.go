package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nvandessel/fuzzbrake/internal/config"
	"github.com/nvandessel/fuzzbrake/internal/constants"
	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/logging"
)

// ErrInvalidMultiplier is returned by SetSpeedMultiplier for m <= 0.
var ErrInvalidMultiplier = errors.New("speed multiplier must be positive")

// Config holds the simulation's physical constants.
type Config struct {
	TickPeriod       time.Duration
	PixelsPerMeter   float64
	SpeedScaleFactor float64
	StopThreshold    float64

	CarWidth         float64
	CarHeight        float64
	ObstaclePosition float64
	ObstacleWidth    float64
	ObstacleHeight   float64

	InitialSpeed    float64
	InitialPosition float64
	SpeedMultiplier float64
}

// DefaultConfig returns the stock scene: car at 100 px doing 80 km/h,
// obstacle at 700 px, 5 px per meter, 30 ms ticks.
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Simulation)
}

// ConfigFrom converts the file/env settings into an engine Config.
func ConfigFrom(s config.SimulationConfig) Config {
	return Config{
		TickPeriod:       s.TickPeriod,
		PixelsPerMeter:   s.PixelsPerMeter,
		SpeedScaleFactor: s.SpeedScaleFactor,
		StopThreshold:    s.StopThreshold,
		CarWidth:         s.CarWidth,
		CarHeight:        s.CarHeight,
		ObstaclePosition: s.ObstaclePosition,
		ObstacleWidth:    s.ObstacleWidth,
		ObstacleHeight:   s.ObstacleHeight,
		InitialSpeed:     s.InitialSpeed,
		InitialPosition:  s.InitialPosition,
		SpeedMultiplier:  s.SpeedMultiplier,
	}
}

// State is a point-in-time snapshot of the simulation.
type State struct {
	Tick             int               `json:"tick"`
	Speed            float64           `json:"speed"`
	Position         float64           `json:"position"`
	ObstaclePosition float64           `json:"obstacle_position"`
	Distance         float64           `json:"distance"`
	BrakeIntensity   float64           `json:"brake_intensity"`
	ActiveRules      []fuzzy.Rule      `json:"active_rules"`
	Running          bool              `json:"running"`
	Multiplier       float64           `json:"multiplier"`
	StopReason       constants.Outcome `json:"stop_reason"`
}

// Recorder receives a snapshot after every executed tick.
type Recorder interface {
	RecordTick(ctx context.Context, state State) error
}

// Engine is the tick state machine. It owns the vehicle's kinematic state
// and drives a fuzzy.Engine once per tick. Every exported method takes the
// engine lock, so ticks, inputs and Stop are serialized: once Stop returns
// no further tick executes until Start.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	fuzzy     *fuzzy.Engine
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	recorder  Recorder

	speed      float64
	position   float64
	distance   float64
	brake      float64
	active     []fuzzy.Rule
	running    bool
	multiplier float64
	ticks      int
	reason     constants.Outcome

	// pending is wall time handed to Advance not yet consumed by a tick.
	pending time.Duration
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithFuzzyEngine supplies the inference engine. By default a fresh one
// with the stock catalogs is created.
func WithFuzzyEngine(f *fuzzy.Engine) EngineOption {
	return func(e *Engine) {
		if f != nil {
			e.fuzzy = f
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDecisionLogger enables per-tick decision logging. A nil logger is a no-op.
func WithDecisionLogger(dl *logging.DecisionLogger) EngineOption {
	return func(e *Engine) { e.decisions = dl }
}

// WithRecorder attaches a recorder that sees every executed tick.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates a stopped engine at the configured initial state.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = constants.DefaultTickPeriod
	}
	if cfg.SpeedMultiplier <= 0 {
		cfg.SpeedMultiplier = constants.DefaultSpeedMultiplier
	}
	if cfg.PixelsPerMeter <= 0 {
		cfg.PixelsPerMeter = constants.PixelsPerMeter
	}

	e := &Engine{
		cfg:        cfg,
		logger:     logging.Discard(),
		multiplier: cfg.SpeedMultiplier,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fuzzy == nil {
		e.fuzzy = fuzzy.NewEngine(fuzzy.WithLogger(e.logger))
	}

	e.speed = cfg.InitialSpeed
	e.position = cfg.InitialPosition
	e.distance = e.distanceFrom(e.position)
	return e
}

// Fuzzy returns the inference engine this simulation drives.
func (e *Engine) Fuzzy() *fuzzy.Engine {
	return e.fuzzy
}

// Config returns the engine's physical constants.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetRecorder swaps the recorder; nil detaches it.
func (e *Engine) SetRecorder(r Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

// Start transitions to Running. It is a no-op if already running.
func (e *Engine) Start() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		e.running = true
		e.reason = constants.OutcomeNone
		e.pending = 0
		e.logger.Debug("simulation started", "speed", e.speed, "distance", e.distance)
	}
	return e.snapshotLocked()
}

// Stop transitions to Stopped. Calling it again changes nothing.
func (e *Engine) Stop() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.stopLocked(constants.OutcomeManual)
	}
	return e.snapshotLocked()
}

// Reset forces Stopped, restores the initial speed and position, and
// clears the brake intensity and active rules. Membership functions and
// rules are not touched.
func (e *Engine) Reset() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.speed = e.cfg.InitialSpeed
	e.position = e.cfg.InitialPosition
	e.distance = e.distanceFrom(e.position)
	e.brake = 0
	e.active = nil
	e.ticks = 0
	e.pending = 0
	e.reason = constants.OutcomeReset
	e.fuzzy.ClearActiveRules()
	e.logger.Debug("simulation reset")
	return e.snapshotLocked()
}

// Running reports whether the engine is in the Running state.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// SetSpeed sets the crisp vehicle speed (km/h). Negative values clamp to 0.
func (e *Engine) SetSpeed(v float64) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = max(0, v)
	return e.snapshotLocked()
}

// SetDistanceToObstacle places the car so that the derived distance is d
// meters. Negative values clamp to 0. Valid whether running or stopped.
func (e *Engine) SetDistanceToObstacle(d float64) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setDistanceLocked(d)
	return e.snapshotLocked()
}

// RestartAt stops any running simulation, sets distance and speed, then starts.
func (e *Engine) RestartAt(distance, speed float64) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.stopLocked(constants.OutcomeManual)
	}
	e.speed = max(0, speed)
	e.setDistanceLocked(distance)
	e.brake = 0
	e.active = nil
	e.ticks = 0
	e.pending = 0
	e.running = true
	e.reason = constants.OutcomeNone
	e.logger.Debug("simulation restarted", "speed", e.speed, "distance", e.distance)
	return e.snapshotLocked()
}

// SetSpeedMultiplier changes how strongly each tick brakes and moves the car.
// It does not change the tick rate.
func (e *Engine) SetSpeedMultiplier(m float64) (State, error) {
	if !(m > 0) {
		return e.Snapshot(), fmt.Errorf("%w: got %g", ErrInvalidMultiplier, m)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiplier = m
	return e.snapshotLocked(), nil
}

// Tick executes one simulation step if running and reports whether it did.
//
// Order: collision guard, inference, deceleration, motion, distance, rest check.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	e.tickLocked()
	return true
}

// Advance feeds elapsed wall time into the engine and runs one tick per
// whole tick period accumulated. It returns the number of ticks executed.
// Leftover time carries into the next call; it is discarded while stopped.
func (e *Engine) Advance(elapsed time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		e.pending = 0
		return 0
	}

	e.pending += elapsed
	n := 0
	for e.running && e.pending >= e.cfg.TickPeriod {
		e.pending -= e.cfg.TickPeriod
		e.tickLocked()
		n++
	}
	if !e.running {
		e.pending = 0
	}
	return n
}

func (e *Engine) tickLocked() {
	e.ticks++

	if e.position+e.cfg.CarWidth >= e.cfg.ObstaclePosition {
		e.stopLocked(constants.OutcomeCollision)
		e.emitLocked()
		return
	}

	e.brake, e.active = e.fuzzy.InferBrakeIntensity(e.speed, e.distance)

	decel := (e.brake / 100) * (e.speed / 10) * e.multiplier
	e.speed = max(0, e.speed-decel)
	e.position += e.speed * e.cfg.SpeedScaleFactor * e.multiplier
	e.distance = e.distanceFrom(e.position)

	if e.speed <= e.cfg.StopThreshold {
		e.speed = 0
		e.stopLocked(constants.OutcomeRest)
	}
	e.emitLocked()
}

func (e *Engine) stopLocked(reason constants.Outcome) {
	e.running = false
	e.reason = reason
	e.pending = 0
	e.logger.Debug("simulation stopped",
		"reason", string(reason),
		"tick", e.ticks,
		"speed", e.speed,
		"distance", e.distance)
}

// emitLocked hands the post-tick state to the decision log and recorder.
// Recording failures are logged and never stop the run.
func (e *Engine) emitLocked() {
	state := e.snapshotLocked()

	if e.decisions != nil {
		rules := make([]string, len(state.ActiveRules))
		for i, r := range state.ActiveRules {
			rules[i] = r.String()
		}
		event := "tick"
		if !state.Running {
			event = "stop"
		}
		e.decisions.Record(logging.Decision{
			Event:    event,
			Tick:     state.Tick,
			Speed:    state.Speed,
			Distance: state.Distance,
			Position: state.Position,
			Brake:    state.BrakeIntensity,
			Rules:    rules,
			Outcome:  string(state.StopReason),
		})
	}

	if e.recorder != nil {
		if err := e.recorder.RecordTick(context.Background(), state); err != nil {
			e.logger.Warn("failed to record tick", "tick", state.Tick, "error", err)
		}
	}
}

func (e *Engine) setDistanceLocked(d float64) {
	d = max(0, d)
	e.position = e.cfg.ObstaclePosition - d*e.cfg.PixelsPerMeter - e.cfg.CarWidth
	e.distance = e.distanceFrom(e.position)
}

// distanceFrom converts a car position to meters between its leading edge
// and the obstacle, floored at 0.
func (e *Engine) distanceFrom(position float64) float64 {
	return max(0, (e.cfg.ObstaclePosition-(position+e.cfg.CarWidth))/e.cfg.PixelsPerMeter)
}

func (e *Engine) snapshotLocked() State {
	return State{
		Tick:             e.ticks,
		Speed:            e.speed,
		Position:         e.position,
		ObstaclePosition: e.cfg.ObstaclePosition,
		Distance:         e.distance,
		BrakeIntensity:   e.brake,
		ActiveRules:      append([]fuzzy.Rule{}, e.active...),
		Running:          e.running,
		Multiplier:       e.multiplier,
		StopReason:       e.reason,
	}
}
