// Package constants provides named constants used throughout the fuzzbrake codebase.
// This centralizes the physical scale factors and axis ranges shared by the
// simulation, the plotting layer, and the transport surfaces.
package constants

import "time"

// Simulation timing
const (
	// DefaultTickPeriod is the nominal wall-clock interval between simulation ticks.
	DefaultTickPeriod = 30 * time.Millisecond

	// StopSpeedThreshold is the speed (km/h) at or below which the vehicle is
	// snapped to rest and the run ends.
	StopSpeedThreshold = 0.1

	// DefaultSpeedMultiplier scales braking and motion per tick, not the tick rate.
	DefaultSpeedMultiplier = 1.0

	// DefaultMaxTicks bounds headless runs so a misconfigured controller cannot spin forever.
	DefaultMaxTicks = 100000
)

// Scene geometry, in pixels unless noted. Only the collision guard and the
// distance derivation depend on these; fuzzy inference never sees them.
const (
	// PixelsPerMeter converts scene positions into meters of distance.
	PixelsPerMeter = 5.0

	// SpeedScaleFactor converts km/h into pixels travelled per tick.
	SpeedScaleFactor = 0.1

	CarWidth  = 60.0
	CarHeight = 40.0

	ObstaclePosition = 700.0
	ObstacleWidth    = 60.0
	ObstacleHeight   = 40.0

	// DefaultCarPosition is the car's trailing edge at reset.
	DefaultCarPosition = 100.0

	// DefaultCarSpeed is the speed (km/h) restored on reset.
	DefaultCarSpeed = 80.0
)

// Axis ranges used when sampling membership curves and sizing editor sliders.
const (
	SpeedAxisMax    = 200.0 // km/h
	DistanceAxisMax = 150.0 // meters
	BrakeAxisMax    = 100.0 // percent

	// DefaultCurveSteps is the number of intervals sampled per curve.
	DefaultCurveSteps = 100

	// MaxCurveSteps caps the sampling resolution accepted from callers.
	MaxCurveSteps = 10000
)
