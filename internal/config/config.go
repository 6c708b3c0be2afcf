// Package config provides unified configuration loading for fuzzbrake.
// It supports loading from YAML files and environment variables.
//
// Configuration covers the simulation's physical constants and the outer
// surfaces (logging, HTTP, MCP, run log). It never carries membership
// functions or rules; those live only in the running engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/fuzzbrake/internal/constants"
	"gopkg.in/yaml.v3"
)

// FuzzbrakeConfig contains all fuzzbrake configuration settings.
type FuzzbrakeConfig struct {
	// Simulation contains the tick loop's timing and scene geometry.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Server configures the HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Store configures the SQLite run log.
	Store StoreConfig `json:"store" yaml:"store"`

	// MCP configures the MCP tool server.
	MCP MCPConfig `json:"mcp" yaml:"mcp"`
}

// SimulationConfig holds the simulation's fixed physical constants.
// Only the collision guard and distance derivation read the geometry.
type SimulationConfig struct {
	// TickPeriod is the wall-clock interval between ticks in realtime mode.
	TickPeriod time.Duration `json:"tick_period" yaml:"tick_period"`

	// SpeedMultiplier scales braking and motion per tick. Must be > 0.
	SpeedMultiplier float64 `json:"speed_multiplier" yaml:"speed_multiplier"`

	// MaxTicks bounds headless runs.
	MaxTicks int `json:"max_ticks" yaml:"max_ticks"`

	InitialSpeed    float64 `json:"initial_speed" yaml:"initial_speed"`
	InitialPosition float64 `json:"initial_position" yaml:"initial_position"`

	PixelsPerMeter   float64 `json:"pixels_per_meter" yaml:"pixels_per_meter"`
	SpeedScaleFactor float64 `json:"speed_scale_factor" yaml:"speed_scale_factor"`
	StopThreshold    float64 `json:"stop_threshold" yaml:"stop_threshold"`

	CarWidth         float64 `json:"car_width" yaml:"car_width"`
	CarHeight        float64 `json:"car_height" yaml:"car_height"`
	ObstaclePosition float64 `json:"obstacle_position" yaml:"obstacle_position"`
	ObstacleWidth    float64 `json:"obstacle_width" yaml:"obstacle_width"`
	ObstacleHeight   float64 `json:"obstacle_height" yaml:"obstacle_height"`
}

// LoggingConfig configures fuzzbrake's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables per-tick decision logging to decisions.jsonl.
	// "trace" additionally logs every inference pass on stderr.
	Level string `json:"level" yaml:"level"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Port 0 picks a free port.
	Addr string `json:"addr" yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MutationsPerSecond and MutationBurst rate limit POST/PUT/DELETE routes.
	MutationsPerSecond float64 `json:"mutations_per_second" yaml:"mutations_per_second"`
	MutationBurst      int     `json:"mutation_burst" yaml:"mutation_burst"`
}

// StoreConfig configures the run log.
type StoreConfig struct {
	// Path is the SQLite file. Empty means runs.db in the data directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Record enables recording every simulation run.
	Record bool `json:"record" yaml:"record"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	// Audit enables the JSONL tool-call audit log in the data directory.
	Audit bool `json:"audit" yaml:"audit"`
}

// Default returns a FuzzbrakeConfig with sensible defaults.
func Default() *FuzzbrakeConfig {
	return &FuzzbrakeConfig{
		Simulation: SimulationConfig{
			TickPeriod:       constants.DefaultTickPeriod,
			SpeedMultiplier:  constants.DefaultSpeedMultiplier,
			MaxTicks:         constants.DefaultMaxTicks,
			InitialSpeed:     constants.DefaultCarSpeed,
			InitialPosition:  constants.DefaultCarPosition,
			PixelsPerMeter:   constants.PixelsPerMeter,
			SpeedScaleFactor: constants.SpeedScaleFactor,
			StopThreshold:    constants.StopSpeedThreshold,
			CarWidth:         constants.CarWidth,
			CarHeight:        constants.CarHeight,
			ObstaclePosition: constants.ObstaclePosition,
			ObstacleWidth:    constants.ObstacleWidth,
			ObstacleHeight:   constants.ObstacleHeight,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:               "localhost:8642",
			ShutdownTimeout:    5 * time.Second,
			MutationsPerSecond: 20,
			MutationBurst:      40,
		},
		Store: StoreConfig{
			Record: false,
		},
		MCP: MCPConfig{
			Audit: true,
		},
	}
}

// DefaultDataDir returns ~/.fuzzbrake, or .fuzzbrake when HOME is unknown.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".fuzzbrake"
	}
	return filepath.Join(homeDir, ".fuzzbrake")
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.fuzzbrake/config.yaml -> environment variables
func Load() (*FuzzbrakeConfig, error) {
	config := Default()

	configPath := filepath.Join(DefaultDataDir(), "config.yaml")
	if _, statErr := os.Stat(configPath); statErr == nil {
		fileConfig, loadErr := LoadFromFile(configPath)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Environment overrides are not applied; Load and LoadPath do that.
func LoadFromFile(path string) (*FuzzbrakeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)

	return config, nil
}

// LoadPath loads path when non-empty and falls back to Load otherwise.
// Environment overrides are applied in both cases.
func LoadPath(path string) (*FuzzbrakeConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *FuzzbrakeConfig) Validate() error {
	s := c.Simulation
	if s.TickPeriod <= 0 {
		return fmt.Errorf("tick_period must be positive, got %v", s.TickPeriod)
	}
	if s.SpeedMultiplier <= 0 {
		return fmt.Errorf("speed_multiplier must be positive, got %g", s.SpeedMultiplier)
	}
	if s.MaxTicks <= 0 {
		return fmt.Errorf("max_ticks must be positive, got %d", s.MaxTicks)
	}
	if s.PixelsPerMeter <= 0 {
		return fmt.Errorf("pixels_per_meter must be positive, got %g", s.PixelsPerMeter)
	}
	if s.SpeedScaleFactor <= 0 {
		return fmt.Errorf("speed_scale_factor must be positive, got %g", s.SpeedScaleFactor)
	}
	if s.StopThreshold < 0 {
		return fmt.Errorf("stop_threshold must be non-negative, got %g", s.StopThreshold)
	}
	if s.InitialSpeed < 0 {
		return fmt.Errorf("initial_speed must be non-negative, got %g", s.InitialSpeed)
	}
	if s.InitialPosition+s.CarWidth > s.ObstaclePosition {
		return fmt.Errorf("initial_position %g puts the car past the obstacle at %g", s.InitialPosition, s.ObstaclePosition)
	}

	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be non-negative, got %v", c.Server.ShutdownTimeout)
	}
	if c.Server.MutationsPerSecond < 0 || c.Server.MutationBurst < 0 {
		return fmt.Errorf("mutation rate limits must be non-negative")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// StorePath resolves the run log location against dataDir.
func (c *FuzzbrakeConfig) StorePath(dataDir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(dataDir, "runs.db")
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *FuzzbrakeConfig) {
	if v := os.Getenv("FUZZBRAKE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("FUZZBRAKE_TICK_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Simulation.TickPeriod = d
		}
	}

	if v := os.Getenv("FUZZBRAKE_SPEED_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.SpeedMultiplier = f
		}
	}

	if v := os.Getenv("FUZZBRAKE_SERVER_ADDR"); v != "" {
		config.Server.Addr = v
	}

	if v := os.Getenv("FUZZBRAKE_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("FUZZBRAKE_RECORD"); v != "" {
		config.Store.Record = v == "true" || v == "1"
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
