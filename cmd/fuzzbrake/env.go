package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/config"
	"github.com/nvandessel/fuzzbrake/internal/logging"
	"github.com/nvandessel/fuzzbrake/internal/simulation"
	"github.com/nvandessel/fuzzbrake/internal/store"
)

// appEnv is the resolved global state shared by subcommands.
type appEnv struct {
	cfg       *config.FuzzbrakeConfig
	dataDir   string
	jsonOut   bool
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// loadEnv resolves the global flags: config file, data directory and log level.
// Logs go to stderr so stdout stays clean for command output.
func loadEnv(cmd *cobra.Command) (*appEnv, error) {
	jsonOut, _ := cmd.Flags().GetBool("json")
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")

	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if configPath == "" {
		candidate := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
		}
	}

	cfg, err := config.LoadPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &appEnv{
		cfg:     cfg,
		dataDir: dataDir,
		jsonOut: jsonOut,
		logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
	}, nil
}

// decisionLogger lazily opens the JSONL decision log. It is nil at info level.
func (a *appEnv) decisionLogger() *logging.DecisionLogger {
	if a.decisions == nil {
		a.decisions = logging.NewDecisionLogger(a.dataDir, a.cfg.Logging.Level)
	}
	return a.decisions
}

// newSimulation builds a simulation engine from the loaded config.
func (a *appEnv) newSimulation(opts ...simulation.EngineOption) *simulation.Engine {
	base := []simulation.EngineOption{
		simulation.WithLogger(a.logger),
		simulation.WithDecisionLogger(a.decisionLogger()),
	}
	return simulation.NewEngine(simulation.ConfigFrom(a.cfg.Simulation), append(base, opts...)...)
}

// openRunStore opens the SQLite run log, creating the data directory if needed.
func (a *appEnv) openRunStore() (*store.SQLiteRunStore, error) {
	path := a.cfg.StorePath(a.dataDir)
	if err := store.EnsureDataDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	rs, err := store.NewSQLiteRunStore(path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return rs, nil
}

func (a *appEnv) close() {
	a.decisions.Close()
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
