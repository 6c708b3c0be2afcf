package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/logging"
	"github.com/nvandessel/fuzzbrake/internal/ratelimit"
	"github.com/nvandessel/fuzzbrake/internal/simulation"
	"github.com/nvandessel/fuzzbrake/internal/store"
)

// Server wraps the MCP SDK server and exposes the brake controller as tools.
type Server struct {
	server       *sdk.Server
	sim          *simulation.Engine
	fuzzy        *fuzzy.Engine
	runs         store.RunStore
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "fuzzbrake")
	Version string // Server version

	// Simulation is the engine the tools drive. Nil creates one with defaults.
	Simulation *simulation.Engine

	// Runs, when set, lets fuzzbrake_simulation record runs.
	Runs store.RunStore

	// AuditDir, when set, enables the JSONL tool-call audit log there.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with fuzzbrake tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("mcp: nil config")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	sim := cfg.Simulation
	if sim == nil {
		sim = simulation.NewEngine(simulation.DefaultConfig(), simulation.WithLogger(logger))
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		sim:          sim,
		fuzzy:        sim.Fuzzy(),
		runs:         cfg.Runs,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	if err := s.registerTools(); err != nil {
		s.auditLogger.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	if err := s.registerResources(); err != nil {
		s.auditLogger.Close()
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return s, nil
}

// Run starts the MCP server over stdio transport alongside a wall-clock
// driver for the simulation, so fuzzbrake_simulation start keeps ticking
// between calls. This blocks until the client disconnects, a signal
// arrives, or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &sdk.StdioTransport{})
}

// RunTransport is Run over an arbitrary transport.
func (s *Server) RunTransport(ctx context.Context, t sdk.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.server.Run(gctx, t)
	})
	g.Go(func() error {
		err := simulation.NewDriver(s.sim, s.logger).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the audit log. The run store belongs to the caller.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
