package visualization

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/fuzzbrake/internal/config"
	"github.com/nvandessel/fuzzbrake/internal/constants"
	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/logging"
	"github.com/nvandessel/fuzzbrake/internal/ratelimit"
	"github.com/nvandessel/fuzzbrake/internal/simulation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

// Server serves the control panel and the JSON API over a simulation engine.
// It does not tick the engine itself; run a simulation.Driver alongside it.
type Server struct {
	sim     *simulation.Engine
	fuzzy   *fuzzy.Engine
	cfg     config.ServerConfig
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a server over the given simulation engine.
func NewServer(sim *simulation.Engine, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		sim:     sim,
		fuzzy:   sim.Fuzzy(),
		cfg:     cfg,
		limiter: ratelimit.NewLimiter(cfg.MutationsPerSecond, cfg.MutationBurst),
		logger:  logger,
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes. Mutating routes are rate limited per client.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /api/rules", s.handleRules)
	mux.HandleFunc("GET /api/curves/{axis}", s.handleCurves)
	mux.HandleFunc("GET /api/plot/{file}", s.handlePlot)

	mux.Handle("POST /api/infer", s.limit(s.handleInfer))
	mux.Handle("POST /api/inputs", s.limit(s.handleInputs))
	mux.Handle("POST /api/rules", s.limit(s.handleAddRule))
	mux.Handle("POST /api/rules/reset", s.limit(s.handleResetRules))
	mux.Handle("PUT /api/rules/{id}", s.limit(s.handleUpdateRule))
	mux.Handle("DELETE /api/rules/{id}", s.limit(s.handleDeleteRule))
	mux.Handle("POST /api/rules/{id}/toggle", s.limit(s.handleToggleRule))
	mux.Handle("PUT /api/membership/{axis}/{label}", s.limit(s.handleEditMembership))
	mux.Handle("POST /api/membership/reset", s.limit(s.handleResetMembership))
	mux.Handle("POST /api/simulation/multiplier", s.limit(s.handleMultiplier))
	mux.Handle("POST /api/simulation/scenario", s.limit(s.handleScenario))
	mux.Handle("POST /api/simulation/{action}", s.limit(s.handleSimulation))

	return mux
}

// ListenAndServe listens on the configured address and blocks until ctx is
// cancelled. Port 0 lets the OS pick a free port. Returns nil on clean
// shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = "localhost:0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", s.Addr())

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// limit wraps a mutating handler with the per-client rate limiter.
func (s *Server) limit(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			key = r.RemoteAddr
		}
		if !s.limiter.Allow(key) {
			s.logger.Debug("mutation rate limited", "client", key, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, ratelimit.ErrRateLimited)
			return
		}
		h(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html, err := RenderHTML(s.sim.Snapshot(), "http://"+r.Host)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Snapshot())
}

func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, simulation.Scenarios())
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RenderJSON(s.fuzzy.Rules()))
}

func (s *Server) handleCurves(w http.ResponseWriter, r *http.Request) {
	axis, err := fuzzy.ParseAxis(r.PathValue("axis"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	steps, err := stepsParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	curves, err := s.fuzzy.Curves(axis, steps)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, curves)
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	axis, err := fuzzy.ParseAxis(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	steps, err := stepsParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	curves, err := s.fuzzy.Curves(axis, steps)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var buf bytes.Buffer
	if err := PlotCurves(&buf, axis, curves); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

type inferRequest struct {
	Speed    float64 `json:"speed"`
	Distance float64 `json:"distance"`
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req inferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fuzzy.Infer(req.Speed, req.Distance))
}

type inputsRequest struct {
	Speed    *float64 `json:"speed"`
	Distance *float64 `json:"distance"`
}

func (s *Server) handleInputs(w http.ResponseWriter, r *http.Request) {
	var req inputsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state := s.sim.Snapshot()
	if req.Speed != nil {
		state = s.sim.SetSpeed(*req.Speed)
	}
	if req.Distance != nil {
		state = s.sim.SetDistanceToObstacle(*req.Distance)
	}
	writeJSON(w, http.StatusOK, state)
}

type ruleRequest struct {
	Speed    string `json:"speed"`
	Distance string `json:"distance"`
	Brake    string `json:"brake"`
}

// labels parses the request. An all-empty request reports empty=true.
func (req ruleRequest) labels() (sp fuzzy.SpeedLabel, d fuzzy.DistanceLabel, b fuzzy.BrakeLabel, empty bool, err error) {
	if req.Speed == "" && req.Distance == "" && req.Brake == "" {
		return sp, d, b, true, nil
	}
	if sp, err = fuzzy.ParseSpeedLabel(req.Speed); err != nil {
		return
	}
	if d, err = fuzzy.ParseDistanceLabel(req.Distance); err != nil {
		return
	}
	b, err = fuzzy.ParseBrakeLabel(req.Brake)
	return
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sp, d, b, empty, err := req.labels()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if empty {
		writeJSON(w, http.StatusCreated, s.fuzzy.AddDefaultRule())
		return
	}
	rule, err := s.fuzzy.AddRule(sp, d, b)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sp, d, b, empty, err := req.labels()
	if err == nil && empty {
		err = fmt.Errorf("%w: speed, distance and brake are required", fuzzy.ErrUnknownLabel)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rule, err := s.fuzzy.UpdateRule(r.PathValue("id"), sp, d, b)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.fuzzy.RemoveRule(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.fuzzy.ToggleRule(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleResetRules(w http.ResponseWriter, _ *http.Request) {
	s.fuzzy.ResetRules()
	writeJSON(w, http.StatusOK, RenderJSON(s.fuzzy.Rules()))
}

type membershipRequest struct {
	Points []float64 `json:"points"`
}

func (s *Server) handleEditMembership(w http.ResponseWriter, r *http.Request) {
	axis, err := fuzzy.ParseAxis(r.PathValue("axis"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fn, err := s.fuzzy.EditFunction(axis, r.PathValue("label"), req.Points)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.logger.Info("membership function updated", "axis", axis, "label", fn.Label, "points", fn.Points)
	writeJSON(w, http.StatusOK, fn)
}

func (s *Server) handleResetMembership(w http.ResponseWriter, _ *http.Request) {
	s.fuzzy.ResetFunctions()
	w.WriteHeader(http.StatusNoContent)
}

type multiplierRequest struct {
	Multiplier float64 `json:"multiplier"`
}

func (s *Server) handleMultiplier(w http.ResponseWriter, r *http.Request) {
	var req multiplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := s.sim.SetSpeedMultiplier(req.Multiplier)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type scenarioRequest struct {
	Name string `json:"name"`
}

// handleScenario restarts the simulation at a preset's inputs.
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sc, err := simulation.LookupScenario(req.Name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sim.RestartAt(sc.Distance, sc.Speed))
}

type stepRequest struct {
	Ticks int `json:"ticks"`
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	var state simulation.State
	switch action := r.PathValue("action"); action {
	case "start":
		state = s.sim.Start()
	case "stop":
		state = s.sim.Stop()
	case "reset":
		state = s.sim.Reset()
	case "step":
		var req stepRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		n := max(req.Ticks, 1)
		for i := 0; i < n && s.sim.Tick(); i++ {
		}
		state = s.sim.Snapshot()
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown simulation action %q", action))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func stepsParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("steps")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid steps %q: %w", raw, err)
	}
	if n > constants.MaxCurveSteps {
		return 0, fmt.Errorf("%w: %d (max %d)", fuzzy.ErrTooManySteps, n, constants.MaxCurveSteps)
	}
	return n, nil
}

// decodeJSON decodes an optional JSON body. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fuzzy.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, fuzzy.ErrUnknownAxis):
		return http.StatusNotFound
	case errors.Is(err, fuzzy.ErrUnknownLabel),
		errors.Is(err, fuzzy.ErrPointCount),
		errors.Is(err, fuzzy.ErrPointOrder),
		errors.Is(err, fuzzy.ErrTooManySteps),
		errors.Is(err, simulation.ErrInvalidMultiplier):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
