// Package api serves stored runs over HTTP.
// GET endpoints are public and read-only.
// POST /api/v1/simulate requires a bearer token and is rate limited.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/metrics"
	"github.com/talgya/shark-market/internal/persistence"
	"github.com/talgya/shark-market/internal/runner"
)

var validate = validator.New()

// Server serves run history and accepts new runs over HTTP.
type Server struct {
	DB       *persistence.DB
	Metrics  *metrics.Recorder
	Runner   *runner.Runner
	Base     *config.Config // Template that simulate requests override
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	RateLimit     int // Simulate requests per minute per IP
	MaxConcurrent int // Simulations allowed at once. Zero means 1.
	MetricsPath   string

	active  int32
	started time.Time
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	limit := s.RateLimit
	if limit <= 0 {
		limit = 5
	}
	simLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunRoutes)

	mux.HandleFunc("/api/v1/simulate", s.adminOnly(RateLimitMiddleware(simLimiter, s.handleSimulate)))

	if s.Metrics != nil {
		path := s.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, s.Metrics.Handler())
	}

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "metrics", s.Metrics != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting up to timeout for in-flight requests.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set SHARK_CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
		"http://localhost:8888": true,
	}
	if env := os.Getenv("SHARK_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no SHARK_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":       "shark-market",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"active":     atomic.LoadInt32(&s.active),
		"admin_auth": s.AdminKey != "",
	}
	if s.DB != nil {
		if n, err := s.DB.CountRuns(); err == nil {
			status["runs"] = n
		}
		if last, err := s.DB.GetMeta("last_run"); err == nil {
			status["last_run"] = last
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

// handleRunRoutes dispatches /api/v1/runs/:id and its /ticks, /agents, and
// /stats children.
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}
	id := parts[3]

	run, err := s.DB.GetRun(id)
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get run failed", "id", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	if len(parts) == 4 {
		writeJSON(w, run)
		return
	}

	var data any
	switch parts[4] {
	case "ticks":
		data, err = s.DB.Ticks(id)
	case "agents":
		data, err = s.DB.Agents(id)
	case "stats":
		data, err = s.DB.Stats(id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("run detail query failed", "id", id, "detail", parts[4], "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, data)
}

// SimulateRequest overrides fields of the server's base configuration for a
// single run. Unset fields keep the base value.
type SimulateRequest struct {
	Seed           *int64   `json:"seed,omitempty"`
	AttentionRate  *float64 `json:"attention,omitempty" validate:"omitempty,gte=0,lte=1"`
	Quarters       *int     `json:"quarters,omitempty" validate:"omitempty,gte=0,lte=400"`
	RunsPerQuarter *int     `json:"runs_per_quarter,omitempty" validate:"omitempty,gte=1"`
	DaysPerQuarter *int     `json:"days_per_quarter,omitempty" validate:"omitempty,gte=1"`
	BurnIn         *int     `json:"burn_in,omitempty" validate:"omitempty,gte=0"`
	MarketKind     string   `json:"market,omitempty" validate:"omitempty,oneof=mock growth impact noise"`
	P1             *float64 `json:"p1,omitempty" validate:"omitempty,gte=0,lte=1"`
	P2             *float64 `json:"p2,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// SimulateResponse is returned for a finished run.
type SimulateResponse struct {
	Run   persistence.Run    `json:"run"`
	Stats map[string]float64 `json:"stats"`
}

// Apply returns a copy of base with the request's overrides applied.
func (req SimulateRequest) Apply(base *config.Config) *config.Config {
	c := *base
	c.Output.CSV = ""
	if req.Seed != nil {
		c.Simulation.Seed = *req.Seed
	}
	if req.AttentionRate != nil {
		rate := *req.AttentionRate
		c.Simulation.AttentionRate = &rate
	}
	if req.Quarters != nil {
		c.Simulation.Quarters = *req.Quarters
	}
	if req.RunsPerQuarter != nil {
		c.Simulation.RunsPerQuarter = *req.RunsPerQuarter
	}
	if req.DaysPerQuarter != nil {
		c.Simulation.DaysPerQuarter = *req.DaysPerQuarter
	}
	if req.BurnIn != nil {
		c.Simulation.BurnIn = *req.BurnIn
	}
	if req.MarketKind != "" {
		c.Market.Kind = req.MarketKind
	}
	if req.P1 != nil {
		c.Expectations.P1 = *req.P1
	}
	if req.P2 != nil {
		c.Expectations.P2 = *req.P2
	}
	return &c
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Runner == nil || s.Base == nil {
		http.Error(w, "simulation not available", http.StatusServiceUnavailable)
		return
	}

	var req SimulateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	cfg := req.Apply(s.Base)
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	maxActive := int32(s.MaxConcurrent)
	if maxActive <= 0 {
		maxActive = 1
	}
	if atomic.AddInt32(&s.active, 1) > maxActive {
		atomic.AddInt32(&s.active, -1)
		w.Header().Set("Retry-After", "5")
		http.Error(w, "simulation already running", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.active, -1)

	start := time.Now()
	out, err := s.Runner.Execute(r.Context(), cfg)
	if s.Metrics != nil {
		s.Metrics.RecordLatency("simulate", time.Since(start).Seconds())
	}
	if err != nil {
		slog.Error("simulate failed", "error", err)
		http.Error(w, "simulation failed", http.StatusInternalServerError)
		return
	}

	slog.Info("simulation requested via API", "id", out.Run.ID, "status", out.Summary.Status, "seed", out.Result.Seed)
	writeJSONStatus(w, http.StatusCreated, SimulateResponse{Run: out.Run, Stats: out.Summary.Values()})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
