package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/metrics"
	"github.com/talgya/shark-market/internal/persistence"
	"github.com/talgya/shark-market/internal/report"
	"github.com/talgya/shark-market/internal/runner"
)

const testKey = "test-admin-key"

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	base := config.Default()
	base.Simulation.Quarters = 1
	base.Simulation.RunsPerQuarter = 2
	base.Simulation.DaysPerQuarter = 4
	base.Simulation.Seed = 11
	base.Market.Kind = "growth"

	rec := metrics.New()
	s := &Server{
		DB:        db,
		Metrics:   rec,
		Runner:    &runner.Runner{DB: db, Metrics: rec},
		Base:      base,
		AdminKey:  testKey,
		RateLimit: 10,
	}
	return s, s.Handler()
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	_, h := newTestServer(t)
	w := do(h, http.MethodGet, "/api/v1/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["runs"] != float64(0) || body["admin_auth"] != true {
		t.Fatalf("status = %v", body)
	}
}

func TestSimulateAuth(t *testing.T) {
	s, h := newTestServer(t)

	if w := do(h, http.MethodPost, "/api/v1/simulate", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code = %d", w.Code)
	}
	if w := do(h, http.MethodPost, "/api/v1/simulate", "wrong", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: code = %d", w.Code)
	}
	if w := do(h, http.MethodGet, "/api/v1/simulate", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: code = %d", w.Code)
	}

	s.AdminKey = ""
	if w := do(h, http.MethodPost, "/api/v1/simulate", testKey, ""); w.Code != http.StatusForbidden {
		t.Fatalf("disabled: code = %d", w.Code)
	}
}

func TestSimulateAndQuery(t *testing.T) {
	_, h := newTestServer(t)

	w := do(h, http.MethodPost, "/api/v1/simulate", testKey, `{"seed": 5, "attention": 0.5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("simulate code = %d: %s", w.Code, w.Body.String())
	}
	var resp SimulateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Run.ID == "" || resp.Run.Seed != 5 || resp.Run.AttentionRate != 0.5 {
		t.Fatalf("run = %+v", resp.Run)
	}

	w = do(h, http.MethodGet, "/api/v1/runs", "", "")
	var runs []persistence.Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != resp.Run.ID {
		t.Fatalf("runs = %+v", runs)
	}

	w = do(h, http.MethodGet, "/api/v1/runs/"+resp.Run.ID+"/ticks", "", "")
	var rows []report.Row
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatalf("decode ticks: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("ticks = %d, want 4", len(rows))
	}

	if w := do(h, http.MethodGet, "/api/v1/runs/"+resp.Run.ID+"/agents", "", ""); w.Code != http.StatusOK {
		t.Fatalf("agents code = %d", w.Code)
	}
	if w := do(h, http.MethodGet, "/api/v1/runs/"+resp.Run.ID+"/bogus", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("bogus detail code = %d", w.Code)
	}
	if w := do(h, http.MethodGet, "/api/v1/runs/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown run code = %d", w.Code)
	}
	if w := do(h, http.MethodGet, "/api/v1/runs/", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id code = %d", w.Code)
	}

	w = do(h, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(w.Body.String(), "shark_runs_total") {
		t.Fatal("metrics missing shark_runs_total")
	}
}

func TestSimulateRejectsBadRequest(t *testing.T) {
	_, h := newTestServer(t)

	cases := []string{
		`{"attention": 2}`,
		`{"market": "casino"}`,
		`{"runs_per_quarter": 3}`,
		`not json`,
	}
	for _, body := range cases {
		if w := do(h, http.MethodPost, "/api/v1/simulate", testKey, body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: code = %d", body, w.Code)
		}
	}
}

func TestSimulateBusy(t *testing.T) {
	s, h := newTestServer(t)
	s.active = 1

	w := do(h, http.MethodPost, "/api/v1/simulate", testKey, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", w.Code)
	}
	if s.active != 1 {
		t.Fatalf("active = %d after rejected request", s.active)
	}
}

func TestApplyKeepsBase(t *testing.T) {
	base := config.Default()
	q := 3
	rate := 0.25
	c := SimulateRequest{Quarters: &q, AttentionRate: &rate, MarketKind: "noise"}.Apply(base)

	if c.Simulation.Quarters != 3 || *c.Simulation.AttentionRate != 0.25 || c.Market.Kind != "noise" {
		t.Fatalf("applied = %+v", c.Simulation)
	}
	if base.Simulation.Quarters != 1 || base.Simulation.AttentionRate != nil || base.Market.Kind != "mock" {
		t.Fatal("base config mutated")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other IP should pass")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("retry after = %d, want 61", got)
	}
	if got := rl.RetryAfter("unknown"); got != 0 {
		t.Fatalf("retry after for unseen IP = %d, want 0", got)
	}

	now = now.Add(30 * time.Second)
	if got := rl.RetryAfter("a"); got != 31 {
		t.Fatalf("retry after at +30s = %d, want 31", got)
	}
	if rl.Allow("a") {
		t.Fatal("limit should hold inside the window")
	}

	now = now.Add(30 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("window reset should allow again")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("retry after new window = %d, want 61", got)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(90 * time.Second)
	rl.Allow("fresh")
	now = now.Add(45 * time.Second)
	rl.cleanup()

	rl.mu.Lock()
	_, hasOld := rl.buckets["old"]
	_, hasFresh := rl.buckets["fresh"]
	rl.mu.Unlock()
	if hasOld || !hasFresh {
		t.Fatalf("after cleanup old=%v fresh=%v, want false/true", hasOld, hasFresh)
	}
	if got := rl.RetryAfter("old"); got != 0 {
		t.Fatalf("retry after for evicted IP = %d, want 0", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("first code = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second code = %d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	if got := clientIP(req); got != "10.0.0.7" {
		t.Fatalf("remote = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("forwarded = %q", got)
	}
}

func TestCORS(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("preflight code=%d headers=%v", w.Code, w.Header())
	}
}
