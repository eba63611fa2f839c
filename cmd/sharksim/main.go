// Command sharksim runs the agent-based market simulation described by a YAML
// config, stores the run, and optionally serves the runs API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/shark-market/internal/api"
	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/entropy"
	"github.com/talgya/shark-market/internal/metrics"
	"github.com/talgya/shark-market/internal/persistence"
	"github.com/talgya/shark-market/internal/runner"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults when empty)")
	serve := flag.Bool("serve", false, "serve the HTTP API")
	noRun := flag.Bool("no-run", false, "skip the run; only useful with -serve")
	csvPath := flag.String("csv", "", "write the per-tick table to this CSV file")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		cfg.Output.CSV = *csvPath
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.Path)

	// ── Metrics and entropy ──────────────────────────────────────────
	var rec *metrics.Recorder
	if !cfg.Metrics.Disabled {
		rec = metrics.New()
	}
	seeds := entropy.NewClient(cfg.RandomOrgKey)
	if seeds.Enabled() {
		slog.Info("random.org seeding enabled")
	}

	r := &runner.Runner{
		DB:      db,
		Metrics: rec,
		Entropy: seeds,
		Log:     logger,
		OnQuarter: func(sim *engine.Simulation, q int) {
			prices := sim.Market.Prices()
			slog.Info("quarter complete",
				"quarter", q,
				"sim_time", engine.SimTime(sim.Engine.Tick, sim.Config.DaysPerQuarter),
				"price", prices[len(prices)-1],
				"attend_calls", sim.AttendCalls(),
			)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	var srv *http.Server
	if *serve {
		if cfg.API.AdminKey == "" {
			slog.Warn("SHARK_ADMIN_KEY not set, POST /api/v1/simulate is disabled")
		}
		apiServer := &api.Server{
			DB:          db,
			Metrics:     rec,
			Runner:      r,
			Base:        cfg,
			Port:        cfg.API.Port,
			AdminKey:    cfg.API.AdminKey,
			RateLimit:   cfg.API.RateLimit,
			MetricsPath: cfg.Metrics.Path,
		}
		srv = apiServer.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	// ── Run ───────────────────────────────────────────────────────────
	if !*noRun {
		fmt.Println("Starting simulation... (Ctrl+C to stop)")
		out, err := r.Execute(ctx, cfg)
		if out == nil {
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
		if err != nil {
			slog.Warn("run ended early", "error", err)
		}
		printSummary(out)
	}

	if srv != nil {
		fmt.Println("Serving... (Ctrl+C to stop)")
		<-ctx.Done()
		slog.Info("shutting down API")
		if err := api.Shutdown(srv, 5*time.Second); err != nil {
			slog.Error("API shutdown failed", "error", err)
		}
	}
}

func printSummary(out *runner.Outcome) {
	s := out.Summary
	fmt.Println()
	if out.Run.ID != "" {
		fmt.Printf("Run %s\n", out.Run.ID)
	}
	fmt.Printf("  status        %s %s\n", s.Status, s.Failure)
	fmt.Printf("  seed          %d\n", s.Seed)
	fmt.Printf("  days          %s (+%d burn-in) in %s\n", humanize.Comma(int64(s.Ticks)), s.BurnIn,
		time.Duration(s.Elapsed*float64(time.Second)).Round(time.Millisecond))
	fmt.Printf("  price         %.2f to %.2f, mean %.2f\n", s.Price.Min, s.Price.Max, s.Price.Mean)
	fmt.Printf("  daily ror     %.5f (vol %.5f)\n", s.RorMean, s.RorVolatility)
	fmt.Printf("  total assets  $%s\n", humanize.Commaf(roundCents(s.FinalTotalAssets)))
	fmt.Printf("  shares held   %s\n", humanize.Commaf(roundCents(s.FinalShares)))
	if len(s.Anomalies) > 0 {
		fmt.Printf("  anomalies     %v\n", s.Anomalies)
	}
	for _, c := range s.Classes {
		fmt.Printf("  class %-8s n=%d assets=%.3f±%.3f shares=%.1f\n",
			c.Class, c.Count, c.AssetsMean, c.AssetsStd, c.SharesMean)
	}
}

func roundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
