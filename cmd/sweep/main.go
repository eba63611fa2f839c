// Command sweep runs the simulation across a grid of attention rates and
// seeds, locally or against a running sharksim API, and prints the stability
// of each attention rate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/entropy"
	"github.com/talgya/shark-market/internal/metrics"
	"github.com/talgya/shark-market/internal/persistence"
	"github.com/talgya/shark-market/internal/runner"
	"github.com/talgya/shark-market/internal/sweep"
)

func main() {
	configPath := flag.String("config", "", "YAML config file for local runs (defaults when empty)")
	rates := flag.String("attention", "0.01,0.05,0.1,0.25", "comma-separated attention rates")
	seedCount := flag.Int("seeds", 5, "seeds per attention rate, starting at -first-seed")
	firstSeed := flag.Int64("first-seed", 1, "first seed of the grid")
	remote := flag.String("remote", envOrDefault("SHARK_API_URL", ""), "base URL of a sharksim API; runs locally when empty")
	journalPath := flag.String("journal", "sweep_journal.json", "progress file for resuming; empty disables")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	attention, err := parseRates(*rates)
	if err != nil {
		slog.Error("bad -attention", "error", err)
		os.Exit(1)
	}
	if *seedCount < 1 {
		slog.Error("-seeds must be at least 1")
		os.Exit(1)
	}
	seeds := make([]int64, *seedCount)
	for i := range seeds {
		seeds[i] = *firstSeed + int64(i)
	}
	points := sweep.Points(attention, seeds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exec sweep.Executor
	if *remote != "" {
		if cfg.API.AdminKey == "" {
			slog.Error("SHARK_ADMIN_KEY is required for remote sweeps")
			os.Exit(1)
		}
		client := sweep.NewClient(strings.TrimRight(*remote, "/"), cfg.API.AdminKey)
		slog.Info("waiting for sharksim API...", "url", client.BaseURL)
		if err := client.WaitReady(ctx, 5*time.Minute); err != nil {
			slog.Error("API not reachable", "error", err)
			os.Exit(1)
		}
		exec = &sweep.Remote{Client: client}
	} else {
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
		cfg.Output.CSV = ""
		exec = &sweep.Local{
			Runner: &runner.Runner{
				DB:      db,
				Metrics: metrics.New(),
				Entropy: entropy.NewClient(cfg.RandomOrgKey),
				Log:     logger,
			},
			Base: cfg,
		}
	}

	slog.Info("sweep starting", "points", len(points), "attention", attention, "seeds", len(seeds), "remote", *remote != "")

	journal := sweep.LoadJournal(*journalPath)
	cells, err := sweep.Run(ctx, points, exec, journal, logger)
	if err != nil {
		slog.Warn("sweep stopped early", "error", err)
	}

	fmt.Println()
	fmt.Printf("%-10s %5s %5s %12s %12s %12s  %s\n", "attention", "runs", "fail", "ror_mean", "ror_spread", "volatility", "level")
	for _, c := range cells {
		fmt.Printf("%-10.4f %5d %5d %12.6f %12.6f %12.6f  %s\n",
			c.Attention, c.Runs, c.Failures, c.RorMean, c.RorSpread, c.VolatilityMean, c.Level)
	}
	if err != nil {
		os.Exit(1)
	}
}

func parseRates(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", part, err)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%v outside [0, 1]", v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no attention rates given")
	}
	return out, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
