package runner

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/persistence"
)

func smallConfig(kind string) *config.Config {
	c := config.Default()
	c.Simulation.Quarters = 1
	c.Simulation.RunsPerQuarter = 2
	c.Simulation.DaysPerQuarter = 4
	c.Simulation.Seed = 7
	c.Market.Kind = kind
	c.API.AdminKey = "secret-admin"
	return c
}

func TestExecuteStoresRun(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	cfg := smallConfig("growth")
	cfg.Output.CSV = filepath.Join(t.TempDir(), "out.csv")

	r := &Runner{DB: db}
	out, err := r.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Run.ID == "" {
		t.Fatal("run was not stored")
	}
	if len(out.Rows) != 4 || out.Result.Ticks != 4 {
		t.Fatalf("rows=%d ticks=%d, want 4/4", len(out.Rows), out.Result.Ticks)
	}
	if out.Summary.Status != "0" {
		t.Fatalf("status = %q", out.Summary.Status)
	}

	got, err := db.GetRun(out.Run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Seed != 7 || got.MarketKind != "growth" || got.Agents != len(out.Agents) {
		t.Fatalf("stored run = %+v", got)
	}
	if strings.Contains(got.ConfigYAML, "secret-admin") {
		t.Fatal("admin key persisted with run")
	}
	ticks, err := db.Ticks(out.Run.ID)
	if err != nil || len(ticks) != 4 {
		t.Fatalf("ticks = %d, %v", len(ticks), err)
	}
	last, err := db.GetMeta("last_run")
	if err != nil || last != out.Run.ID {
		t.Fatalf("last_run = %q, %v", last, err)
	}

	data, err := os.ReadFile(cfg.Output.CSV)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 5 {
		t.Fatalf("csv lines = %d, want header + 4", lines)
	}
}

func TestExecuteDeterministic(t *testing.T) {
	r := &Runner{}
	a, err := r.Execute(context.Background(), smallConfig("mock"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := r.Execute(context.Background(), smallConfig("mock"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	for i := range a.Rows {
		if a.Rows[i].Price != b.Rows[i].Price || a.Rows[i].Buy != b.Rows[i].Buy {
			t.Fatalf("row %d differs: %+v vs %+v", i, a.Rows[i], b.Rows[i])
		}
	}
}

func TestBuildResolvesSeed(t *testing.T) {
	cfg := smallConfig("mock")
	cfg.Simulation.Seed = 0

	sim, err := (&Runner{}).Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sim.Close()
	if sim.Config.Seed == 0 {
		t.Fatal("seed not resolved")
	}
}

func TestOnQuarterHook(t *testing.T) {
	var quarters []int
	r := &Runner{OnQuarter: func(sim *engine.Simulation, q int) {
		quarters = append(quarters, q)
	}}
	cfg := smallConfig("growth")
	cfg.Simulation.Quarters = 2

	if _, err := r.Execute(context.Background(), cfg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(quarters) != 2 {
		t.Fatalf("quarters = %v", quarters)
	}
}

func TestBuildLogsClearsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	r := &Runner{Log: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	if _, err := r.Execute(context.Background(), smallConfig("growth")); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if n := strings.Count(buf.String(), "market cleared"); n != 2 {
		t.Fatalf("clear logs = %d, want 2", n)
	}
	if !strings.Contains(buf.String(), "sim_time=") {
		t.Fatalf("log missing sim_time: %s", buf.String())
	}
}
