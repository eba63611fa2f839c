// Package runner builds a simulation from a loaded configuration, executes
// it, and hands the results to storage, metrics, and the CSV writer.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/shark-market/internal/agents"
	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/entropy"
	"github.com/talgya/shark-market/internal/expectations"
	"github.com/talgya/shark-market/internal/market"
	"github.com/talgya/shark-market/internal/metrics"
	"github.com/talgya/shark-market/internal/persistence"
	"github.com/talgya/shark-market/internal/report"
)

// Runner executes runs. Every field is optional.
type Runner struct {
	DB      *persistence.DB
	Metrics *metrics.Recorder
	Entropy *entropy.Client
	Log     *slog.Logger

	// OnQuarter, if set, is called after each completed quarter.
	OnQuarter func(sim *engine.Simulation, quarter int)
}

// Outcome is everything one run produced.
type Outcome struct {
	Run     persistence.Run // ID is empty when no DB is attached
	Result  *engine.Result
	Summary report.Summary
	Rows    []report.Row
	Agents  []*agents.Agent
}

// Build assembles a ready-to-run simulation. A zero configured seed is
// replaced by a fresh one from the entropy client.
func (r *Runner) Build(cfg *config.Config) (*engine.Simulation, error) {
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = r.Entropy.RunSeed()
	}
	ecfg := cfg.EngineConfig(seed)

	mkt, err := market.New(cfg.MarketParams(), entropy.Seed(seed, entropy.StreamMarket))
	if err != nil {
		return nil, fmt.Errorf("market: %w", err)
	}
	params := cfg.ExpectationParams()
	model, err := expectations.New(params)
	if err != nil {
		mkt.Close()
		return nil, fmt.Errorf("expectations: %w", err)
	}

	spawner := agents.NewSpawner(seed, ecfg.DaysPerQuarter)
	population, err := spawner.Spawn(cfg.ClassSpecs(), params.PriorBeliefs())
	if err != nil {
		mkt.Close()
		return nil, fmt.Errorf("spawn: %w", err)
	}
	pop := agents.NewPopulation(population, cfg.Simulation.DollarsPerUnit,
		entropy.New(seed, entropy.StreamPopulation), r.logger())

	sim, err := engine.NewSimulation(ecfg, mkt, pop, model, r.logger())
	if err != nil {
		mkt.Close()
		return nil, err
	}
	if r.Metrics != nil {
		sim.SetRecorder(r.Metrics)
	}
	log := r.logger()
	sim.Engine.OnRun = func(run int) {
		prices := sim.Market.Prices()
		log.Debug("market cleared",
			"run", run,
			"sim_time", engine.SimTime(sim.Engine.Tick, ecfg.DaysPerQuarter),
			"price", prices[len(prices)-1],
		)
	}
	if r.OnQuarter != nil {
		sim.Engine.OnQuarter = func(q int) { r.OnQuarter(sim, q) }
	}
	return sim, nil
}

// Execute builds and runs a simulation, then stores and exports its results.
// When ctx is cancelled the partial run is still stored and the context error
// is returned alongside the Outcome.
func (r *Runner) Execute(ctx context.Context, cfg *config.Config) (*Outcome, error) {
	sim, err := r.Build(cfg)
	if err != nil {
		return nil, err
	}
	defer sim.Close()
	return r.Finish(ctx, cfg, sim)
}

// Finish runs an already built simulation to completion and records it.
func (r *Runner) Finish(ctx context.Context, cfg *config.Config, sim *engine.Simulation) (*Outcome, error) {
	res, runErr := sim.Run(ctx)
	if res == nil {
		return nil, runErr
	}

	out := &Outcome{
		Result:  res,
		Summary: report.Summarize(res, sim),
		Rows:    report.Table(res, sim.Market, sim.Model),
		Agents:  sim.Population.Agents,
	}
	if r.Metrics != nil {
		r.Metrics.RecordRun(out.Summary.Status, res.Elapsed())
	}

	if cfg.Output.CSV != "" {
		if err := report.WriteCSVFile(cfg.Output.CSV, out.Rows); err != nil {
			return out, fmt.Errorf("write csv: %w", err)
		}
	}

	if r.DB != nil {
		if err := r.save(cfg, out); err != nil {
			return out, err
		}
	}

	r.logger().Info("run complete",
		"id", out.Run.ID,
		"status", out.Summary.Status,
		"seed", res.Seed,
		"ticks", res.Ticks,
		"ror_mean", out.Summary.RorMean,
		"elapsed", res.Elapsed(),
	)
	return out, runErr
}

func (r *Runner) save(cfg *config.Config, out *Outcome) error {
	start := time.Now()

	// Secrets stay out of the stored config.
	redacted := *cfg
	redacted.API.AdminKey = ""
	redacted.RandomOrgKey = ""
	raw, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	run := persistence.NewRun(out.Result, out.Summary, cfg.Market.Kind, len(out.Agents), string(raw))
	if err := r.DB.SaveRun(run, out.Rows, out.Agents, out.Summary.Values()); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := r.DB.SaveMeta("last_run", run.ID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	out.Run = run

	if r.Metrics != nil {
		r.Metrics.RecordLatency("save", time.Since(start).Seconds())
	}
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}
