// Package sweep runs a simulation over a grid of attention rates and seeds,
// either in-process or against a remote API, and aggregates the outcomes
// per attention rate.
package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/shark-market/internal/api"
	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/runner"
)

// Point is one cell of the parameter grid.
type Point struct {
	Attention float64 `json:"attention"`
	Seed      int64   `json:"seed"`
}

// Points returns the cross product of attention rates and seeds, grouped by
// attention rate.
func Points(attention []float64, seeds []int64) []Point {
	out := make([]Point, 0, len(attention)*len(seeds))
	for _, a := range attention {
		for _, s := range seeds {
			out = append(out, Point{Attention: a, Seed: s})
		}
	}
	return out
}

// Executor runs the simulation for one grid point.
type Executor interface {
	Execute(ctx context.Context, p Point) (Entry, error)
}

// Local runs points in-process.
type Local struct {
	Runner *runner.Runner
	Base   *config.Config
}

// Execute implements Executor.
func (l *Local) Execute(ctx context.Context, p Point) (Entry, error) {
	cfg := request(p).Apply(l.Base)
	if err := cfg.Validate(); err != nil {
		return Entry{}, err
	}
	out, err := l.Runner.Execute(ctx, cfg)
	if err != nil {
		return Entry{}, err
	}
	return entry(p, out.Run.ID, out.Summary.Status, out.Summary.Values()), nil
}

// Remote runs points through a shark-market API.
type Remote struct {
	Client *Client
}

// Execute implements Executor.
func (r *Remote) Execute(ctx context.Context, p Point) (Entry, error) {
	resp, err := r.Client.Simulate(ctx, request(p))
	if err != nil {
		return Entry{}, err
	}
	return entry(p, resp.Run.ID, resp.Run.Status, resp.Stats), nil
}

func request(p Point) api.SimulateRequest {
	seed, rate := p.Seed, p.Attention
	return api.SimulateRequest{Seed: &seed, AttentionRate: &rate}
}

func entry(p Point, id, status string, values map[string]float64) Entry {
	return Entry{
		Point:         p,
		RunID:         id,
		Status:        status,
		RorMean:       values["ror_mean"],
		RorVolatility: values["ror_volatility"],
	}
}

// Run executes every point the journal has not already completed, saving the
// journal after each one, and aggregates the requested points. Execution
// errors are journaled and the sweep continues; cancellation stops it.
func Run(ctx context.Context, points []Point, exec Executor, j *Journal, logger *slog.Logger) ([]Cell, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wanted := make(map[Point]bool, len(points))
	for _, p := range points {
		wanted[p] = true
	}
	collect := func() []Cell {
		var es []Entry
		for _, e := range j.Entries {
			if wanted[e.Point] {
				es = append(es, e)
			}
		}
		return Aggregate(es)
	}

	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return collect(), err
		}
		if j.Done(p) {
			logger.Debug("sweep point already done", "attention", p.Attention, "seed", p.Seed)
			continue
		}

		e, err := exec.Execute(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return collect(), ctx.Err()
			}
			logger.Error("sweep point failed", "attention", p.Attention, "seed", p.Seed, "error", err)
			e = Entry{Point: p, Error: err.Error()}
		}
		j.Record(e)
		if err := j.Save(); err != nil {
			return collect(), fmt.Errorf("point %d: %w", i, err)
		}
		logger.Info("sweep point done",
			"n", i+1,
			"of", len(points),
			"attention", p.Attention,
			"seed", p.Seed,
			"status", e.Status,
			"ror_mean", e.RorMean,
		)
	}
	return collect(), nil
}
