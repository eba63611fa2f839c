// Package engine provides the tick-based simulation loop.
package engine

import (
	"fmt"
	"log/slog"
)

// Engine is the simulation clock. It counts simulated days and fires layered
// callbacks as days, runs, and quarters complete. Unlike a wall-clock loop it
// is driven synchronously by Simulation.Run; there is no pacing or sleep.
type Engine struct {
	Tick    uint64 // Days simulated after burn-in (monotonic)
	Run     int    // Runs completed
	Quarter int    // Quarters completed
	Running bool

	DaysPerQuarter int
	RunsPerQuarter int

	// Callbacks for each layer, populated during setup.
	OnDay     func(tick uint64) // After every simulated day
	OnRun     func(run int)     // After every market clear and its sub-days
	OnQuarter func(quarter int) // After every quarter

	log *slog.Logger
}

// NewEngine creates a clock for the given calendar. A nil logger uses the
// default one.
func NewEngine(daysPerQuarter, runsPerQuarter int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		DaysPerQuarter: daysPerQuarter,
		RunsPerQuarter: runsPerQuarter,
		log:            logger,
	}
}

// Stop halts the loop after the current run.
func (e *Engine) Stop() {
	if e.Running {
		e.logger().Info("simulation engine stopping", "tick", e.Tick, "run", e.Run)
	}
	e.Running = false
}

func (e *Engine) logger() *slog.Logger {
	if e.log == nil {
		return slog.Default()
	}
	return e.log
}

func (e *Engine) day() {
	e.Tick++
	if e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

func (e *Engine) run() {
	e.Run++
	if e.OnRun != nil {
		e.OnRun(e.Run)
	}
	if e.RunsPerQuarter > 0 && e.Run%e.RunsPerQuarter == 0 {
		e.Quarter++
		if e.OnQuarter != nil {
			e.OnQuarter(e.Quarter)
		}
	}
}

// SimTime returns a human-readable simulation time for a tick number.
func SimTime(tick uint64, daysPerQuarter int) string {
	if daysPerQuarter <= 0 {
		return fmt.Sprintf("Day %d", tick)
	}
	dpq := uint64(daysPerQuarter)
	quarters := tick / dpq
	day := tick%dpq + 1
	year := quarters/4 + 1
	return fmt.Sprintf("Q%d Day %d, Year %d", quarters%4+1, day, year)
}
