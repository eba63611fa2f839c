package engine

import (
	"errors"
	"fmt"
)

// Macro pricing modes: which price macro liquidations are valued at.
const (
	// MacroPriceCleared values macro updates at the price just cleared by
	// the run's trade.
	MacroPriceCleared = "cleared"
	// MacroPricePreClear values them at the price attending agents saw
	// before the trade.
	MacroPricePreClear = "pre_clear"
)

// Config holds the numeric parameters of one simulation run.
type Config struct {
	Quarters       int
	RunsPerQuarter int
	DaysPerQuarter int
	AttentionRate  float64
	BurnIn         int
	Seed           int64
	MacroPrice     string
}

// DefaultConfig returns one quarter of 60 days with one market clear per
// day and attention 1/RunsPerQuarter.
func DefaultConfig() Config {
	return Config{
		Quarters:       1,
		RunsPerQuarter: 60,
		DaysPerQuarter: 60,
		AttentionRate:  1.0 / 60,
		BurnIn:         0,
		MacroPrice:     MacroPriceCleared,
	}
}

// DaysPerRun is the number of simulated days each market clear spans.
func (c Config) DaysPerRun() int {
	return c.DaysPerQuarter / c.RunsPerQuarter
}

// TotalDays is the number of days simulated after burn-in.
func (c Config) TotalDays() int {
	return c.Quarters * c.DaysPerQuarter
}

// Validate checks the calendar and rates.
func (c Config) Validate() error {
	if c.Quarters < 0 {
		return fmt.Errorf("quarters must be >= 0, got %d", c.Quarters)
	}
	if c.RunsPerQuarter < 1 || c.DaysPerQuarter < 1 {
		return errors.New("runs and days per quarter must be positive")
	}
	if c.DaysPerQuarter%c.RunsPerQuarter != 0 {
		return fmt.Errorf("runs per quarter (%d) must divide days per quarter (%d)",
			c.RunsPerQuarter, c.DaysPerQuarter)
	}
	if c.AttentionRate < 0 || c.AttentionRate > 1 {
		return fmt.Errorf("attention rate must be in [0, 1], got %v", c.AttentionRate)
	}
	if c.BurnIn < 0 {
		return fmt.Errorf("burn-in must be >= 0, got %d", c.BurnIn)
	}
	switch c.MacroPrice {
	case MacroPriceCleared, MacroPricePreClear, "":
	default:
		return fmt.Errorf("unknown macro price mode %q", c.MacroPrice)
	}
	return nil
}
