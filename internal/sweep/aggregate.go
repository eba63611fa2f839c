package sweep

import (
	"sort"

	"github.com/talgya/shark-market/internal/stats"
)

// Stability levels assigned to an attention rate by its failure rate.
const (
	LevelStable   = "STABLE"
	LevelFragile  = "FRAGILE"
	LevelUnstable = "UNSTABLE"
)

// Cell summarizes every seed run at one attention rate.
type Cell struct {
	Attention      float64 `json:"attention"`
	Runs           int     `json:"runs"`
	Failures       int     `json:"failures"`
	FailureRate    float64 `json:"failure_rate"`
	RorMean        float64 `json:"ror_mean"`        // Mean over successful seeds
	RorSpread      float64 `json:"ror_spread"`      // Std of ror_mean across successful seeds
	VolatilityMean float64 `json:"volatility_mean"` // Mean ror_volatility over successful seeds
	Level          string  `json:"level"`
}

// Aggregate groups entries by attention rate, sorted ascending. Entries with
// an execution error count as failures.
func Aggregate(entries []Entry) []Cell {
	groups := make(map[float64][]Entry)
	for _, e := range entries {
		groups[e.Attention] = append(groups[e.Attention], e)
	}

	cells := make([]Cell, 0, len(groups))
	for rate, group := range groups {
		c := Cell{Attention: rate, Runs: len(group)}
		var rors, vols []float64
		for _, e := range group {
			if e.Failed() {
				c.Failures++
				continue
			}
			rors = append(rors, e.RorMean)
			vols = append(vols, e.RorVolatility)
		}
		c.FailureRate = float64(c.Failures) / float64(c.Runs)
		if len(rors) > 0 {
			c.RorMean = stats.Mean(rors)
			c.RorSpread = stats.Std(rors)
			c.VolatilityMean = stats.Mean(vols)
		}

		switch {
		case c.FailureRate > 0.5:
			c.Level = LevelUnstable
		case c.Failures > 0:
			c.Level = LevelFragile
		default:
			c.Level = LevelStable
		}
		cells = append(cells, c)
	}

	sort.Slice(cells, func(i, j int) bool { return cells[i].Attention < cells[j].Attention })
	return cells
}
