// Package expectations forms the agents' shared beliefs about the risky
// asset from the observed price history, using a memory-weighted mix of a
// short and a long lookback window anchored on a prior.
package expectations

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/shark-market/internal/market"
)

// Beliefs are quarterly return expectations in the form consumed by agent
// policies: RiskyAvg is a gross return factor, RiskyStd its std deviation.
type Beliefs struct {
	RiskyAvg float64 `json:"risky_avg"`
	RiskyStd float64 `json:"risky_std"`
}

// Expectations is the state recomputed every tick.
type Expectations struct {
	DailyReturn float64 `json:"daily_return"`
	DailyStd    float64 `json:"daily_std"`
	Beliefs
}

// Params configures the memory function.
type Params struct {
	P1      float64 // weight on the short window
	P2      float64 // weight on the long window
	Window1 int     // short window, days
	Window2 int     // long window, days

	DaysPerQuarter int

	// Prior daily moments, used when there is no history and as the anchor
	// receiving weight 1-P1-P2.
	PriorReturn float64
	PriorStd    float64
}

// DefaultParams is the reference calibration: p1 = p2 = 0.1 over 60-day
// windows, S&P500 prior.
func DefaultParams() Params {
	return Params{
		P1:             0.1,
		P2:             0.1,
		Window1:        60,
		Window2:        60,
		DaysPerQuarter: 60,
		PriorReturn:    market.SP500DailyReturn,
		PriorStd:       market.SP500DailyStd,
	}
}

// Validate checks the mixing weights and windows.
func (p Params) Validate() error {
	if p.P1 < 0 || p.P2 < 0 || p.P1+p.P2 > 1 {
		return fmt.Errorf("mixing weights must be non-negative with p1+p2 <= 1, got %v, %v", p.P1, p.P2)
	}
	if p.Window1 < 1 || p.Window2 < 1 {
		return errors.New("windows must be at least one day")
	}
	if p.DaysPerQuarter < 1 {
		return errors.New("days per quarter must be positive")
	}
	return nil
}

// PriorBeliefs returns the quarterly beliefs implied by the prior alone.
func (p Params) PriorBeliefs() Beliefs {
	return Beliefs{
		RiskyAvg: 1 + QuarterlyReturn(p.PriorReturn, p.DaysPerQuarter),
		RiskyStd: QuarterlyStd(p.PriorStd, p.DaysPerQuarter),
	}
}

// Model maintains the rolling expectations.
type Model struct {
	Params

	current *Expectations

	returns []float64
	stds    []float64
}

// New creates a model; it holds no expectations until the first update.
func New(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{Params: p}, nil
}

// UpdateFromHistory recomputes expectations from the full price and dividend
// history and overwrites the current state.
func (m *Model) UpdateFromHistory(prices, dividends []float64) Expectations {
	ror, std := m.PriorReturn, m.PriorStd

	if len(prices) >= 2 {
		rets := market.ReturnsWithDividend(prices, dividends)
		m1, v1 := weightedMoments(tail(rets, m.Window1), halfLife(m.Window1))
		m2, v2 := weightedMoments(tail(rets, m.Window2), halfLife(m.Window2))

		prior := 1 - m.P1 - m.P2
		ror = prior*m.PriorReturn + m.P1*m1 + m.P2*m2
		variance := prior*m.PriorStd*m.PriorStd + m.P1*v1 + m.P2*v2
		std = math.Sqrt(variance)
	}

	e := Expectations{
		DailyReturn: ror,
		DailyStd:    std,
		Beliefs: Beliefs{
			RiskyAvg: 1 + QuarterlyReturn(ror, m.DaysPerQuarter),
			RiskyStd: QuarterlyStd(std, m.DaysPerQuarter),
		},
	}
	m.current = &e
	m.returns = append(m.returns, ror)
	m.stds = append(m.stds, std)
	return e
}

// Current returns the last computed expectations. Calling it before any
// update is a programming error and panics.
func (m *Model) Current() Expectations {
	if m.current == nil {
		panic("expectations: Current called before UpdateFromHistory")
	}
	return *m.current
}

// Ready reports whether at least one update has run.
func (m *Model) Ready() bool { return m.current != nil }

// ExpectedReturns is the daily expected return after each update.
func (m *Model) ExpectedReturns() []float64 { return m.returns }

// ExpectedStds is the daily expected std deviation after each update.
func (m *Model) ExpectedStds() []float64 { return m.stds }

func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func halfLife(window int) float64 {
	return math.Max(float64(window)/2, 1)
}

// weightedMoments returns the exponentially weighted mean and variance of xs,
// where the most recent observation has weight 1 and weights halve every
// halfLife observations back.
func weightedMoments(xs []float64, halfLife float64) (mean, variance float64) {
	n := len(xs)
	if n == 0 {
		return 0, 0
	}
	decay := math.Pow(0.5, 1/halfLife)
	w := 1.0
	wsum, acc := 0.0, 0.0
	for i := n - 1; i >= 0; i-- {
		wsum += w
		acc += w * xs[i]
		w *= decay
	}
	mean = acc / wsum

	w = 1.0
	acc = 0
	for i := n - 1; i >= 0; i-- {
		d := xs[i] - mean
		acc += w * d * d
		w *= decay
	}
	return mean, acc / wsum
}
