package market

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Noise drifts the fundamental growth rate along a smooth OpenSimplex path so
// that expected returns wander over weeks rather than jumping daily.
type Noise struct {
	Ledger
	field       opensimplex.Noise
	rng         *rand.Rand
	dailyReturn float64
	dailyStd    float64
	amplitude   float64
	frequency   float64
	tick        int
}

// NewNoise creates a noise-driven market.
func NewNoise(p Params, seed int64) *Noise {
	return &Noise{
		Ledger:      NewLedger(p.InitialPrice, p.PriceDividendRatio),
		field:       opensimplex.New(seed),
		rng:         rand.New(rand.NewSource(seed + 1)),
		dailyReturn: p.DailyReturn,
		dailyStd:    p.DailyStd,
		amplitude:   p.NoiseAmplitude,
		frequency:   p.NoiseFrequency,
	}
}

// Drift returns the expected daily log return at tick t.
func (m *Noise) Drift(t int) float64 {
	return m.dailyReturn + m.amplitude*m.field.Eval2(float64(t)*m.frequency, 0)
}

// Clear draws the next price around the current drift.
func (m *Noise) Clear(order Order, final bool) (Quote, error) {
	if m.Closed() {
		return Quote{}, ErrClosed
	}
	if err := order.Validate(); err != nil {
		return Quote{}, Failuref("Error in received data: %v", err)
	}
	m.tick++
	sigma := m.dailyStd
	logRet := m.Drift(m.tick) - sigma*sigma/2 + sigma*m.rng.NormFloat64()
	price := m.Last() * math.Exp(logRet)

	q := Quote{Price: price, Dividend: m.DividendFor(price), End: final}
	m.record(q.Price, q.Dividend)
	return q, nil
}
