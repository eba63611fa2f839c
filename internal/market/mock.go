package market

import (
	"math"
	"math/rand"

	"github.com/talgya/shark-market/internal/stats"
)

// Mock samples each day's price from a lognormal distribution calibrated to
// the configured daily return moments. Order flow has no price impact.
type Mock struct {
	Ledger
	rng         *rand.Rand
	dailyReturn float64
	dailyStd    float64
}

// NewMock creates a mock market.
func NewMock(p Params, seed int64) *Mock {
	return &Mock{
		Ledger:      NewLedger(p.InitialPrice, p.PriceDividendRatio),
		rng:         rand.New(rand.NewSource(seed)),
		dailyReturn: p.DailyReturn,
		dailyStd:    p.DailyStd,
	}
}

// Clear draws the next price.
func (m *Mock) Clear(order Order, final bool) (Quote, error) {
	if m.Closed() {
		return Quote{}, ErrClosed
	}
	if err := order.Validate(); err != nil {
		return Quote{}, Failuref("Error in received data: %v", err)
	}
	price := lognormalStep(m.rng, m.Last(), m.dailyReturn, m.dailyStd, 0)
	q := Quote{Price: price, Dividend: m.DividendFor(price), End: final}
	m.record(q.Price, q.Dividend)
	return q, nil
}

// lognormalStep draws last·X where X is lognormal with mean 1+ror and the
// given std, shifted in log space by impact.
func lognormalStep(rng *rand.Rand, last, ror, std, impact float64) float64 {
	mean := last * (1 + ror)
	sd := last * std
	mu, sigma := stats.LognormalToNormal(mean, sd)
	return math.Exp(mu + impact + sigma*rng.NormFloat64())
}
