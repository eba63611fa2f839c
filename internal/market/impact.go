package market

import (
	"math"
	"math/rand"
)

// Impact is a lognormal market whose drift responds to net order flow, with a
// market-maker price band outside of which the market shuts down.
type Impact struct {
	Ledger
	rng         *rand.Rand
	dailyReturn float64
	dailyStd    float64
	scale       float64
	minPrice    float64
	maxPrice    float64
	maxOrder    float64
}

// NewImpact creates an order-flow-sensitive market.
func NewImpact(p Params, seed int64) *Impact {
	return &Impact{
		Ledger:      NewLedger(p.InitialPrice, p.PriceDividendRatio),
		rng:         rand.New(rand.NewSource(seed)),
		dailyReturn: p.DailyReturn,
		dailyStd:    p.DailyStd,
		scale:       p.ImpactScale,
		minPrice:    p.MinPrice,
		maxPrice:    p.MaxPrice,
		maxOrder:    p.MaxOrder,
	}
}

// Clear applies the order's price impact and checks the price band. A failed
// clear leaves the history unchanged.
func (m *Impact) Clear(order Order, final bool) (Quote, error) {
	if m.Closed() {
		return Quote{}, ErrClosed
	}
	if err := order.Validate(); err != nil {
		return Quote{}, Failuref("Error in received data: %v", err)
	}
	if m.maxOrder > 0 && (order.Buy > m.maxOrder || order.Sell > m.maxOrder) {
		return Quote{}, Failuref("Error in received data: buy %.0f, sell %.0f exceeds limit %.0f",
			order.Buy, order.Sell, m.maxOrder)
	}

	impact := m.scale * (math.Log1p(order.Buy) - math.Log1p(order.Sell))
	price := lognormalStep(m.rng, m.Last(), m.dailyReturn, m.dailyStd, impact)
	if price < m.minPrice || price > m.maxPrice {
		return Quote{}, Failuref("Hit market maker price range: price %.4f outside [%.4f, %.4f]",
			price, m.minPrice, m.maxPrice)
	}

	q := Quote{Price: price, Dividend: m.DividendFor(price), End: final}
	m.record(q.Price, q.Dividend)
	return q, nil
}
