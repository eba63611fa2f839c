package market

// Growth is a deterministic market: each clear multiplies the price by
// 1+Rate and pays price/ratio as dividend. Used for calibration and tests.
type Growth struct {
	Ledger
	Rate float64

	// Orders records every order submitted, in order.
	Orders []Order
}

// NewGrowth creates a deterministic growth market.
func NewGrowth(initialPrice, rate, priceDividendRatio float64) *Growth {
	return &Growth{
		Ledger: NewLedger(initialPrice, priceDividendRatio),
		Rate:   rate,
	}
}

// Clear advances the price by the fixed growth rate.
func (g *Growth) Clear(order Order, final bool) (Quote, error) {
	if g.Closed() {
		return Quote{}, ErrClosed
	}
	if err := order.Validate(); err != nil {
		return Quote{}, Failuref("Error in received data: %v", err)
	}
	g.Orders = append(g.Orders, order)
	price := g.Last() * (1 + g.Rate)
	q := Quote{Price: price, Dividend: g.DividendFor(price), End: final}
	g.record(q.Price, q.Dividend)
	return q, nil
}
