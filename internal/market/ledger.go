package market

import (
	"math"

	"github.com/talgya/shark-market/internal/stats"
)

// Ledger is the append-only price and dividend history shared by all market
// backends. The first entry is the seed price with a zero dividend.
type Ledger struct {
	prices    []float64
	dividends []float64
	pdRatio   float64
	closed    bool
}

// NewLedger seeds a history at the given price.
func NewLedger(initialPrice, priceDividendRatio float64) Ledger {
	if priceDividendRatio <= 0 {
		priceDividendRatio = DefaultPriceDividendRatio
	}
	return Ledger{
		prices:    []float64{initialPrice},
		dividends: []float64{0},
		pdRatio:   priceDividendRatio,
	}
}

// Prices returns the price history.
func (l *Ledger) Prices() []float64 { return l.prices }

// Dividends returns the dividend history.
func (l *Ledger) Dividends() []float64 { return l.dividends }

// Last returns the most recent price.
func (l *Ledger) Last() float64 { return l.prices[len(l.prices)-1] }

// Close marks the ledger closed. Safe to call more than once.
func (l *Ledger) Close() error {
	l.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (l *Ledger) Closed() bool { return l.closed }

// DividendFor returns the dividend paid at the given price.
func (l *Ledger) DividendFor(price float64) float64 { return price / l.pdRatio }

func (l *Ledger) record(price, dividend float64) {
	l.prices = append(l.prices, price)
	l.dividends = append(l.dividends, dividend)
}

// Extrapolate appends a tick at the most recent price ratio.
func (l *Ledger) Extrapolate() Quote {
	price := l.Last()
	if n := len(l.prices); n >= 2 {
		price = l.prices[n-1] / l.prices[n-2] * l.prices[n-1]
	}
	q := Quote{Price: price, Dividend: l.DividendFor(price)}
	l.record(q.Price, q.Dividend)
	return q
}

// RateOfReturn is the price-only return of the most recent tick.
func RateOfReturn(prices []float64) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}
	return (prices[n-1] - prices[n-2]) / prices[n-2]
}

// ReturnsWithDividend returns (p[i+1] + d[i+1]) / p[i] - 1 for each tick.
func ReturnsWithDividend(prices, dividends []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := range out {
		out[i] = (prices[i+1]+dividends[i+1])/prices[i] - 1
	}
	return out
}

// LogReturns returns log(p[i+1] / p[i]).
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := range out {
		out[i] = math.Log(prices[i+1] / prices[i])
	}
	return out
}

// PriceStats summarizes a price history for final reporting.
type PriceStats struct {
	Min    float64 `json:"min_asset_price"`
	Max    float64 `json:"max_asset_price"`
	IdxMin int     `json:"idx_min_asset_price"`
	IdxMax int     `json:"idx_max_asset_price"`
	Mean   float64 `json:"mean_asset_price"`
	Std    float64 `json:"std_asset_price"`
}

// SummarizePrices computes PriceStats over a price history.
func SummarizePrices(prices []float64) PriceStats {
	var ps PriceStats
	ps.IdxMin, ps.Min = stats.ArgMin(prices)
	ps.IdxMax, ps.Max = stats.ArgMax(prices)
	ps.Mean = stats.Mean(prices)
	ps.Std = stats.Std(prices)
	return ps
}
