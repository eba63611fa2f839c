// Package market provides the asset-price capability consumed by the
// simulation loop: several interchangeable market backends that clear net
// order flow into a new price and dividend.
package market

import (
	"errors"
	"fmt"
)

// Empirical S&P500 daily moments used as the default price process.
const (
	SP500DailyReturn = 0.000628
	SP500DailyStd    = 0.011988
)

// DefaultPriceDividendRatio is the discounted-future-value ratio divided by
// days per quarter: 60 / 0.05.
const DefaultPriceDividendRatio = 60 / 0.05

// Quote is the outcome of one market clear.
type Quote struct {
	Price    float64 `json:"price"`
	Dividend float64 `json:"dividend"`
	// End is the market's signal that it terminated normally. Markets must
	// set it when clearing the final tick of a run.
	End bool `json:"end"`
}

// Market advances the price/dividend process by one tick.
type Market interface {
	// Clear submits the tick's aggregate order and returns the new quote.
	// Unrecoverable clearing errors are reported as *FailureError.
	Clear(order Order, final bool) (Quote, error)
	// Prices returns the price history, beginning with the seed price.
	// Callers must not modify the returned slice.
	Prices() []float64
	// Dividends returns the dividend history, aligned with Prices.
	Dividends() []float64
	// Extrapolate appends a no-activity tick that repeats the most recent
	// price ratio without stochasticity.
	Extrapolate() Quote
	Close() error
}

// FailureError reports that the market could not produce a valid price.
// It terminates the simulation run.
type FailureError struct {
	Reason string
}

func (e *FailureError) Error() string {
	return "market failure: " + e.Reason
}

// Failuref builds a FailureError with a formatted reason.
func Failuref(format string, args ...any) *FailureError {
	return &FailureError{Reason: fmt.Sprintf(format, args...)}
}

// AsFailure unwraps err into a *FailureError if it is one.
func AsFailure(err error) (*FailureError, bool) {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ErrClosed is returned when clearing a market after Close.
var ErrClosed = errors.New("market closed")

// Kinds of market backend selectable by name.
const (
	KindMock   = "mock"
	KindGrowth = "growth"
	KindImpact = "impact"
	KindNoise  = "noise"
)

// Params holds the construction parameters for every market kind. Fields not
// used by a kind are ignored.
type Params struct {
	Kind               string
	InitialPrice       float64
	PriceDividendRatio float64

	DailyReturn float64
	DailyStd    float64

	// Growth
	GrowthRate float64

	// Impact
	ImpactScale float64
	MinPrice    float64
	MaxPrice    float64
	MaxOrder    float64

	// Noise
	NoiseAmplitude float64
	NoiseFrequency float64
}

// DefaultParams returns a mock market seeded at 100.
func DefaultParams() Params {
	return Params{
		Kind:               KindMock,
		InitialPrice:       100,
		PriceDividendRatio: DefaultPriceDividendRatio,
		DailyReturn:        SP500DailyReturn,
		DailyStd:           SP500DailyStd,
		GrowthRate:         0.01,
		ImpactScale:        0.001,
		MinPrice:           1,
		MaxPrice:           10000,
		MaxOrder:           1e12,
		NoiseAmplitude:     0.002,
		NoiseFrequency:     0.05,
	}
}

// New constructs the market backend named by p.Kind.
func New(p Params, seed int64) (Market, error) {
	if p.InitialPrice <= 0 {
		return nil, fmt.Errorf("initial price must be > 0, got %v", p.InitialPrice)
	}
	if p.PriceDividendRatio <= 0 {
		p.PriceDividendRatio = DefaultPriceDividendRatio
	}
	switch p.Kind {
	case KindMock, "":
		return NewMock(p, seed), nil
	case KindGrowth:
		return NewGrowth(p.InitialPrice, p.GrowthRate, p.PriceDividendRatio), nil
	case KindImpact:
		if p.MinPrice >= p.MaxPrice {
			return nil, fmt.Errorf("impact market band invalid: min %v >= max %v", p.MinPrice, p.MaxPrice)
		}
		return NewImpact(p, seed), nil
	case KindNoise:
		return NewNoise(p, seed), nil
	default:
		return nil, fmt.Errorf("unknown market kind %q", p.Kind)
	}
}
