package market

import (
	"fmt"
	"math"
)

// Order is a pair of non-negative share quantities submitted in one tick.
type Order struct {
	Buy  float64 `json:"buy" db:"buy"`
	Sell float64 `json:"sell" db:"sell"`
}

// OrderFromDelta converts a signed share delta into an order:
// positive deltas buy, negative deltas sell.
func OrderFromDelta(delta float64) Order {
	if delta >= 0 {
		return Order{Buy: delta}
	}
	return Order{Sell: -delta}
}

// Net returns Buy - Sell.
func (o Order) Net() float64 { return o.Buy - o.Sell }

// Add returns the component-wise sum of two orders.
func (o Order) Add(other Order) Order {
	return Order{Buy: o.Buy + other.Buy, Sell: o.Sell + other.Sell}
}

// IsZero reports whether both sides are zero.
func (o Order) IsZero() bool { return o.Buy == 0 && o.Sell == 0 }

// Validate rejects negative or NaN magnitudes.
func (o Order) Validate() error {
	if math.IsNaN(o.Buy) || math.IsNaN(o.Sell) {
		return fmt.Errorf("order has NaN magnitude: buy=%v sell=%v", o.Buy, o.Sell)
	}
	if o.Buy < 0 || o.Sell < 0 {
		return fmt.Errorf("order has negative magnitude: buy=%v sell=%v", o.Buy, o.Sell)
	}
	return nil
}
