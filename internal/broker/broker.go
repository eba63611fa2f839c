// Package broker aggregates per-tick orders from many agents into a single
// market clear and keeps the realized order-flow logs.
package broker

import (
	"fmt"

	"github.com/talgya/shark-market/internal/market"
)

// Trade is the realized outcome of one clear.
type Trade struct {
	Order    market.Order `json:"order"` // total order sent, ordinary + macro
	Return   float64      `json:"return"`
	Price    float64      `json:"price"`
	Dividend float64      `json:"dividend"`
}

// Broker accumulates orders between clears. It is owned by a single
// simulation loop and is not safe for concurrent use.
type Broker struct {
	Market market.Market

	pending      market.Order
	pendingMacro market.Order

	// History holds the ordinary (buy, sell) flow per tick; MacroHistory the
	// macro liquidity flow. Both advance by exactly one entry per tick.
	History      []market.Order
	MacroHistory []market.Order

	closed bool
}

// New creates a broker for the given market.
func New(m market.Market) *Broker {
	return &Broker{Market: m}
}

// Transact adds an order to the pending aggregate. Negative or NaN magnitudes
// are a programming error and panic.
func (b *Broker) Transact(order market.Order, macro bool) {
	if err := order.Validate(); err != nil {
		panic(fmt.Sprintf("broker: transact: %v", err))
	}
	if macro {
		b.pendingMacro = b.pendingMacro.Add(order)
		return
	}
	b.pending = b.pending.Add(order)
}

// Pending returns the ordinary orders accumulated since the last clear.
func (b *Broker) Pending() market.Order { return b.pending }

// PendingMacro returns the macro orders accumulated since the last clear.
func (b *Broker) PendingMacro() market.Order { return b.pendingMacro }

// Trade clears the pending aggregate through the market. The pending sums are
// reset whether or not the clear succeeds. On the final tick the market must
// report its end signal; a cleared tick without it is still logged.
func (b *Broker) Trade(final bool) (Trade, error) {
	ordinary, macro := b.pending, b.pendingMacro
	b.pending, b.pendingMacro = market.Order{}, market.Order{}

	total := ordinary.Add(macro)
	q, err := b.Market.Clear(total, final)
	if err != nil {
		return Trade{}, fmt.Errorf("clear: %w", err)
	}
	// The market has recorded the tick, so the logs follow it even when the
	// end signal is missing.
	b.History = append(b.History, ordinary)
	b.MacroHistory = append(b.MacroHistory, macro)
	if final && !q.End {
		return Trade{}, market.Failuref("Simulated final day but did not receive signal to end")
	}

	return Trade{
		Order:    total,
		Return:   market.RateOfReturn(b.Market.Prices()),
		Price:    q.Price,
		Dividend: q.Dividend,
	}, nil
}

// Track appends padding entries to both logs without clearing the market, to
// keep them aligned with ticks skipped by sub-stepping.
func (b *Broker) Track(order, macro market.Order) {
	b.History = append(b.History, order)
	b.MacroHistory = append(b.MacroHistory, macro)
}

// Close releases the market. Subsequent calls are no-ops.
func (b *Broker) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.Market.Close(); err != nil {
		return fmt.Errorf("close market: %w", err)
	}
	return nil
}
