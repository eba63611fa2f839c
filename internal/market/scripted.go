package market

// Scripted replays a fixed list of price multipliers and can be told to fail
// on a given clear. It exists for exercising the loop's failure paths.
type Scripted struct {
	Ledger

	// Multipliers are applied to the last price, one per clear, cycling.
	// An empty list keeps the price flat.
	Multipliers []float64
	// FailAt is the zero-based clear index that fails; negative disables.
	FailAt     int
	FailReason string
	// OmitEnd suppresses the end signal on the final clear.
	OmitEnd bool

	Clears int
}

// NewScripted creates a scripted market that never fails.
func NewScripted(initialPrice float64, multipliers ...float64) *Scripted {
	return &Scripted{
		Ledger:      NewLedger(initialPrice, DefaultPriceDividendRatio),
		Multipliers: multipliers,
		FailAt:      -1,
	}
}

// Clear replays the next multiplier.
func (s *Scripted) Clear(order Order, final bool) (Quote, error) {
	if s.Closed() {
		return Quote{}, ErrClosed
	}
	if err := order.Validate(); err != nil {
		return Quote{}, Failuref("Error in received data: %v", err)
	}
	idx := s.Clears
	s.Clears++
	if idx == s.FailAt {
		reason := s.FailReason
		if reason == "" {
			reason = "scripted failure"
		}
		return Quote{}, &FailureError{Reason: reason}
	}

	mult := 1.0
	if len(s.Multipliers) > 0 {
		mult = s.Multipliers[idx%len(s.Multipliers)]
	}
	price := s.Last() * mult
	q := Quote{Price: price, Dividend: s.DividendFor(price), End: final && !s.OmitEnd}
	s.record(q.Price, q.Dividend)
	return q, nil
}
