package engine

import (
	"context"
	"time"

	"github.com/talgya/shark-market/internal/broker"
	"github.com/talgya/shark-market/internal/market"
)

// SeriesResult is the outcome of clearing a fixed order series.
type SeriesResult struct {
	Trades    []broker.Trade  `json:"trades"`
	Durations []time.Duration `json:"durations"`
	Failure   string          `json:"failure,omitempty"`
}

// RunSeries clears a fixed list of orders through m without any agents,
// after burnIn zero-order clears. The last order is cleared as the final
// tick. It is used to calibrate market backends.
func RunSeries(ctx context.Context, m market.Market, orders []market.Order, burnIn int) (*SeriesResult, error) {
	b := broker.New(m)
	res := &SeriesResult{}

	for i := 0; i < burnIn; i++ {
		if _, err := b.Trade(false); err != nil {
			return res, seriesFailure(res, err)
		}
	}

	for i, o := range orders {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		b.Transact(o, false)

		start := time.Now()
		t, err := b.Trade(i == len(orders)-1)
		if err != nil {
			return res, seriesFailure(res, err)
		}
		res.Durations = append(res.Durations, time.Since(start))
		res.Trades = append(res.Trades, t)
	}
	return res, nil
}

func seriesFailure(res *SeriesResult, err error) error {
	if fe, ok := market.AsFailure(err); ok {
		res.Failure = fe.Reason
		return nil
	}
	return err
}
