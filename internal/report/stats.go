// Package report turns a finished run into summary statistics and a per-day
// table for export. It only reads simulation state.
package report

import (
	"math"
	"strings"

	"github.com/talgya/shark-market/internal/agents"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/market"
	"github.com/talgya/shark-market/internal/stats"
)

// Run status codes, keyed off the market failure reason.
const (
	StatusOK          = "0"
	StatusPriceRange  = "1"
	StatusBadData     = "-2"
	StatusNoEndSignal = "3"
	StatusOther       = "4"
)

// StatusCode classifies a failure reason. The empty reason is success.
func StatusCode(failure string) string {
	switch {
	case failure == "":
		return StatusOK
	case strings.Contains(failure, "Hit market maker price range"):
		return StatusPriceRange
	case strings.Contains(failure, "Error in received data"):
		return StatusBadData
	case strings.Contains(failure, "Simulated final day but did not receive signal to end"):
		return StatusNoEndSignal
	default:
		return StatusOther
	}
}

// FlowStats describes one side of the order flow over a run.
type FlowStats struct {
	Max      float64 `json:"max"`
	ArgMax   int     `json:"argmax"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Skew     float64 `json:"skew"`
	Kurtosis float64 `json:"kurtosis"`
}

func summarizeFlow(xs []float64) FlowStats {
	var fs FlowStats
	fs.ArgMax, fs.Max = stats.ArgMax(xs)
	fs.Mean = stats.Mean(xs)
	fs.Std = stats.Std(xs)
	fs.Skew = stats.Skew(xs)
	fs.Kurtosis = stats.Kurtosis(xs)
	return fs
}

// Summary is the end-of-run statistics record. Burn-in days are excluded.
type Summary struct {
	Status        string  `json:"status"`
	Failure       string  `json:"failure,omitempty"`
	Seed          int64   `json:"seed"`
	AttentionRate float64 `json:"attention"`
	Ticks         int     `json:"ticks"`
	BurnIn        int     `json:"burn_in"`
	Elapsed       float64 `json:"seconds"`

	RorMean       float64 `json:"ror_mean"`
	RorVolatility float64 `json:"ror_volatility"`
	DividendMean  float64 `json:"dividend_mean"`
	DividendStd   float64 `json:"dividend_std"`

	Price market.PriceStats `json:"price"`
	Buy   FlowStats         `json:"buy"`
	Sell  FlowStats         `json:"sell"`

	// Durbin-Watson statistic minus 2 for log returns and squared log
	// returns; near zero means no first-order autocorrelation.
	LogReturnAutocorr        float64 `json:"log_return_autocorr"`
	SquaredLogReturnAutocorr float64 `json:"log_return_squared_autocorr"`

	ExpectedRorMean float64 `json:"expected_ror_mean"`
	ExpectedStdMean float64 `json:"expected_std_mean"`
	P1              float64 `json:"p1"`
	P2              float64 `json:"p2"`
	Window1         int     `json:"delta_t1"`
	Window2         int     `json:"delta_t2"`

	DollarsPerUnit   float64 `json:"dollars_per_hark_money_unit"`
	FinalTotalAssets float64 `json:"final_total_assets"`
	FinalShares      float64 `json:"final_shares"`

	Anomalies map[string]int     `json:"anomalies"`
	Classes   []agents.ClassStat `json:"classes"`
}

// Summarize computes the summary of a run.
func Summarize(res *engine.Result, sim *engine.Simulation) Summary {
	prices := afterBurnIn(sim.Market.Prices(), res.BurnIn)
	dividends := afterBurnIn(sim.Market.Dividends(), res.BurnIn)
	rors := rates(prices)
	logRets := market.LogReturns(prices)
	sq := make([]float64, len(logRets))
	for i, r := range logRets {
		sq[i] = r * r
	}

	buys := make([]float64, 0, res.History.Len())
	sells := make([]float64, 0, res.History.Len())
	for _, r := range res.History.Records {
		buys = append(buys, r.Buy)
		sells = append(sells, r.Sell)
	}

	skip := 1 + res.BurnIn
	expRor := afterBurnIn(sim.Model.ExpectedReturns(), skip)
	expStd := afterBurnIn(sim.Model.ExpectedStds(), skip)

	s := Summary{
		Status:        StatusCode(res.Failure),
		Failure:       res.Failure,
		Seed:          res.Seed,
		AttentionRate: sim.Config.AttentionRate,
		Ticks:         res.Ticks,
		BurnIn:        res.BurnIn,
		Elapsed:       res.Elapsed().Seconds(),

		RorMean:       stats.Mean(rors),
		RorVolatility: stats.Std(rors),
		DividendMean:  stats.Mean(dividends[min(1, len(dividends)):]),
		DividendStd:   stats.Std(dividends[min(1, len(dividends)):]),

		Price: market.SummarizePrices(prices),
		Buy:   summarizeFlow(buys),
		Sell:  summarizeFlow(sells),

		LogReturnAutocorr:        stats.DurbinWatson(logRets) - 2,
		SquaredLogReturnAutocorr: stats.DurbinWatson(sq) - 2,

		ExpectedRorMean: stats.Mean(expRor),
		ExpectedStdMean: stats.Mean(expStd),
		P1:              sim.Model.P1,
		P2:              sim.Model.P2,
		Window1:         sim.Model.Window1,
		Window2:         sim.Model.Window2,

		DollarsPerUnit:   sim.Population.DollarsPerUnit,
		FinalTotalAssets: sim.Population.TotalAssets(),
		FinalShares:      sim.Population.TotalShares(),

		Anomalies: sim.Population.Anomalies.Counts(),
		Classes:   sim.Population.ClassStats(),
	}
	return s
}

// Values flattens the numeric fields into key/value pairs for storage.
// Non-finite values are omitted.
func (s Summary) Values() map[string]float64 {
	out := map[string]float64{
		"attention":                   s.AttentionRate,
		"seconds":                     s.Elapsed,
		"ror_mean":                    s.RorMean,
		"ror_volatility":              s.RorVolatility,
		"dividend_mean":               s.DividendMean,
		"dividend_std":                s.DividendStd,
		"min_asset_price":             s.Price.Min,
		"max_asset_price":             s.Price.Max,
		"mean_asset_price":            s.Price.Mean,
		"std_asset_price":             s.Price.Std,
		"max_buy_limit":               s.Buy.Max,
		"mean_buy_limit":              s.Buy.Mean,
		"std_buy_limit":               s.Buy.Std,
		"kurtosis_buy_limit":          s.Buy.Kurtosis,
		"skew_buy_limit":              s.Buy.Skew,
		"max_sell_limit":              s.Sell.Max,
		"mean_sell_limit":             s.Sell.Mean,
		"std_sell_limit":              s.Sell.Std,
		"kurtosis_sell_limit":         s.Sell.Kurtosis,
		"skew_sell_limit":             s.Sell.Skew,
		"log_return_autocorr":         s.LogReturnAutocorr,
		"log_return_squared_autocorr": s.SquaredLogReturnAutocorr,
		"expected_ror_mean":           s.ExpectedRorMean,
		"expected_std_mean":           s.ExpectedStdMean,
		"p1":                          s.P1,
		"p2":                          s.P2,
		"delta_t1":                    float64(s.Window1),
		"delta_t2":                    float64(s.Window2),
		"dollars_per_hark_money_unit": s.DollarsPerUnit,
		"final_total_assets":          s.FinalTotalAssets,
		"final_shares":                s.FinalShares,
	}
	for k, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(out, k)
		}
	}
	return out
}

func afterBurnIn(xs []float64, n int) []float64 {
	if n >= len(xs) {
		return nil
	}
	return xs[n:]
}

func rates(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := range out {
		out[i] = prices[i+1]/prices[i] - 1
	}
	return out
}
