package report

import (
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/expectations"
	"github.com/talgya/shark-market/internal/market"
)

// Row is one simulated day joined with its market quote and the
// expectations formed at the end of the day.
type Row struct {
	T                int     `json:"t" db:"t"`
	Price            float64 `json:"price" db:"price"`
	Dividend         float64 `json:"dividend" db:"dividend"`
	Buy              float64 `json:"buy" db:"buy"`
	Sell             float64 `json:"sell" db:"sell"`
	BuyMacro         float64 `json:"buy_macro" db:"buy_macro"`
	SellMacro        float64 `json:"sell_macro" db:"sell_macro"`
	Ror              float64 `json:"ror" db:"ror"`
	ExpectedRor      float64 `json:"expected_ror" db:"expected_ror"`
	ExpectedStd      float64 `json:"expected_std" db:"expected_std"`
	Owned            float64 `json:"owned" db:"owned"`
	TotalAssets      float64 `json:"total_assets" db:"total_assets"`
	MeanIncome       float64 `json:"mean_income" db:"mean_income"`
	TotalConsumption float64 `json:"total_consumption" db:"total_consumption"`
}

// Table joins the run history with the market and expectation logs,
// offsetting all of them past the burn-in.
func Table(res *engine.Result, m market.Market, model *expectations.Model) []Row {
	prices, dividends := m.Prices(), m.Dividends()
	expRor, expStd := model.ExpectedReturns(), model.ExpectedStds()

	rows := make([]Row, 0, res.History.Len())
	for i, r := range res.History.Records {
		row := Row{
			T:                i,
			Buy:              r.Buy,
			Sell:             r.Sell,
			BuyMacro:         r.BuyMacro,
			SellMacro:        r.SellMacro,
			Owned:            r.OwnedShares,
			TotalAssets:      r.TotalAssets,
			MeanIncome:       r.MeanIncome,
			TotalConsumption: r.TotalConsumption,
		}
		if p := res.BurnIn + 1 + i; p < len(prices) {
			row.Price = prices[p]
			row.Dividend = dividends[p]
			row.Ror = prices[p]/prices[p-1] - 1
		}
		if e := res.BurnIn + 1 + i; e < len(expRor) {
			row.ExpectedRor = expRor[e]
			row.ExpectedStd = expStd[e]
		}
		rows = append(rows, row)
	}
	return rows
}
