package engine

// Record summarizes the population and order flow at the end of one day.
type Record struct {
	Day              int     `json:"day" db:"day"`
	Quarter          int     `json:"quarter" db:"quarter"`
	TotalAssets      float64 `json:"total_assets" db:"total_assets"`
	OwnedShares      float64 `json:"owned_shares" db:"owned_shares"`
	MeanIncome       float64 `json:"mean_income" db:"mean_income"`
	TotalConsumption float64 `json:"total_consumption" db:"total_consumption"`
	Buy              float64 `json:"buy" db:"buy"`
	Sell             float64 `json:"sell" db:"sell"`
	BuyMacro         float64 `json:"buy_macro" db:"buy_macro"`
	SellMacro        float64 `json:"sell_macro" db:"sell_macro"`
}

// History is the reporting log of a run. The loop appends to it and never
// reads it back.
type History struct {
	Initial Record   `json:"initial"`
	Records []Record `json:"records"`
}

func (h *History) append(r Record) {
	h.Records = append(h.Records, r)
}

// Len returns the number of recorded days.
func (h *History) Len() int { return len(h.Records) }
