package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

var tableHeader = []string{
	"t",
	"prices",
	"dividends",
	"buy",
	"sell",
	"buy_macro",
	"sell_macro",
	"ror",
	"expected_ror",
	"expected_std",
	"owned",
	"total_assets",
	"mean_income",
	"total_consumption",
}

// WriteCSV writes the table with a header row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(tableHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.T),
			fmtFloat(r.Price),
			fmtFloat(r.Dividend),
			fmtFloat(r.Buy),
			fmtFloat(r.Sell),
			fmtFloat(r.BuyMacro),
			fmtFloat(r.SellMacro),
			fmtFloat(r.Ror),
			fmtFloat(r.ExpectedRor),
			fmtFloat(r.ExpectedStd),
			fmtFloat(r.Owned),
			fmtFloat(r.TotalAssets),
			fmtFloat(r.MeanIncome),
			fmtFloat(r.TotalConsumption),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path.
func WriteCSVFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteCSV(f, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
