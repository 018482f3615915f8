package api

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount as "$1,234.56". Non-positive amounts
// render as "" so empty cells stay empty.
func FormatCurrency(d decimal.Decimal) string {
	if !d.IsPositive() {
		return ""
	}
	return "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}
