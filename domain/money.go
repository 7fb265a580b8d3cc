package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrencySymbol is used when no symbol is configured.
const DefaultCurrencySymbol = "€"

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount for display: two decimals, thousands
// separators, symbol in front. This is the only place amounts get rounded.
func FormatMoney(v decimal.Decimal, symbol string) string {
	rounded := v.Round(2)
	amount := moneyPrinter.Sprintf("%.2f", rounded.Abs().InexactFloat64())
	if rounded.IsNegative() {
		return "-" + symbol + amount
	}
	return symbol + amount
}
