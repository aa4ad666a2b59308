package currency

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCode is used when no CURRENCY is configured (the cooperative books in birr).
const DefaultCode = "ETB"

// Format renders a decimal amount with the currency's grouping and minor units,
// e.g. 1000 ETB -> "Br1,000.00". Unknown codes fall back to "1000.00 XYZ".
func Format(amount decimal.Decimal, code string) string {
	if code == "" {
		code = DefaultCode
	}
	cur := money.New(0, code).Currency()
	if cur == nil || cur.Template == "" {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}
