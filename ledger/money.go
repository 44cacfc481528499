package ledger

import (
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat 10% rate applied to every draft unless overridden.
var DefaultTaxRate = decimal.RequireFromString("0.10")

var hundred = decimal.NewFromInt(100)

// Totals are the derived monetary values of a draft. They are exact; round
// or format them only at the presentation boundary.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

func computeTotals(items []LineItem, rate decimal.Decimal) Totals {
	subtotal := subtotalOf(items)
	tax := subtotal.Mul(rate)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax),
	}
}

func subtotalOf(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Rounded returns the totals in minor units. Subtotal and tax are rounded
// and the total is their sum, so the three always add up on paper.
func (t Totals) Rounded() Totals {
	subtotal := t.Subtotal.Round(2)
	tax := t.TaxAmount.Round(2)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax),
	}
}

// Equal compares two totals value by value.
func (t Totals) Equal(o Totals) bool {
	return t.Subtotal.Equal(o.Subtotal) && t.TaxAmount.Equal(o.TaxAmount) && t.Total.Equal(o.Total)
}

// Format renders an amount with exactly two decimals.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatWithSymbol renders an amount the way invoices display it, e.g. "$275.00".
func FormatWithSymbol(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-$" + Format(amount.Neg())
	}
	return "$" + Format(amount)
}

// Cents converts an amount to integer minor units.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer minor units back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
