// Package money provides the cent rounding rule used everywhere an
// amount leaves this system (invoice records, PDFs, emails).
package money

import "github.com/shopspring/decimal"

// Round2 rounds to two decimal places, half away from zero ("half-up"
// for the positive amounts we deal with). The arithmetic is decimal, so
// Round2(19.005) == 19.01 regardless of float representation.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// RoundDecimal2 is Round2 without leaving decimal space. Use it when
// summing line items so intermediate totals stay exact.
func RoundDecimal2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Sum2 adds the given amounts in decimal space and rounds the result to
// cents.
func Sum2(amounts []float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}
