package broker

import "github.com/shopspring/decimal"

// FloorToStep truncates v down to a multiple of step, the way exchanges
// treat order quantities. A non-positive step returns v unchanged.
func FloorToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	return d.Div(s).Floor().Mul(s).InexactFloat64()
}

// RoundToStep rounds v to the nearest multiple of step, used for prices.
func RoundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	return d.Div(s).Round(0).Mul(s).InexactFloat64()
}

// FormatDecimal renders v without float noise, for wire formats that
// carry numbers as strings.
func FormatDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}
