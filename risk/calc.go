package risk

import "math"

// RR is the reward to risk ratio of a bracket.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}

// RMultiple is how many initial risk units price has moved from entry.
// Zero when the initial risk is zero.
func RMultiple(entry, initialStop, price float64) float64 {
	r := math.Abs(entry - initialStop)
	if r == 0 {
		return 0
	}
	return math.Abs(price-entry) / r
}
