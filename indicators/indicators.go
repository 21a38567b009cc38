// Package indicators provides the smoothing and volatility indicators used
// by the strategies. The batch functions are pure; the streaming types
// produce bit-identical values one bar at a time.
package indicators

import "github.com/rustyeddy/bartrader/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to use in live, replay, and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar and updates internal state.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current indicator value, 0 before the first update.
	Value() float64
}

// EMA smooths values with k = 2/(period+1), seeding with the first value:
//
//	out[0] = in[0]
//	out[i] = in[i]*k + out[i-1]*(1-k)
//
// A period of 1 or less returns a copy of the input.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	k := emaK(period)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = emaStep(values[i], out[i-1], k)
	}
	return out
}

func emaK(period int) float64 { return 2.0 / float64(period+1) }

func emaStep(v, prev, k float64) float64 { return v*k + prev*(1-k) }

// TrueRange returns the true range of each bar. The first bar has no
// previous close, so its range is high-low.
func TrueRange(high, low, closes []float64) []float64 {
	n := minLen(high, low, closes)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		tr[i] = trueRange(high[i], low[i], closes[i-1])
	}
	return tr
}

func trueRange(high, low, prevClose float64) float64 {
	hl := high - low
	hc := abs(high - prevClose)
	lc := abs(low - prevClose)
	return max(hl, max(hc, lc))
}

// ATR is the exponential smoothing of the true range.
func ATR(high, low, closes []float64, period int) []float64 {
	return EMA(TrueRange(high, low, closes), period)
}

// Channel holds Keltner channel sequences aligned by index.
type Channel struct {
	Upper []float64
	Lower []float64
	Mid   []float64
	ATR   []float64
}

// Keltner computes mid = EMA(close) and bands at mid +/- mult*ATR.
func Keltner(closes, high, low []float64, emaPeriod, atrPeriod int, mult float64) Channel {
	mid := EMA(closes, emaPeriod)
	a := ATR(high, low, closes, atrPeriod)
	n := len(mid)
	if len(a) < n {
		n = len(a)
	}
	ch := Channel{
		Upper: make([]float64, n),
		Lower: make([]float64, n),
		Mid:   mid[:n],
		ATR:   a[:n],
	}
	for i := 0; i < n; i++ {
		ch.Upper[i] = mid[i] + mult*a[i]
		ch.Lower[i] = mid[i] - mult*a[i]
	}
	return ch
}

// Closes, Highs and Lows extract one field from a bar slice.
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func Highs(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func Lows(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func minLen(a, b, c []float64) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(c) < n {
		n = len(c)
	}
	return n
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
