package indicators

import (
	"fmt"

	"github.com/rustyeddy/bartrader/market"
)

// ExponentialMA is a streaming EMA of closes. Its values match EMA over the
// full history seen so far.
type ExponentialMA struct {
	period int
	k      float64
	ema    float64
	count  int
}

// NewEMA creates a new streaming EMA with the given period.
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{period: period, k: emaK(period)}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }

func (e *ExponentialMA) Warmup() int { return 1 }

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
}

func (e *ExponentialMA) Update(b market.Bar) { e.Add(b.Close) }

// Add feeds a raw value.
func (e *ExponentialMA) Add(v float64) float64 {
	switch {
	case e.count == 0 || e.period <= 1:
		e.ema = v
	default:
		e.ema = emaStep(v, e.ema, e.k)
	}
	e.count++
	return e.ema
}

func (e *ExponentialMA) Ready() bool { return e.count > 0 }

func (e *ExponentialMA) Value() float64 { return e.ema }

// StreamingATR is the streaming form of ATR. Ready reports true once the
// period has been seen, although Value is defined from the first bar.
type StreamingATR struct {
	period    int
	tr        *ExponentialMA
	prevClose float64
	count     int
}

// NewATR creates a new streaming ATR with the given period.
func NewATR(period int) *StreamingATR {
	return &StreamingATR{period: period, tr: NewEMA(period)}
}

func (a *StreamingATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

func (a *StreamingATR) Warmup() int { return a.period }

func (a *StreamingATR) Reset() {
	a.tr.Reset()
	a.prevClose = 0
	a.count = 0
}

func (a *StreamingATR) Update(b market.Bar) {
	var tr float64
	if a.count == 0 {
		tr = b.High - b.Low
	} else {
		tr = trueRange(b.High, b.Low, a.prevClose)
	}
	a.tr.Add(tr)
	a.prevClose = b.Close
	a.count++
}

func (a *StreamingATR) Ready() bool { return a.count >= a.period }

func (a *StreamingATR) Value() float64 { return a.tr.Value() }

// Count is the number of bars consumed.
func (a *StreamingATR) Count() int { return a.count }

// StreamingKeltner tracks the most recent Keltner channel values.
type StreamingKeltner struct {
	mult float64
	mid  *ExponentialMA
	atr  *StreamingATR

	prevMid float64
	count   int
}

// NewKeltner creates a streaming Keltner channel.
func NewKeltner(emaPeriod, atrPeriod int, mult float64) *StreamingKeltner {
	return &StreamingKeltner{
		mult: mult,
		mid:  NewEMA(emaPeriod),
		atr:  NewATR(atrPeriod),
	}
}

func (k *StreamingKeltner) Update(b market.Bar) {
	k.prevMid = k.mid.Value()
	k.mid.Update(b)
	k.atr.Update(b)
	k.count++
}

func (k *StreamingKeltner) Mid() float64   { return k.mid.Value() }
func (k *StreamingKeltner) ATR() float64   { return k.atr.Value() }
func (k *StreamingKeltner) Upper() float64 { return k.mid.Value() + k.mult*k.atr.Value() }
func (k *StreamingKeltner) Lower() float64 { return k.mid.Value() - k.mult*k.atr.Value() }

// Slope is mid[i] - mid[i-1]; zero until two bars have been seen.
func (k *StreamingKeltner) Slope() float64 {
	if k.count < 2 {
		return 0
	}
	return k.mid.Value() - k.prevMid
}

// Count is the number of bars consumed.
func (k *StreamingKeltner) Count() int { return k.count }

var (
	_ Indicator = (*ExponentialMA)(nil)
	_ Indicator = (*StreamingATR)(nil)
)
