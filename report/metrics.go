// Package report derives rolling market statistics and strategy state
// snapshots, and renders run summaries as text.
package report

import (
	"math"

	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/sim"
	"github.com/rustyeddy/bartrader/strategies"
)

// DefaultLookback is the window RollingMetrics uses when none is given.
const DefaultLookback = 60

// Market holds statistics over the last Lookback bars.
type Market struct {
	Lookback  int     `json:"lookback"`
	CloseNow  float64 `json:"close_now"`
	VolRange  float64 `json:"vol_range"`
	Slope     float64 `json:"slope"`
	MeanRange float64 `json:"mean_range"`
	SpreadEst float64 `json:"spread_est"`
}

// RollingMetrics summarizes the trailing window of bars. ok is false when
// there are no bars.
func RollingMetrics(bars []market.Bar, lookback int) (m Market, ok bool) {
	if len(bars) == 0 {
		return Market{}, false
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	w := bars
	if len(w) > lookback {
		w = w[len(w)-lookback:]
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	var rng, absRng float64
	for _, b := range w {
		lo = math.Min(lo, b.Close)
		hi = math.Max(hi, b.Close)
		rng += b.High - b.Low
		absRng += math.Abs(b.High - b.Low)
	}
	n := len(w)

	m = Market{
		Lookback:  n,
		CloseNow:  w[n-1].Close,
		Slope:     (w[n-1].Close - w[0].Close) / float64(max(1, n-1)),
		MeanRange: absRng / float64(n),
		SpreadEst: rng / float64(n),
	}
	if n >= 2 {
		m.VolRange = hi - lo
	}
	return m, true
}

// TradeStats are the running trade counters.
type TradeStats struct {
	Count  int     `json:"count"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	PnL    float64 `json:"pnl"`
}

// StrategyInfo names the strategy and its parameters.
type StrategyInfo struct {
	Name   string            `json:"name"`
	Params strategies.Params `json:"params"`
}

// Snapshot is the state handed to anything tuning the strategy.
type Snapshot struct {
	Time     int64              `json:"ts,omitempty"`
	Equity   float64            `json:"equity"`
	Trades   TradeStats         `json:"trades"`
	Market   *Market            `json:"market,omitempty"`
	Strategy StrategyInfo       `json:"strategy"`
	Position *sim.PositionState `json:"position,omitempty"`
}

// BuildSnapshot assembles a snapshot from a run so far.
func BuildSnapshot(bars []market.Bar, equity float64, res sim.Result, name string, p strategies.Params, lookback int) Snapshot {
	s := Snapshot{
		Equity: equity,
		Trades: TradeStats{
			Count:  res.Trades,
			Wins:   res.Wins,
			Losses: res.Losses,
			PnL:    res.PnL,
		},
		Strategy: StrategyInfo{Name: name, Params: p},
	}
	if m, ok := RollingMetrics(bars, lookback); ok {
		s.Market = &m
	}
	if len(bars) > 0 {
		s.Time = bars[len(bars)-1].Timestamp
	}
	return s
}
