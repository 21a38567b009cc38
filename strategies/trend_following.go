package strategies

import (
	"math"

	"github.com/rustyeddy/bartrader/indicators"
	"github.com/rustyeddy/bartrader/market"
)

// TrendFollowing enters after BarsConfirmBreak consecutive closes beyond a
// Keltner channel edge and exits when price crosses back over the mid line.
// Slope and volatility filters suppress every signal, exits included.
type TrendFollowing struct {
	p      Params
	ch     *indicators.StreamingKeltner
	minLen int

	breakUp int
	breakDn int
}

func NewTrendFollowing(p Params) *TrendFollowing {
	return &TrendFollowing{
		p:      p,
		ch:     indicators.NewKeltner(p.EMAPeriod, p.ATRPeriod, p.KeltnerMult),
		minLen: max(p.EMAPeriod, p.ATRPeriod) + 5,
	}
}

func (s *TrendFollowing) Name() string { return "trend_following" }

// Params returns the parameters the strategy was built with.
func (s *TrendFollowing) Params() Params { return s.p }

func (s *TrendFollowing) OnBar(b market.Bar, ctx *Context) market.Signal {
	s.ch.Update(b)
	if s.ch.Count() < s.minLen {
		return market.None
	}

	c := b.Close
	if s.p.FilterEMASlope && math.Abs(s.ch.Slope()) < s.p.MinEMASlopePoints {
		return market.None
	}
	if s.ch.ATR() < s.p.MinATRPoints {
		return market.None
	}

	switch {
	case c > s.ch.Upper():
		s.breakUp++
		s.breakDn = 0
	case c < s.ch.Lower():
		s.breakDn++
		s.breakUp = 0
	default:
		s.breakUp = max(0, s.breakUp-1)
		s.breakDn = max(0, s.breakDn-1)
	}

	if s.breakUp >= s.p.BarsConfirmBreak {
		return market.Buy
	}
	if s.breakDn >= s.p.BarsConfirmBreak {
		return market.Sell
	}

	switch pos := ctx.Position(); {
	case pos == market.Long && c < s.ch.Mid():
		return market.Exit
	case pos == market.Short && c > s.ch.Mid():
		return market.Exit
	}
	return market.None
}
