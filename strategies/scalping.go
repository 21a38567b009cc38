package strategies

import "github.com/rustyeddy/bartrader/market"

const scalpMinBars = 5

// Scalping fades three-bar runs: two rising closes sell, two falling closes
// buy. An open position exits on the first close against it.
type Scalping struct {
	closes []float64
}

func NewScalping(Params) *Scalping { return &Scalping{} }

func (s *Scalping) Name() string { return "scalping" }

func (s *Scalping) OnBar(b market.Bar, ctx *Context) market.Signal {
	s.closes = append(s.closes, b.Close)
	if len(s.closes) > scalpMinBars {
		s.closes = s.closes[len(s.closes)-scalpMinBars:]
	}
	if len(s.closes) < scalpMinBars {
		return market.None
	}

	n := len(s.closes)
	c, p1, p2 := s.closes[n-1], s.closes[n-2], s.closes[n-3]

	if c > p1 && p1 > p2 {
		return market.Sell
	}
	if c < p1 && p1 < p2 {
		return market.Buy
	}

	switch pos := ctx.Position(); {
	case pos == market.Long && c < p1:
		return market.Exit
	case pos == market.Short && c > p1:
		return market.Exit
	}
	return market.None
}
