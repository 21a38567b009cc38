package strategies

import "github.com/rustyeddy/bartrader/market"

// Noop never signals.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnBar(market.Bar, *Context) market.Signal { return market.None }
