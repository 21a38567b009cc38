// Package paper is an in-memory exchange that replays a fixed bar series
// and fills every order at the latest close.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rustyeddy/bartrader/broker"
	"github.com/rustyeddy/bartrader/market"
)

// Exchange replays Bars one at a time. Each GetBars call returns the
// window ending at the cursor and then advances it; once the series is
// exhausted the last window is returned again.
type Exchange struct {
	Bars       []market.Bar
	PointVal   float64
	QtyStep    float64
	TickSize   float64
	RejectAll  bool
	RejectWith error

	mu     sync.Mutex
	cursor int
	orders []broker.OrderResult
}

var _ broker.Exchange = (*Exchange)(nil)

func New(bars []market.Bar) *Exchange {
	return &Exchange{Bars: bars, PointVal: 1}
}

func (x *Exchange) Name() string { return "paper" }

func (x *Exchange) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.Bars) == 0 {
		return nil, nil
	}
	end := x.cursor + 1
	if end > len(x.Bars) {
		end = len(x.Bars)
	}
	if x.cursor < len(x.Bars) {
		x.cursor++
	}
	if limit <= 0 {
		limit = 1
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]market.Bar, end-start)
	copy(out, x.Bars[start:end])
	return out, nil
}

// Exhausted reports whether every bar has been handed out.
func (x *Exchange) Exhausted() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cursor >= len(x.Bars)
}

func (x *Exchange) PlaceOrder(ctx context.Context, o broker.Order) (broker.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderResult{}, err
	}
	if o.Qty <= 0 {
		return broker.OrderResult{}, fmt.Errorf("%w: qty %v", broker.ErrOrderRejected, o.Qty)
	}
	if x.RejectAll {
		reason := x.RejectWith
		if reason == nil {
			reason = fmt.Errorf("paper: rejected")
		}
		return broker.OrderResult{}, fmt.Errorf("%w: %v", broker.ErrOrderRejected, reason)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	price := o.Price
	if idx := x.cursor - 1; idx >= 0 && idx < len(x.Bars) {
		price = x.Bars[idx].Close
	}
	res := broker.OrderResult{
		ID:       uuid.NewString(),
		ClientID: o.ClientID,
		Symbol:   o.Symbol,
		Side:     o.Side,
		Qty:      o.Qty,
		Price:    price,
		Status:   "filled",
		Time:     time.Now().UTC(),
	}
	x.orders = append(x.orders, res)
	return res, nil
}

// Orders returns a copy of every accepted order.
func (x *Exchange) Orders() []broker.OrderResult {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]broker.OrderResult, len(x.orders))
	copy(out, x.orders)
	return out
}

func (x *Exchange) PointValue(string) float64 {
	if x.PointVal <= 0 {
		return 1
	}
	return x.PointVal
}

func (x *Exchange) AmountToPrecision(_ string, amount float64) float64 {
	return broker.FloorToStep(amount, x.QtyStep)
}

func (x *Exchange) PriceToPrecision(_ string, price float64) float64 {
	return broker.RoundToStep(price, x.TickSize)
}
