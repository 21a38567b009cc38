package live

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/broker"
	"github.com/rustyeddy/bartrader/internal/id"
	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/sim"
)

// executor routes engine order intents to the exchange. Quantities and
// protective prices are rounded to the venue's precision first.
type executor struct {
	t *Trader
}

var _ sim.Executor = executor{}

func (x executor) Enter(ctx context.Context, o sim.OrderIntent) (float64, error) {
	ex := x.t.exchange
	qty := ex.AmountToPrecision(o.Symbol, o.Qty)
	if qty <= 0 {
		err := fmt.Errorf("%w: qty %v rounds to zero", broker.ErrOrderRejected, o.Qty)
		x.record(ctx, o, qty, broker.OrderResult{}, err)
		return 0, err
	}
	order := broker.Order{
		Symbol:   o.Symbol,
		Side:     o.Side,
		Qty:      qty,
		Type:     broker.Market,
		Price:    o.Price,
		ClientID: id.New(),
	}
	if o.Take > 0 {
		order.TakeProfit = ex.PriceToPrecision(o.Symbol, o.Take)
	}
	if o.Stop > 0 {
		order.StopLoss = ex.PriceToPrecision(o.Symbol, o.Stop)
	}
	res, err := ex.PlaceOrder(ctx, order)
	x.record(ctx, o, qty, res, err)
	if err != nil {
		return 0, err
	}
	return qty, nil
}

func (x executor) Exit(ctx context.Context, o sim.OrderIntent) error {
	ex := x.t.exchange
	qty := ex.AmountToPrecision(o.Symbol, o.Qty)
	if qty <= 0 {
		qty = o.Qty
	}
	res, err := ex.PlaceOrder(ctx, broker.Order{
		Symbol:     o.Symbol,
		Side:       o.Side,
		Qty:        qty,
		Type:       broker.Market,
		Price:      o.Price,
		ReduceOnly: true,
		ClientID:   id.New(),
	})
	x.record(ctx, o, qty, res, err)
	return err
}

func (x executor) record(ctx context.Context, o sim.OrderIntent, qty float64, res broker.OrderResult, err error) {
	status := "ok"
	entry := journal.Order{
		Time:       time.Now().UTC(),
		Symbol:     o.Symbol,
		Side:       o.Side.String(),
		Qty:        qty,
		Price:      o.Price,
		ReduceOnly: o.ReduceOnly,
		ExchangeID: res.ID,
		Status:     res.Status,
	}
	if err != nil {
		status = "failed"
		entry.Status = status
		entry.Error = err.Error()
		x.t.log.Error("order failed", zap.Stringer("side", o.Side), zap.Float64("qty", qty), zap.Error(err))
	} else {
		x.t.log.Info("order placed", zap.Stringer("side", o.Side), zap.Float64("qty", qty), zap.String("id", res.ID))
	}
	x.t.metrics.Orders.WithLabelValues(o.Side.String(), status).Inc()
	if jerr := x.t.journal.LogOrder(ctx, entry); jerr != nil {
		x.t.log.Warn("journal order failed", zap.Error(jerr))
	}
}
