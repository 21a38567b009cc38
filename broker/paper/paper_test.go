package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bartrader/broker"
	"github.com/rustyeddy/bartrader/market"
)

func bars(n int) []market.Bar {
	out := make([]market.Bar, n)
	for i := range out {
		c := float64(100 + i)
		out[i] = market.Bar{Timestamp: int64(i+1) * 60_000, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return out
}

func TestGetBarsReplay(t *testing.T) {
	t.Parallel()
	x := New(bars(3))
	ctx := context.Background()

	got, err := x.GetBars(ctx, "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Close)

	got, err = x.GetBars(ctx, "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 101.0, got[1].Close)

	_, _ = x.GetBars(ctx, "BTCUSDT", "1m", 2)
	assert.True(t, x.Exhausted())

	got, err = x.GetBars(ctx, "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	assert.Equal(t, 102.0, got[len(got)-1].Close, "exhausted feed repeats the last bar")
}

func TestGetBarsEmpty(t *testing.T) {
	x := New(nil)
	got, err := x.GetBars(context.Background(), "X", "1m", 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPlaceOrder(t *testing.T) {
	t.Parallel()
	x := New(bars(2))
	ctx := context.Background()
	_, _ = x.GetBars(ctx, "X", "1m", 1)

	res, err := x.PlaceOrder(ctx, broker.Order{Symbol: "X", Side: market.Long, Qty: 1.5, ClientID: "c1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "filled", res.Status)
	assert.Equal(t, 100.0, res.Price)
	assert.Equal(t, "c1", res.ClientID)
	assert.Len(t, x.Orders(), 1)

	_, err = x.PlaceOrder(ctx, broker.Order{Symbol: "X", Side: market.Long})
	assert.True(t, errors.Is(err, broker.ErrOrderRejected))
}

func TestPlaceOrderRejected(t *testing.T) {
	x := New(bars(1))
	x.RejectAll = true
	_, err := x.PlaceOrder(context.Background(), broker.Order{Symbol: "X", Side: market.Short, Qty: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrOrderRejected)
	assert.Empty(t, x.Orders())
}

func TestPrecision(t *testing.T) {
	x := New(nil)
	x.QtyStep = 0.01
	x.TickSize = 0.5
	assert.Equal(t, 1.23, x.AmountToPrecision("X", 1.239))
	assert.Equal(t, 100.5, x.PriceToPrecision("X", 100.4))
	assert.Equal(t, 1.0, x.PointValue("X"))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(bars(1)).GetBars(ctx, "X", "1m", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
