package backtest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/risk"
	"github.com/rustyeddy/bartrader/sim"
	"github.com/rustyeddy/bartrader/strategies"
)

type sliceFeed struct {
	bars   []market.Bar
	i      int
	closed bool
}

func (f *sliceFeed) Next() (market.Bar, bool, error) {
	if f.i >= len(f.bars) {
		return market.Bar{}, false, nil
	}
	b := f.bars[f.i]
	f.i++
	return b, true, nil
}

func (f *sliceFeed) Close() error {
	f.closed = true
	return nil
}

type errorFeed struct{}

func (errorFeed) Next() (market.Bar, bool, error) { return market.Bar{}, false, errors.New("mock error") }
func (errorFeed) Close() error { return nil }

// buyFirst buys on the first bar and then holds.
type buyFirst struct{ n int }

func (s *buyFirst) Name() string { return "buy_first" }

func (s *buyFirst) OnBar(market.Bar, *strategies.Context) market.Signal {
	s.n++
	if s.n == 1 {
		return market.Buy
	}
	return market.None
}

var base = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func flatBars(closes ...float64) []market.Bar {
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:      c, High: c, Low: c, Close: c, Volume: 1,
		}
	}
	return out
}

func newEngine(t *testing.T, s strategies.Strategy) *sim.Engine {
	t.Helper()
	e, err := sim.NewEngine(sim.Options{
		Symbol:         "BTCUSDT",
		InitialCapital: 10_000,
		Params:         strategies.DefaultParams(),
		Limits:         risk.DefaultLimits(),
	}, s)
	require.NoError(t, err)
	return e
}

func TestRunnerValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := (&Runner{Feed: &sliceFeed{}}).Run(ctx)
	assert.Error(t, err)

	_, err = (&Runner{Engine: newEngine(t, strategies.Noop{})}).Run(ctx)
	assert.Error(t, err)

	_, err = (&Runner{Engine: newEngine(t, strategies.Noop{}), Feed: errorFeed{}}).Run(ctx)
	assert.EqualError(t, err, "mock error")
}

func TestRunnerClosesAtEnd(t *testing.T) {
	t.Parallel()
	feed := &sliceFeed{bars: flatBars(100, 100, 110)}
	r := &Runner{Engine: newEngine(t, &buyFirst{}), Feed: feed}

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, feed.closed)
	assert.Equal(t, 3, res.Bars)
	assert.Equal(t, base, res.Start)
	assert.Equal(t, base.Add(2*time.Minute), res.End)

	require.Equal(t, 1, res.Trades)
	tr := res.TradeLog[0]
	assert.Equal(t, sim.CloseExitEnd, tr.CloseReason)
	assert.Equal(t, 110.0, tr.ExitPrice)
	assert.Greater(t, tr.PnL, 0.0)
	assert.Equal(t, 1, res.Wins)
	assert.Empty(t, res.RunID)
}

func TestRunnerEmptyFeed(t *testing.T) {
	t.Parallel()
	res, err := (&Runner{Engine: newEngine(t, strategies.Noop{}), Feed: &sliceFeed{}}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Trades)
	assert.Equal(t, 10_000.0, res.FinalEquity)
	assert.True(t, res.Start.IsZero())
}

func TestRunnerPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "bt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	r := &Runner{
		Engine:    newEngine(t, &buyFirst{}),
		Feed:      &sliceFeed{bars: flatBars(100, 100, 110)},
		Journal:   j,
		Timeframe: "1m",
		Dataset:   "unit",
	}
	res, err := r.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := j.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "buy_first", run.Strategy)
	assert.Equal(t, "unit", run.Dataset)
	assert.Equal(t, 1, run.Trades)
	assert.Contains(t, string(run.Params), `"ema_period":20`)

	trades, err := j.ListTrades(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, res.TradeLog[0], trades[0].TradeRecord)
}

func TestRunnerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Runner{Engine: newEngine(t, strategies.Noop{}), Feed: &sliceFeed{bars: flatBars(1)}}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSymbols(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, market.WriteBars(&buf, flatBars(1, 2, 3)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTCUSDT.csv"), buf.Bytes(), 0o644))

	got, err := LoadSymbols(dir, []string{"BTC/USDT:USDT"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got["BTC/USDT:USDT"], 3)

	_, err = LoadSymbols(dir, []string{"ETHUSDT"}, time.Time{}, time.Time{})
	assert.Error(t, err)

	p, err := DataFile(dir, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "BTCUSDT.csv"), p)
}
