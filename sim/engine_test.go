package sim

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/risk"
	"github.com/rustyeddy/bartrader/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted emits a fixed signal on given bar indexes.
type scripted struct {
	at map[int]market.Signal
	i  int
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) OnBar(market.Bar, *strategies.Context) market.Signal {
	sig := s.at[s.i]
	s.i++
	return sig
}

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) // a Tuesday

func barsAt(start time.Time, step time.Duration, closes ...float64) []market.Bar {
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * step).UnixMilli(),
			Open:      c, High: c, Low: c, Close: c,
		}
	}
	return out
}

func testOptions() Options {
	p := strategies.DefaultParams()
	p.SLATRMult = 1 // 10 points
	p.TPRMult = 2
	return Options{
		Symbol:         "TEST",
		InitialCapital: 10000,
		CommissionRate: 0.0005,
		PointValue:     1,
		Params:         p,
		Limits:         risk.DefaultLimits(),
	}
}

func run(t *testing.T, opts Options, s strategies.Strategy, bars []market.Bar, eo ...EngineOption) Result {
	t.Helper()
	e, err := NewEngine(opts, s, eo...)
	require.NoError(t, err)
	res, err := e.Run(context.Background(), bars)
	require.NoError(t, err)
	return res
}

func TestNewEngineRequiresStrategy(t *testing.T) {
	_, err := NewEngine(testOptions(), nil)
	assert.Error(t, err)

	opts := testOptions()
	opts.CommissionRate = -1
	_, err = NewEngine(opts, strategies.Noop{})
	assert.Error(t, err)

	opts = testOptions()
	opts.StopMode = "vibes"
	_, err = NewEngine(opts, strategies.Noop{})
	assert.Error(t, err)
}

func TestNewEngineRejectsInvalidSections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"nan risk pct", func(o *Options) { o.Limits.RiskPerTradePct = math.NaN() }, "risk.risk_per_trade_pct must be finite"},
		{"zero limits", func(o *Options) { o.Limits = risk.Limits{} }, "risk.max_daily_loss_money must be positive"},
		{"no trades per day", func(o *Options) { o.Limits.MaxTradesPerDay = 0 }, "risk.max_trades_per_day"},
		{"infinite sl mult", func(o *Options) { o.Params.SLATRMult = math.Inf(1) }, "strategy_params.sl_atr_mult must be finite"},
		{"bad hour", func(o *Options) { o.Params.AllowedHours = []int{24} }, "allowed_hours"},
		{"several bad fields", func(o *Options) {
			o.CommissionRate = math.NaN()
			o.SlippagePoints = -1
			o.Exits.TrailATRMult = math.Inf(1)
		}, "sim: commission_rate must be finite"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := testOptions()
			tt.mutate(&opts)
			e, err := NewEngine(opts, strategies.Noop{})
			require.Error(t, err)
			assert.Nil(t, e)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFlatSeriesNoTrades(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	res := run(t, testOptions(), strategies.Noop{}, barsAt(day0, time.Minute, closes...))

	assert.Equal(t, 0, res.Trades)
	assert.Empty(t, res.TradeLog)
	assert.Equal(t, 10000.0, res.FinalEquity)
	assert.Equal(t, 0.0, res.PnL)
}

func TestEmptySeries(t *testing.T) {
	res := run(t, testOptions(), strategies.Noop{}, nil)
	assert.Equal(t, 0, res.Trades)
	assert.Equal(t, 10000.0, res.FinalEquity)
}

func TestTakeProfitStop(t *testing.T) {
	s := &scripted{at: map[int]market.Signal{0: market.Buy}}
	res := run(t, testOptions(), s, barsAt(day0, time.Minute, 100, 125, 125))

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	qty := 2.5 // 10000 * 0.25% / 10 points
	fee := 0.0005 * (100*qty + 120*qty)

	assert.Equal(t, CloseStop, tr.CloseReason)
	assert.Equal(t, StopTakeProfit, tr.StopKind)
	assert.Equal(t, market.Long, tr.Side)
	assert.Equal(t, qty, tr.Qty)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 120.0, tr.ExitPrice)
	assert.InDelta(t, fee, tr.Fee, 1e-12)
	assert.InDelta(t, (120-100)*qty-fee, tr.PnL, 1e-12)
	assert.InDelta(t, 10000+tr.PnL, tr.Equity, 1e-9)
	assert.Equal(t, day0.UnixMilli(), tr.EntryTime)
	assert.Equal(t, day0.Add(time.Minute).UnixMilli(), tr.ExitTime)

	assert.Equal(t, 1, res.Diagnostics.StopCloses)
	assert.Equal(t, 1, res.Diagnostics.TPHits)
	assert.Equal(t, 0, res.Diagnostics.SLHits)
	assert.Equal(t, 1, res.Wins)
}

func TestStopLossShort(t *testing.T) {
	s := &scripted{at: map[int]market.Signal{0: market.Sell}}
	res := run(t, testOptions(), s, barsAt(day0, time.Minute, 100, 104, 112, 112))

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, market.Short, tr.Side)
	assert.Equal(t, 110.0, tr.ExitPrice)
	assert.Equal(t, StopLoss, tr.StopKind)
	assert.Less(t, tr.PnL, 0.0)
	assert.Equal(t, 1, res.Losses)
	assert.Equal(t, 1, res.Diagnostics.SLHits)
}

func TestTradeCapBlocksSecondEntry(t *testing.T) {
	opts := testOptions()
	opts.Limits.MaxTradesPerDay = 1
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 1: market.Exit, 2: market.Buy}}
	res := run(t, opts, s, barsAt(day0, time.Minute, 100, 101, 102, 103))

	assert.Equal(t, 1, res.Diagnostics.Entries)
	assert.Equal(t, 2, res.Diagnostics.Signals)
	assert.Equal(t, 1, res.Diagnostics.BlockedRisk)
	assert.Equal(t, map[string]int{"cap_trades_day": 1}, res.Diagnostics.BlockedReasons)
	assert.Equal(t, map[string]int{"2024-01-02": 1}, res.Diagnostics.BlockedByDay)
	assert.Equal(t, 1, res.Trades)
}

func TestDayRolloverResetsCap(t *testing.T) {
	opts := testOptions()
	opts.Limits.MaxTradesPerDay = 1
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 1: market.Exit, 2: market.Buy}}
	bars := barsAt(day0.Add(22*time.Hour), time.Hour, 100, 101, 102, 103)
	// bar 2 falls on the next UTC day
	res := run(t, opts, s, bars)

	assert.Equal(t, 2, res.Diagnostics.Entries)
	assert.Equal(t, 0, res.Diagnostics.BlockedRisk)
	require.Len(t, res.TradeLog, 2)
	assert.Equal(t, CloseExitEnd, res.TradeLog[1].CloseReason)
}

func TestRolloverOncePerDay(t *testing.T) {
	opts := testOptions()
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 1: market.Exit}}
	e, err := NewEngine(opts, s)
	require.NoError(t, err)

	bars := barsAt(day0, 6*time.Hour, 100, 101, 102, 103, 104)
	ctx := context.Background()
	for i, b := range bars[:4] {
		require.NoError(t, e.Step(ctx, b, false))
		day, ok := e.Gate().Day()
		require.True(t, ok)
		if i >= 1 {
			assert.Equal(t, 1, day.TradeCount, "bar %d: same day keeps the count", i)
		}
	}
	require.NoError(t, e.Step(ctx, bars[4], false)) // next day
	day, _ := e.Gate().Day()
	assert.Equal(t, 0, day.TradeCount)
	assert.Equal(t, e.Equity(), day.StartingEquity)
}

func TestExitIsNeverBlocked(t *testing.T) {
	opts := testOptions()
	opts.Limits.MaxDailyLossMoney = 0.0001
	opts.Params.AllowedHours = []int{0}
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 2: market.Exit}}
	res := run(t, opts, s, barsAt(day0, 40*time.Minute, 100, 99, 98, 98))

	require.Len(t, res.TradeLog, 1)
	assert.Equal(t, CloseExit, res.TradeLog[0].CloseReason)
	assert.Equal(t, 1, res.Diagnostics.ExitCloses)
}

func TestTimeFilterBlocksEntries(t *testing.T) {
	opts := testOptions()
	opts.Params.AllowedWeekdays = []string{"Monday"}
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 1: market.Sell}}
	res := run(t, opts, s, barsAt(day0, time.Minute, 100, 100, 100))

	assert.Equal(t, 2, res.Diagnostics.BlockedTime)
	assert.Equal(t, 0, res.Diagnostics.Entries)
	assert.Equal(t, 0, res.Diagnostics.BlockedRisk)
}

func TestBarsWithoutTimestamps(t *testing.T) {
	opts := testOptions()
	opts.Params.AllowedHours = []int{3}
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 1: market.Exit}}
	bars := []market.Bar{{Close: 100}, {Close: 105}, {Close: 105}}
	res := run(t, opts, s, bars)

	require.Len(t, res.TradeLog, 1)
	assert.Equal(t, int64(0), res.TradeLog[0].EntryTime)
	assert.Equal(t, int64(0), res.TradeLog[0].ExitTime)
	assert.Empty(t, res.Diagnostics.BlockedByDay)
}

func TestNoEntryOnLastBar(t *testing.T) {
	s := &scripted{at: map[int]market.Signal{2: market.Buy}}
	res := run(t, testOptions(), s, barsAt(day0, time.Minute, 100, 100, 100))
	assert.Equal(t, 0, res.Diagnostics.Entries)
	assert.Equal(t, 1, res.Diagnostics.Signals)
	assert.Empty(t, res.TradeLog)
}

func TestForceCloseAtEnd(t *testing.T) {
	s := &scripted{at: map[int]market.Signal{0: market.Buy}}
	res := run(t, testOptions(), s, barsAt(day0, time.Minute, 100, 101, 102))

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, CloseExitEnd, tr.CloseReason)
	assert.Equal(t, StopNone, tr.StopKind)
	assert.Equal(t, 102.0, tr.ExitPrice)
	assert.Equal(t, day0.Add(2*time.Minute).UnixMilli(), tr.ExitTime)
	assert.Equal(t, 1, res.Diagnostics.ExitCloses)
}

func TestBreakevenUsesEntrySnapshot(t *testing.T) {
	opts := testOptions()
	opts.Exits = ExitRules{UseBreakEven: true, BreakEvenR: 1}
	s := &scripted{at: map[int]market.Signal{0: market.Buy}}
	res := run(t, opts, s, barsAt(day0, time.Minute, 100, 110, 99, 99))

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, CloseStop, tr.CloseReason)
	assert.Equal(t, 100.0, tr.ExitPrice, "filled at the breakeven stop")
	assert.Equal(t, StopNone, tr.StopKind, "classified against the entry levels")
	assert.InDelta(t, -Fee(0.0005, 100, 100, 2.5), tr.PnL, 1e-12)
}

func TestATRTrailingTightensStop(t *testing.T) {
	opts := testOptions()
	opts.Params.ATRPeriod = 2
	opts.Exits = ExitRules{UseATRTrailing: true, TrailATRMult: 1}
	s := &scripted{at: map[int]market.Signal{0: market.Buy}}
	e, err := NewEngine(opts, s)
	require.NoError(t, err)

	// every bar spans close±2 and moves at most 2, so ATR stays 4
	closes := []float64{100, 101, 103, 105, 104, 102, 100}
	wantStop := []float64{90, 97, 99, 101, 101, 101}
	ctx := context.Background()
	for i, c := range closes {
		b := market.Bar{
			Timestamp: day0.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:      c, High: c + 2, Low: c - 2, Close: c,
		}
		require.NoError(t, e.Step(ctx, b, false))
		if i < len(wantStop) {
			pos, open := e.Position()
			require.True(t, open, "bar %d", i)
			assert.InDelta(t, wantStop[i], pos.Stop, 1e-9, "stop after bar %d", i)
		}
	}

	_, open := e.Position()
	assert.False(t, open)
	res := e.Result()
	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, CloseStop, tr.CloseReason)
	assert.Equal(t, StopNone, tr.StopKind, "between the entry stop and take")
	assert.InDelta(t, 101.0, tr.ExitPrice, 1e-9)
	assert.InDelta(t, (101-100)*2.5-Fee(0.0005, 100, 101, 2.5), tr.PnL, 1e-9)
	assert.Equal(t, 1, res.Diagnostics.StopCloses)
	assert.Equal(t, 0, res.Diagnostics.SLHits)
	assert.Equal(t, 0, res.Diagnostics.TPHits)
}

func TestATRStopMode(t *testing.T) {
	opts := testOptions()
	opts.StopMode = StopATR
	opts.Params.ATRPeriod = 2
	e, err := NewEngine(opts, strategies.Noop{})
	require.NoError(t, err)

	assert.Equal(t, 10.0, e.StopDistance(), "falls back to points before ATR is ready")
	ctx := context.Background()
	for _, b := range []market.Bar{
		{Timestamp: 1, High: 130, Low: 100, Close: 115},
		{Timestamp: 2, High: 130, Low: 100, Close: 115},
	} {
		require.NoError(t, e.Step(ctx, b, false))
	}
	// ATR is 30 once two bars are in.
	assert.InDelta(t, 30.0, e.StopDistance(), 1e-9)
}

func TestCooldownBlocksAfterLoss(t *testing.T) {
	opts := testOptions()
	opts.Limits.CooldownBars = 2
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 2: market.Buy, 4: market.Buy}}
	res := run(t, opts, s, barsAt(day0, time.Minute, 100, 85, 85, 85, 85, 85, 85))

	assert.Equal(t, map[string]int{"cooldown": 1}, res.Diagnostics.BlockedReasons)
	assert.Equal(t, 2, res.Diagnostics.Entries)
}

type fakeExec struct {
	failEnter bool
	failExit  bool
	entered   []OrderIntent
	exited    []OrderIntent
}

func (f *fakeExec) Enter(_ context.Context, o OrderIntent) (float64, error) {
	if f.failEnter {
		return 0, errors.New("rejected")
	}
	f.entered = append(f.entered, o)
	return o.Qty, nil
}

func (f *fakeExec) Exit(_ context.Context, o OrderIntent) error {
	if f.failExit {
		return errors.New("rejected")
	}
	f.exited = append(f.exited, o)
	return nil
}

func TestFailedOrderStaysFlat(t *testing.T) {
	x := &fakeExec{failEnter: true}
	s := &scripted{at: map[int]market.Signal{0: market.Buy}}
	e, err := NewEngine(testOptions(), s, WithExecutor(x))
	require.NoError(t, err)

	require.NoError(t, e.Step(context.Background(), barsAt(day0, time.Minute, 100)[0], false))
	_, open := e.Position()
	assert.False(t, open)
	assert.Equal(t, 1, e.Result().Diagnostics.OrderFailures)
	assert.Equal(t, 0, e.Result().Diagnostics.Entries)
}

func TestExecutorRoundTrip(t *testing.T) {
	x := &fakeExec{}
	s := &scripted{at: map[int]market.Signal{0: market.Sell, 1: market.Exit}}
	e, err := NewEngine(testOptions(), s, WithExecutor(x))
	require.NoError(t, err)

	ctx := context.Background()
	for _, b := range barsAt(day0, time.Minute, 100, 99) {
		require.NoError(t, e.Step(ctx, b, false))
	}
	require.Len(t, x.entered, 1)
	require.Len(t, x.exited, 1)
	assert.Equal(t, market.Short, x.entered[0].Side)
	assert.Equal(t, 110.0, x.entered[0].Stop)
	assert.Equal(t, 80.0, x.entered[0].Take)
	assert.Equal(t, market.Long, x.exited[0].Side)
	assert.True(t, x.exited[0].ReduceOnly)
	assert.Equal(t, 1, e.Result().Trades)
}

func TestFailedExitKeepsPosition(t *testing.T) {
	x := &fakeExec{failExit: true}
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 1: market.Exit}}
	e, err := NewEngine(testOptions(), s, WithExecutor(x))
	require.NoError(t, err)

	ctx := context.Background()
	for _, b := range barsAt(day0, time.Minute, 100, 101) {
		require.NoError(t, e.Step(ctx, b, false))
	}
	_, open := e.Position()
	assert.True(t, open)
	assert.Equal(t, 0, e.Result().Trades)
}

func TestHooks(t *testing.T) {
	var trades []TradeRecord
	var blocked []string
	var opened int
	h := Hooks{
		OnTrade:   func(tr TradeRecord) { trades = append(trades, tr) },
		OnBlocked: func(_ market.Bar, r string) { blocked = append(blocked, r) },
		OnOpen:    func(EntrySnapshot) { opened++ },
	}
	opts := testOptions()
	opts.Limits.MaxTradesPerDay = 1
	s := &scripted{at: map[int]market.Signal{0: market.Buy, 1: market.Exit, 2: market.Buy}}
	res := run(t, opts, s, barsAt(day0, time.Minute, 100, 101, 102, 103), WithHooks(h))

	assert.Equal(t, res.TradeLog, trades)
	assert.Equal(t, []string{"cap_trades_day"}, blocked)
	assert.Equal(t, 1, opened)
}

func TestDeterministicTradeLog(t *testing.T) {
	bars := make([]market.Bar, 0, 600)
	price := 1000.0
	for i := 0; i < 600; i++ {
		// deterministic zig-zag with drift
		switch {
		case i%17 < 8:
			price += 7
		case i%17 < 14:
			price -= 9
		default:
			price += 3
		}
		bars = append(bars, market.Bar{
			Timestamp: day0.Add(time.Duration(i) * 5 * time.Minute).UnixMilli(),
			Open:      price, High: price + 4, Low: price - 4, Close: price,
		})
	}

	opts := testOptions()
	opts.Params = strategies.DefaultParams()
	opts.Params.MinEMASlopePoints = 0.5
	opts.Params.MinATRPoints = 1

	once := func() []byte {
		s, err := strategies.New("scalping", opts.Params)
		require.NoError(t, err)
		res := run(t, opts, s, bars)
		b, err := json.Marshal(res.TradeLog)
		require.NoError(t, err)
		return b
	}

	a, b := once(), once()
	assert.Equal(t, a, b)
	assert.NotEqual(t, "null", string(a))
}

func TestCloseTwiceFails(t *testing.T) {
	var p Position
	require.NoError(t, p.Open(market.Long, 1, 100, 90, 110))
	_, err := p.Close(100)
	require.NoError(t, err)
	assert.True(t, p.Flat())
	_, err = p.Close(100)
	assert.True(t, errors.Is(err, ErrPositionFlat))
}
