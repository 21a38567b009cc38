package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/indicators"
	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/risk"
	"github.com/rustyeddy/bartrader/strategies"
)

// OrderIntent describes an order the engine wants placed before it changes
// position state.
type OrderIntent struct {
	Symbol     string
	Side       market.Side // side of the order, not of the position
	Qty        float64
	Price      float64
	Stop       float64
	Take       float64
	ReduceOnly bool
}

// Executor places orders for a live engine. Enter returns the quantity
// actually executed. A returned error leaves the position untouched.
type Executor interface {
	Enter(ctx context.Context, o OrderIntent) (float64, error)
	Exit(ctx context.Context, o OrderIntent) error
}

// Hooks are optional callbacks fired as the engine works.
type Hooks struct {
	OnSignal  func(b market.Bar, s market.Signal)
	OnBlocked func(b market.Bar, reason string)
	OnOpen    func(snap EntrySnapshot)
	OnTrade   func(t TradeRecord)
}

// Engine is the bar loop for one symbol. Backtests drive it with Run;
// live trading calls Step for each new bar. It owns its position, day
// state, equity and trade log and is not safe for concurrent use.
type Engine struct {
	opts     Options
	strategy strategies.Strategy
	gate     *risk.Gate
	log      *zap.Logger
	exec     Executor
	hooks    Hooks

	filter strategies.TimeFilter
	atr    *indicators.StreamingATR

	pos     Position
	open    *EntrySnapshot
	sctx    strategies.Context
	equity  float64
	day     string
	lastBar *market.Bar

	res  Result
	diag Diagnostics
}

// EngineOption customizes NewEngine.
type EngineOption func(*Engine)

func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithExecutor routes entries and signal exits through x before the
// position changes.
func WithExecutor(x Executor) EngineOption { return func(e *Engine) { e.exec = x } }

func WithHooks(h Hooks) EngineOption { return func(e *Engine) { e.hooks = h } }

// NewEngine builds an engine and starts its first trading day with the
// initial capital.
func NewEngine(opts Options, s strategies.Strategy, options ...EngineOption) (*Engine, error) {
	if s == nil {
		return nil, errors.New("sim: Strategy is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.PointValue == 0 {
		opts.PointValue = 1
	}
	if opts.StopMode == "" {
		opts.StopMode = StopPoints
	}
	atrPeriod := opts.Params.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = strategies.DefaultParams().ATRPeriod
	}

	e := &Engine{
		opts:     opts,
		strategy: s,
		log:      zap.NewNop(),
		filter:   opts.Params.TimeFilter(),
		atr:      indicators.NewATR(atrPeriod),
		equity:   opts.InitialCapital,
		diag:     newDiagnostics(),
	}
	for _, o := range options {
		o(e)
	}
	e.log = e.log.With(zap.String("symbol", opts.Symbol), zap.String("strategy", s.Name()))
	e.gate = risk.NewGate(opts.Limits, e.log)
	e.gate.StartDay(e.equity)
	e.res = Result{Symbol: opts.Symbol, InitialCapital: opts.InitialCapital}
	return e, nil
}

// Run drives every bar in order, force-closes any position left on the
// last bar and returns the result. An empty series yields an empty result.
func (e *Engine) Run(ctx context.Context, bars []market.Bar) (Result, error) {
	for i, b := range bars {
		if err := e.Step(ctx, b, i == len(bars)-1); err != nil {
			return e.Result(), err
		}
	}
	if err := e.Finish(); err != nil {
		return e.Result(), err
	}
	e.log.Info("run finished",
		zap.Float64("pnl", e.res.PnL),
		zap.Int("trades", e.res.Trades),
		zap.Int("wins", e.res.Wins),
		zap.Int("losses", e.res.Losses),
		zap.Int("signals", e.diag.Signals),
		zap.Int("entries", e.diag.Entries),
		zap.Int("blocked_risk", e.diag.BlockedRisk),
		zap.Int("blocked_time", e.diag.BlockedTime),
		zap.Int("stop_closes", e.diag.StopCloses),
		zap.Int("exit_closes", e.diag.ExitCloses),
		zap.Int("tp_hits", e.diag.TPHits),
		zap.Int("sl_hits", e.diag.SLHits),
	)
	return e.Result(), nil
}

// Step processes one bar: day rollover, stops, strategy, entry gating,
// exits and exit management, in that order. isLast suppresses entries.
func (e *Engine) Step(ctx context.Context, b market.Bar, isLast bool) error {
	bar := b
	e.lastBar = &bar
	price := b.Close
	day, hasDay := b.Day()

	if hasDay && day != e.day {
		e.gate.EndDay()
		e.gate.StartDay(e.equity)
		e.day = day
	}
	e.gate.OnBar()
	e.atr.Update(b)

	if !e.pos.Flat() {
		snap := e.entrySnapshot(b.Timestamp)
		fill, hit, err := e.pos.CheckStops(price)
		if err != nil {
			return err
		}
		if hit {
			e.settle(fill.PnL, snap, fill.Price, b, CloseStop)
			e.open = nil
			e.sctx.SetPosition(market.Flat)
			e.diag.StopCloses++
			return nil
		}
	}

	sig := e.strategy.OnBar(b, &e.sctx)
	if e.hooks.OnSignal != nil && sig != market.None {
		e.hooks.OnSignal(b, sig)
	}

	switch {
	case sig.IsEntry():
		e.diag.Signals++
		if !e.pos.Flat() {
			break
		}
		if !e.filter.Allows(b.Time()) {
			e.diag.BlockedTime++
			e.blocked(b, "blocked_time")
			return nil
		}
		if d := e.gate.Check(); !d.Allowed() {
			e.diag.BlockedRisk++
			e.diag.BlockedReasons[d.Reason()]++
			if hasDay {
				e.diag.BlockedByDay[day]++
			}
			e.blocked(b, d.Reason())
			return nil
		}
		if isLast {
			return nil
		}
		if err := e.enter(ctx, sig.Side(), b); err != nil {
			return err
		}

	case sig == market.Exit && !e.pos.Flat():
		if err := e.exit(ctx, b, CloseExit); err != nil {
			return err
		}
	}

	return e.manageExits(price)
}

// Finish force-closes an open position at the last bar's close and ends
// the active day. Live trading does not call it.
func (e *Engine) Finish() error {
	if !e.pos.Flat() && e.lastBar != nil {
		b := *e.lastBar
		snap := e.entrySnapshot(b.Timestamp)
		pnl, err := e.pos.Close(b.Close)
		if err != nil {
			return err
		}
		e.settle(pnl, snap, b.Close, b, CloseExitEnd)
		e.open = nil
		e.sctx.SetPosition(market.Flat)
		e.diag.ExitCloses++
	}
	e.gate.EndDay()
	return nil
}

func (e *Engine) blocked(b market.Bar, reason string) {
	e.log.Debug("entry blocked", zap.String("reason", reason), zap.Int64("ts", b.Timestamp))
	if e.hooks.OnBlocked != nil {
		e.hooks.OnBlocked(b, reason)
	}
}

// StopDistance is the stop distance in points for the configured mode.
func (e *Engine) StopDistance() float64 {
	mult := e.opts.Params.SLATRMult
	if e.opts.StopMode == StopATR && e.atr.Ready() {
		return math.Max(1, mult*e.atr.Value())
	}
	return math.Max(1, mult*10)
}

func (e *Engine) enter(ctx context.Context, side market.Side, b market.Bar) error {
	price := b.Close
	stopDist := e.StopDistance()
	takeDist := e.opts.Params.TPRMult * stopDist
	qty := e.gate.SizeFromRisk(price, stopDist, e.equity, e.opts.PointValue)

	dir := float64(side.Dir())
	entry := price + dir*e.opts.SlippagePoints
	stop := entry - dir*stopDist
	take := entry + dir*takeDist

	if e.exec != nil {
		filled, err := e.exec.Enter(ctx, OrderIntent{
			Symbol: e.opts.Symbol,
			Side:   side,
			Qty:    qty,
			Price:  entry,
			Stop:   stop,
			Take:   take,
		})
		if err != nil {
			e.diag.OrderFailures++
			e.log.Warn("entry order failed, staying flat", zap.Stringer("side", side), zap.Error(err))
			return nil
		}
		qty = filled
	}

	if err := e.pos.Open(side, qty, entry, stop, take); err != nil {
		return err
	}
	snap := e.pos.Snapshot(b.Timestamp)
	e.open = &snap
	e.sctx.SetPosition(side)
	e.diag.Entries++
	e.log.Debug("open",
		zap.Stringer("side", side),
		zap.Float64("qty", qty),
		zap.Float64("entry", entry),
		zap.Float64("sl", stop),
		zap.Float64("tp", take),
	)
	if e.hooks.OnOpen != nil {
		e.hooks.OnOpen(snap)
	}
	return nil
}

func (e *Engine) exit(ctx context.Context, b market.Bar, reason CloseReason) error {
	snap := e.entrySnapshot(b.Timestamp)
	if e.exec != nil {
		st := e.pos.State()
		err := e.exec.Exit(ctx, OrderIntent{
			Symbol:     e.opts.Symbol,
			Side:       -st.Side,
			Qty:        st.Qty,
			Price:      b.Close,
			ReduceOnly: true,
		})
		if err != nil {
			e.diag.OrderFailures++
			e.log.Warn("exit order failed, position kept", zap.Error(err))
			return nil
		}
	}
	pnl, err := e.pos.Close(b.Close)
	if err != nil {
		return err
	}
	e.settle(pnl, snap, b.Close, b, reason)
	e.open = nil
	e.sctx.SetPosition(market.Flat)
	e.diag.ExitCloses++
	return nil
}

func (e *Engine) manageExits(price float64) error {
	if e.pos.Flat() {
		return nil
	}
	rules := e.opts.Exits
	if rules.UseBreakEven {
		snap := e.entrySnapshot(0)
		r := math.Abs(snap.Entry - snap.Stop)
		if r > 0 && math.Abs(price-snap.Entry) >= rules.BreakEvenR*r {
			if err := e.pos.MoveToBreakeven(price); err != nil {
				return err
			}
		}
	}
	if rules.UseATRTrailing && e.atr.Ready() {
		if err := e.pos.TrailStop(price, e.atr.Value()*rules.TrailATRMult); err != nil {
			return err
		}
	}
	return nil
}

// entrySnapshot returns the snapshot captured at open, or the live fields
// when none was captured.
func (e *Engine) entrySnapshot(ts int64) EntrySnapshot {
	if e.open != nil {
		return *e.open
	}
	return e.pos.Snapshot(ts)
}

// settle is the only place fees are charged and equity moves.
func (e *Engine) settle(pnl float64, snap EntrySnapshot, exit float64, b market.Bar, reason CloseReason) {
	fee := Fee(e.opts.CommissionRate, snap.Entry, exit, snap.Qty)
	net := pnl - fee

	e.equity += net
	e.res.PnL += net
	e.res.Trades++
	if net >= 0 {
		e.res.Wins++
	} else {
		e.res.Losses++
	}
	e.gate.RegisterTrade(net)

	kind := StopNone
	if reason == CloseStop {
		kind = classifyStop(snap, exit)
		switch kind {
		case StopTakeProfit:
			e.diag.TPHits++
		case StopLoss:
			e.diag.SLHits++
		}
	}

	rec := TradeRecord{
		Symbol:      e.opts.Symbol,
		EntryTime:   snap.Timestamp,
		ExitTime:    b.Timestamp,
		Side:        snap.Side,
		EntryPrice:  snap.Entry,
		ExitPrice:   exit,
		Qty:         snap.Qty,
		Fee:         fee,
		PnL:         net,
		Equity:      e.equity,
		CloseReason: reason,
		StopKind:    kind,
	}
	e.res.TradeLog = append(e.res.TradeLog, rec)

	e.log.Info("trade",
		zap.Int("n", e.res.Trades),
		zap.Stringer("side", snap.Side),
		zap.Float64("entry", snap.Entry),
		zap.Float64("exit", exit),
		zap.Float64("qty", snap.Qty),
		zap.Float64("fee", fee),
		zap.Float64("pnl", net),
		zap.Float64("equity", e.equity),
		zap.String("close", string(reason)),
		zap.String("stop", string(kind)),
	)
	if e.hooks.OnTrade != nil {
		e.hooks.OnTrade(rec)
	}
}

// Equity is the running equity after all settled trades.
func (e *Engine) Equity() float64 { return e.equity }

// Position returns the open position, if any.
func (e *Engine) Position() (PositionState, bool) {
	if e.pos.Flat() {
		return PositionState{}, false
	}
	return e.pos.State(), true
}

// Gate exposes the risk gate for reporting.
func (e *Engine) Gate() *risk.Gate { return e.gate }

func (e *Engine) Strategy() strategies.Strategy { return e.strategy }

func (e *Engine) Options() Options { return e.opts }

// Result returns a copy of the result so far.
func (e *Engine) Result() Result {
	r := e.res
	r.FinalEquity = e.equity
	r.Diagnostics = e.diag.clone()
	r.TradeLog = append([]TradeRecord(nil), e.res.TradeLog...)
	return r
}

func (e *Engine) String() string {
	return fmt.Sprintf("Engine(%s, %s, equity=%.2f)", e.opts.Symbol, e.strategy.Name(), e.equity)
}
