// Package live runs a strategy against an exchange by polling for new
// bars and stepping the same engine backtests use.
package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/broker"
	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/report"
	"github.com/rustyeddy/bartrader/sim"
	"github.com/rustyeddy/bartrader/strategies"
)

// Config is the polling setup.
type Config struct {
	Symbol    string
	Timeframe string
	// PollInterval of zero means a third of the timeframe.
	PollInterval  time.Duration
	SnapshotEvery int
	HistoryLimit  int
	Lookback      int
}

// Trader owns one engine and feeds it the newest bar on each poll. It is
// driven from a single goroutine.
type Trader struct {
	cfg      Config
	engine   *sim.Engine
	exchange broker.Exchange
	journal  journal.Store
	metrics  *Metrics
	log      *zap.Logger
	control  *report.ControlLoop

	history []market.Bar
	lastTS  int64
	seen    int
}

// Option customizes New.
type Option func(*Trader)

func WithJournal(j journal.Store) Option {
	return func(t *Trader) {
		if j != nil {
			t.journal = j
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Trader) {
		if m != nil {
			t.metrics = m
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Trader) {
		if l != nil {
			t.log = l
		}
	}
}

// New builds the trader and its engine. The engine's first day starts
// with opts.InitialCapital. A zero point value is taken from the exchange.
func New(cfg Config, opts sim.Options, s strategies.Strategy, x broker.Exchange, options ...Option) (*Trader, error) {
	if x == nil {
		return nil, errors.New("live: Exchange is required")
	}
	if cfg.Symbol == "" {
		cfg.Symbol = opts.Symbol
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = market.DefaultPollInterval(cfg.Timeframe)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 500
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = report.DefaultLookback
	}
	if cfg.SnapshotEvery <= 0 {
		cfg.SnapshotEvery = 1
	}
	opts.Symbol = cfg.Symbol
	if opts.PointValue == 0 {
		opts.PointValue = x.PointValue(cfg.Symbol)
	}

	t := &Trader{
		cfg:      cfg,
		exchange: x,
		journal:  journal.Nop{},
		log:      zap.NewNop(),
	}
	for _, o := range options {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = NewMetrics()
	}
	t.log = t.log.With(zap.String("symbol", cfg.Symbol), zap.String("exchange", x.Name()))

	e, err := sim.NewEngine(opts, s,
		sim.WithLogger(t.log),
		sim.WithExecutor(executor{t: t}),
		sim.WithHooks(sim.Hooks{
			OnSignal: func(_ market.Bar, sig market.Signal) {
				t.metrics.Signals.WithLabelValues(sig.String()).Inc()
			},
			OnBlocked: func(_ market.Bar, reason string) {
				t.metrics.Blocked.WithLabelValues(reason).Inc()
			},
			OnTrade: func(tr sim.TradeRecord) {
				result := "win"
				if tr.PnL < 0 {
					result = "loss"
				}
				t.metrics.Trades.WithLabelValues(result).Inc()
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("live: %w", err)
	}
	t.engine = e
	t.metrics.Equity.Set(e.Equity())
	t.control = report.NewControlLoop(cfg.SnapshotEvery, t.snapshot, t.emitSnapshot)
	return t, nil
}

func (t *Trader) Engine() *sim.Engine { return t.engine }

func (t *Trader) Metrics() *Metrics { return t.metrics }

// Run polls until ctx is canceled. Cancellation lets the current
// iteration finish, logs shutdown with the equity and returns nil. Only a
// broken position lifecycle ends the loop with an error.
func (t *Trader) Run(ctx context.Context) error {
	t.log.Info("live trader starting",
		zap.String("timeframe", t.cfg.Timeframe),
		zap.Duration("poll", t.cfg.PollInterval),
		zap.Float64("equity", t.engine.Equity()),
	)
	t.event(ctx, "startup", "live trader started", map[string]interface{}{
		"equity":    t.engine.Equity(),
		"timeframe": t.cfg.Timeframe,
		"strategy":  t.engine.Strategy().Name(),
	})

	for {
		if _, err := t.Poll(ctx); err != nil {
			t.event(context.Background(), "error", err.Error(), nil)
			return err
		}
		select {
		case <-ctx.Done():
			t.shutdown()
			return nil
		case <-time.After(t.cfg.PollInterval):
		}
	}
}

func (t *Trader) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	eq := t.engine.Equity()
	t.log.Info("live trader stopped", zap.Float64("equity", eq), zap.Int("trades", t.engine.Result().Trades))
	t.event(ctx, "shutdown", "live trader stopped", map[string]interface{}{"equity": eq})
}

// Poll fetches the newest bars and steps the engine when a bar with a new
// timestamp arrived. Fetch failures are logged and journaled, and the
// caller simply polls again. The returned error is fatal.
func (t *Trader) Poll(ctx context.Context) (bool, error) {
	bars, err := t.exchange.GetBars(ctx, t.cfg.Symbol, t.cfg.Timeframe, 2)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		t.log.Warn("fetch bars failed", zap.Error(err))
		t.event(ctx, "error", "fetch bars: "+err.Error(), nil)
		return false, nil
	}
	if len(bars) == 0 {
		return false, nil
	}
	b := bars[len(bars)-1]
	if t.seen > 0 && b.Timestamp == t.lastTS {
		return false, nil
	}
	t.lastTS = b.Timestamp
	t.seen++

	t.history = append(t.history, b)
	if n := len(t.history) - t.cfg.HistoryLimit; n > 0 {
		t.history = append(t.history[:0:0], t.history[n:]...)
	}

	t.log.Debug("bar", zap.Int64("ts", b.Timestamp), zap.Float64("close", b.Close))
	if err := t.engine.Step(ctx, b, false); err != nil {
		return true, fmt.Errorf("live: step: %w", err)
	}

	t.metrics.Equity.Set(t.engine.Equity())
	t.metrics.LastBar.Set(float64(b.Timestamp))
	t.control.MaybeSnapshot(t.seen - 1)
	return true, nil
}

func (t *Trader) snapshot() report.Snapshot {
	s := report.BuildSnapshot(t.history, t.engine.Equity(), t.engine.Result(),
		t.engine.Strategy().Name(), t.engine.Options().Params, t.cfg.Lookback)
	if p, ok := t.engine.Position(); ok {
		s.Position = &p
	}
	return s
}

func (t *Trader) emitSnapshot(s report.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.journal.LogSnapshot(ctx, t.cfg.Symbol, s); err != nil {
		t.log.Warn("journal snapshot failed", zap.Error(err))
	}
}

func (t *Trader) event(ctx context.Context, kind, msg string, data map[string]interface{}) {
	err := t.journal.LogEvent(ctx, journal.Event{
		Time:    time.Now().UTC(),
		Kind:    kind,
		Symbol:  t.cfg.Symbol,
		Message: msg,
		Data:    data,
	})
	if err != nil {
		t.log.Warn("journal event failed", zap.String("kind", kind), zap.Error(err))
	}
}
