// Package backtest drives a sim.Engine over recorded bars and stores the
// outcome.
package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/sim"
)

// BarFeed yields bars one at a time and returns (ok=false, err=nil) at EOF.
type BarFeed interface {
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// Runner drives an engine forward using a feed.
type Runner struct {
	Engine *sim.Engine
	Feed   BarFeed
	// Journal is optional; failures to persist are logged, never returned.
	Journal   journal.Store
	Timeframe string
	Dataset   string
	Log       *zap.Logger
}

// Result is the engine result plus where and over what period it ran.
type Result struct {
	sim.Result
	RunID string
	Start time.Time
	End   time.Time
	Bars  int
}

// Run reads the whole feed, runs the engine over it, force-closes any
// open position and persists the run and its trades.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Engine == nil {
		return Result{}, fmt.Errorf("backtest: Engine is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	defer r.Feed.Close()

	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	var bars []market.Bar
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		b, ok, err := r.Feed.Next()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}
		bars = append(bars, b)
	}

	res, err := r.Engine.Run(ctx, bars)
	if err != nil {
		return Result{Result: res}, fmt.Errorf("backtest: %w", err)
	}

	out := Result{Result: res, Bars: len(bars)}
	out.Start, out.End = span(bars)

	if r.Journal != nil {
		run := journal.NewRun("backtest", r.Engine.Strategy().Name(), r.Timeframe, res, r.Engine.Options().Params)
		run.Dataset = r.Dataset
		out.RunID, err = r.Journal.InsertRun(ctx, run)
		if err != nil {
			log.Warn("journal run insert failed", zap.Error(err))
		} else if err := r.Journal.InsertTrades(ctx, out.RunID, res.TradeLog); err != nil {
			log.Warn("journal trade insert failed", zap.String("run_id", out.RunID), zap.Error(err))
		}
	}
	return out, nil
}

func span(bars []market.Bar) (start, end time.Time) {
	for _, b := range bars {
		if !b.HasTime() {
			continue
		}
		t := b.Time()
		if start.IsZero() || t.Before(start) {
			start = t
		}
		if end.IsZero() || t.After(end) {
			end = t
		}
	}
	return
}
