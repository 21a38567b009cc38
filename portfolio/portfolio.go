// Package portfolio runs one independent engine per symbol and merges the
// results into a single equity curve.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/risk"
	"github.com/rustyeddy/bartrader/sim"
	"github.com/rustyeddy/bartrader/strategies"
)

// StrategyFactory builds a fresh strategy for one symbol.
type StrategyFactory func(symbol string) (strategies.Strategy, error)

// EquityPoint is one step of the portfolio equity curve. The first point
// has no exit time and carries the starting capital.
type EquityPoint struct {
	ExitTime int64   `json:"exit_time"`
	Equity   float64 `json:"equity_portfolio"`
}

// SymbolMetrics summarizes one symbol's trades. ProfitFactor is nil when
// the symbol had no losing trades.
type SymbolMetrics struct {
	Symbol       string   `json:"symbol"`
	Trades       int      `json:"trades"`
	NetPnL       float64  `json:"net_pnl"`
	WinRatePct   float64  `json:"win_rate_pct"`
	ProfitFactor *float64 `json:"profit_factor"`
}

// Summary is the aggregate over all symbols.
type Summary struct {
	Trades      int             `json:"trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	PnL         float64         `json:"pnl"`
	WinRatePct  float64         `json:"win_rate_pct"`
	MaxDrawdown float64         `json:"max_drawdown"`
	FinalEquity float64         `json:"final_equity"`
	PerSymbol   []SymbolMetrics `json:"per_symbol"`
}

// Result holds everything a portfolio run produced.
type Result struct {
	Capital     float64               `json:"capital"`
	Symbols     []string              `json:"symbols"`
	PerSymbol   map[string]sim.Result `json:"results"`
	Trades      []sim.TradeRecord     `json:"trades"`
	EquityCurve []EquityPoint         `json:"equity_curve"`
	Summary     Summary               `json:"summary"`
}

// Aggregator runs a portfolio backtest. Base supplies every option except
// Symbol and InitialCapital, which are set per symbol.
type Aggregator struct {
	Base        sim.Options
	Strategy    StrategyFactory
	PointValues map[string]float64
	Log         *zap.Logger
}

// Run backtests each symbol that has bars with capital*weight and merges
// the trades by exit time. Missing weights default to 1/N.
func (a *Aggregator) Run(ctx context.Context, capital float64, bars map[string][]market.Bar, weights map[string]float64) (Result, error) {
	if a.Strategy == nil {
		return Result{}, fmt.Errorf("portfolio: Strategy factory is required")
	}
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}

	symbols := make([]string, 0, len(bars))
	for s, b := range bars {
		if len(b) > 0 {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	res := Result{
		Capital:   capital,
		Symbols:   symbols,
		PerSymbol: make(map[string]sim.Result, len(symbols)),
	}
	if len(symbols) == 0 {
		res.EquityCurve = []EquityPoint{{Equity: capital}}
		res.Summary = Summary{FinalEquity: capital}
		return res, nil
	}

	n := float64(len(symbols))
	perSymbol := make(map[string][]sim.TradeRecord, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		w := 1 / n
		if weights != nil {
			if v, ok := weights[sym]; ok {
				w = v
			}
		}

		strat, err := a.Strategy(sym)
		if err != nil {
			return res, fmt.Errorf("portfolio %s: %w", sym, err)
		}
		opts := a.Base
		opts.Symbol = sym
		opts.InitialCapital = capital * w
		if pv, ok := a.PointValues[sym]; ok {
			opts.PointValue = pv
		}

		eng, err := sim.NewEngine(opts, strat, sim.WithLogger(log))
		if err != nil {
			return res, fmt.Errorf("portfolio %s: %w", sym, err)
		}
		r, err := eng.Run(ctx, bars[sym])
		if err != nil {
			return res, fmt.Errorf("portfolio %s: %w", sym, err)
		}
		res.PerSymbol[sym] = r
		perSymbol[sym] = r.TradeLog
		res.Trades = append(res.Trades, r.TradeLog...)
	}

	res.Trades = MergeByExitTime(res.Trades)
	res.EquityCurve = EquityCurve(capital, res.Trades)
	res.Summary = summarize(res.Trades, res.EquityCurve, symbols, perSymbol)
	return res, nil
}

// MergeByExitTime stable-sorts trades by exit time. Trades with no exit
// time go last and keep their relative order.
func MergeByExitTime(trades []sim.TradeRecord) []sim.TradeRecord {
	out := append([]sim.TradeRecord(nil), trades...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case !a.HasExitTime():
			return false
		case !b.HasExitTime():
			return true
		default:
			return a.ExitTime < b.ExitTime
		}
	})
	return out
}

// EquityCurve starts at capital and adds each trade's net pnl in order.
func EquityCurve(capital float64, trades []sim.TradeRecord) []EquityPoint {
	curve := make([]EquityPoint, 0, len(trades)+1)
	curve = append(curve, EquityPoint{Equity: capital})
	eq := capital
	for _, t := range trades {
		eq += t.PnL
		curve = append(curve, EquityPoint{ExitTime: t.ExitTime, Equity: eq})
	}
	return curve
}

// MaxDrawdown is the largest peak-to-trough fall of the curve in money.
func MaxDrawdown(curve []EquityPoint) float64 {
	var peak, dd float64
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		dd = math.Max(dd, peak-p.Equity)
	}
	return dd
}

func summarize(trades []sim.TradeRecord, curve []EquityPoint, symbols []string, perSymbol map[string][]sim.TradeRecord) Summary {
	s := Summary{Trades: len(trades)}
	for _, t := range trades {
		s.PnL += t.PnL
		switch {
		case t.PnL > 0:
			s.Wins++
		case t.PnL < 0:
			s.Losses++
		}
	}
	if s.Trades > 0 {
		s.WinRatePct = risk.Round(float64(s.Wins)/float64(s.Trades)*100, 2)
	}
	s.MaxDrawdown = MaxDrawdown(curve)
	s.FinalEquity = curve[len(curve)-1].Equity

	for _, sym := range symbols {
		s.PerSymbol = append(s.PerSymbol, symbolMetrics(sym, perSymbol[sym]))
	}
	return s
}

func symbolMetrics(sym string, trades []sim.TradeRecord) SymbolMetrics {
	m := SymbolMetrics{Symbol: sym, Trades: len(trades)}
	if len(trades) == 0 {
		return m
	}
	var wins int
	var gross, loss float64
	for _, t := range trades {
		m.NetPnL += t.PnL
		if t.PnL > 0 {
			wins++
			gross += t.PnL
		} else if t.PnL < 0 {
			loss -= t.PnL
		}
	}
	m.WinRatePct = risk.Round(float64(wins)/float64(len(trades))*100, 2)
	if loss > 0 {
		pf := risk.Round(gross/loss, 3)
		m.ProfitFactor = &pf
	}
	return m
}
