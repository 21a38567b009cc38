package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/portfolio"
	"github.com/rustyeddy/bartrader/sim"
)

// Header describes the run being printed.
type Header struct {
	RunID     string
	Strategy  string
	Symbol    string
	Timeframe string
	Dataset   string
}

const rule = "--------------------------------------------------"

func PrintResult(w io.Writer, h Header, r sim.Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	if h.RunID != "" {
		fmt.Fprintf(w, "Run ID:        %s\n", h.RunID)
	}
	fmt.Fprintf(w, "Strategy:      %s\n", h.Strategy)
	fmt.Fprintf(w, "Symbol:        %s\n", h.Symbol)
	fmt.Fprintf(w, "Timeframe:     %s\n", h.Timeframe)
	if h.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", h.Dataset)
	}

	if n := len(r.TradeLog); n > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Period")
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "First Entry:   %s\n", market.FormatMillis(r.TradeLog[0].EntryTime))
		fmt.Fprintf(w, "Last Exit:     %s\n", market.FormatMillis(r.TradeLog[n-1].ExitTime))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate()*100)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Start Balance: %.2f\n", r.InitialCapital)
	fmt.Fprintf(w, "End Balance:   %.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.PnL)
	if r.InitialCapital > 0 {
		fmt.Fprintf(w, "Return:        %.2f%%\n", r.PnL/r.InitialCapital*100)
	}

	d := r.Diagnostics
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Diagnostics")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Signals:       %d\n", d.Signals)
	fmt.Fprintf(w, "Entries:       %d\n", d.Entries)
	fmt.Fprintf(w, "Blocked Risk:  %d\n", d.BlockedRisk)
	fmt.Fprintf(w, "Blocked Time:  %d\n", d.BlockedTime)
	fmt.Fprintf(w, "Stop Closes:   %d (tp %d, sl %d)\n", d.StopCloses, d.TPHits, d.SLHits)
	fmt.Fprintf(w, "Exit Closes:   %d\n", d.ExitCloses)
	for _, k := range sortedKeys(d.BlockedReasons) {
		fmt.Fprintf(w, "- %s: %d\n", k, d.BlockedReasons[k])
	}

	fmt.Fprintln(w)
}

func PrintPortfolio(w io.Writer, r portfolio.Result) {
	s := r.Summary
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Portfolio Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Capital:       %.2f\n", r.Capital)
	fmt.Fprintf(w, "Final Equity:  %.2f\n", s.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", s.PnL)
	fmt.Fprintf(w, "Trades:        %d (%d wins, %d losses)\n", s.Trades, s.Wins, s.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRatePct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f\n", s.MaxDrawdown)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-14s %7s %12s %9s %8s\n", "Symbol", "Trades", "Net P/L", "Win %", "PF")
	fmt.Fprintln(w, rule)
	for _, m := range s.PerSymbol {
		pf := "-"
		if m.ProfitFactor != nil {
			pf = fmt.Sprintf("%.3f", *m.ProfitFactor)
		}
		fmt.Fprintf(w, "%-14s %7d %12.2f %9.2f %8s\n", m.Symbol, m.Trades, m.NetPnL, m.WinRatePct, pf)
	}
	fmt.Fprintln(w)
}

// PrintTrades writes one line per trade.
func PrintTrades(w io.Writer, trades []sim.TradeRecord) {
	for i, t := range trades {
		fmt.Fprintf(w, "Trade #%d: %s Side=%s Entry=%g Exit=%g Qty=%g Fee=%.4f PnL=%.2f Equity=%.2f Close=%s",
			i+1, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.Qty, t.Fee, t.PnL, t.Equity, t.CloseReason)
		if t.StopKind != sim.StopNone {
			fmt.Fprintf(w, " Stop=%s", t.StopKind)
		}
		fmt.Fprintln(w)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
