package journal

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/bartrader/market"
)

// FormatTradeOrg renders a trade as an Org-mode block. Facts go in the
// PROPERTIES drawer; the headings below are left for notes.
func FormatTradeOrg(t Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Symbol, t.Side, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QTY: %.4f\n", t.Qty)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":ENTRY_TIME: %s\n", market.FormatMillis(t.EntryTime))
	fmt.Fprintf(&b, ":EXIT_TIME: %s\n", market.FormatMillis(t.ExitTime))
	fmt.Fprintf(&b, ":FEE: %.2f\n", t.Fee)
	fmt.Fprintf(&b, ":PNL: %.2f\n", t.PnL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.CloseReason)
	if t.StopKind != "" {
		fmt.Fprintf(&b, ":STOP_KIND: %s\n", t.StopKind)
	}
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders trades separated by blank lines.
func FormatTradesOrg(trades []Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

var runOrg = template.Must(template.New("run").Funcs(template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}).Parse(RunOrgTemplate))

// WriteRunOrg renders a run summary as Org-mode.
func WriteRunOrg(w io.Writer, r Run) error {
	return runOrg.Execute(w, r)
}

const RunOrgTemplate = `* {{if eq .Mode "live"}}LIVE{{else}}BACKTEST{{end}}: {{.Strategy}} {{.Symbol}} {{if .Timeframe}}{{.Timeframe}}{{end}}
:PROPERTIES:
:RUN_ID:      {{.ID}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:TIMEFRAME:   {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_BAL:   {{printf "%.2f" .InitialCapital}}
:END_BAL:     {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .PnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
{{if .Params}}#+begin_src json
{{printf "%s" .Params}}
#+end_src{{else}}(defaults){{end}}

** Performance Summary
- Net P/L:   *{{printf "%.2f" .PnL}}*
- Return:    *{{printf "%.2f" .ReturnPct}}%*
- Win Rate:  *{{printf "%.2f" .WinRate}}%*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
`
