package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rustyeddy/bartrader/report"
	"github.com/rustyeddy/bartrader/sim"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF")).
		Width(16)

	gainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	boxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#4B5563")).
		Padding(0, 1)
)

func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if v < 0 {
		return lossStyle.Render(s)
	}
	return gainStyle.Render(s)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// renderResult is the styled form of report.PrintResult.
func renderResult(h report.Header, r sim.Result) string {
	rows := []string{
		titleStyle.Render(fmt.Sprintf("%s %s %s", h.Strategy, h.Symbol, h.Timeframe)),
	}
	if h.RunID != "" {
		rows = append(rows, row("Run", h.RunID))
	}
	if h.Dataset != "" {
		rows = append(rows, row("Dataset", h.Dataset))
	}

	ret := 0.0
	if r.InitialCapital != 0 {
		ret = r.PnL / r.InitialCapital * 100
	}
	rows = append(rows,
		row("Capital", fmt.Sprintf("%.2f", r.InitialCapital)),
		row("Final equity", money(r.FinalEquity)),
		row("PnL", money(r.PnL)),
		row("Return", money(ret)+"%"),
		row("Trades", fmt.Sprintf("%d (%d W / %d L)", r.Trades, r.Wins, r.Losses)),
		row("Win rate", fmt.Sprintf("%.1f%%", r.WinRate()*100)),
	)

	d := r.Diagnostics
	rows = append(rows,
		row("Signals", fmt.Sprintf("%d (%d entries)", d.Signals, d.Entries)),
		row("Blocked", fmt.Sprintf("%d risk / %d time", d.BlockedRisk, d.BlockedTime)),
		row("Exits", fmt.Sprintf("%d TP / %d SL / %d signal", d.TPHits, d.SLHits, d.ExitCloses)),
	)
	return boxStyle.Render(strings.Join(rows, "\n"))
}
