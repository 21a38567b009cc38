package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bartrader/backtest"
	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/report"
	"github.com/rustyeddy/bartrader/sim"
	"github.com/rustyeddy/bartrader/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest a strategy over a CSV bar file",
	Long: `Backtest runs the configured strategy over one symbol's bars.

The bar file has columns ts,open,high,low,close,volume where ts is epoch
milliseconds or RFC3339. Files ending in .xz are decompressed on the fly.

Example:
  trader backtest --data data/BTCUSDT.csv --strategy trend_following --from 2024-01-01`,
	RunE: runBacktest,
}

var (
	btData     string
	btSymbol   string
	btStrategy string
	btCapital  float64
	btFrom     string
	btTo       string
	btTrades   bool
	btOrg      string
	btPlain    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btData, "data", "d", "", "path to bar CSV (overrides data_path)")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "s", "", "symbol name (overrides symbol)")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "", "strategy name: "+fmt.Sprint(strategies.Names()))
	backtestCmd.Flags().Float64VarP(&btCapital, "capital", "b", 0, "initial capital (overrides initial_capital)")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first bar time, inclusive (RFC3339 or YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "end time, exclusive (RFC3339 or YYYY-MM-DD)")
	backtestCmd.Flags().BoolVar(&btTrades, "trades", false, "print every trade")
	backtestCmd.Flags().StringVar(&btOrg, "org", "", "write an Org-mode run summary to this path")
	backtestCmd.Flags().BoolVar(&btPlain, "plain", false, "plain text summary without styling")
}

// applyOverrides copies flags the user set onto the loaded config.
func applyOverrides(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("data") {
		cfg.DataPath = btData
	}
	if f.Changed("symbol") {
		cfg.Symbol = btSymbol
	}
	if f.Changed("strategy") {
		cfg.Strategy = btStrategy
	}
	if f.Changed("capital") {
		cfg.InitialCapital = btCapital
	}
	if f.Changed("from") {
		cfg.Start = btFrom
	}
	if f.Changed("to") {
		cfg.End = btTo
	}
	return cfg.Validate()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd); err != nil {
		return err
	}
	if cfg.DataPath == "" {
		return fmt.Errorf("no bar data: set --data or data_path")
	}
	from, to, err := cfg.Range()
	if err != nil {
		return err
	}

	strat, err := strategies.New(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return err
	}
	engine, err := sim.NewEngine(cfg.EngineOptions(cfg.Symbol, 0), strat, sim.WithLogger(logger))
	if err != nil {
		return err
	}
	feed, err := market.NewCSVBarFeed(cfg.DataPath, from, to)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store := journal.OpenOrNop(ctx, cfg.Journal, logger)
	defer store.Close()

	runner := &backtest.Runner{
		Engine:    engine,
		Feed:      feed,
		Journal:   store,
		Timeframe: cfg.Timeframe,
		Dataset:   cfg.DataPath,
		Log:       logger,
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	h := report.Header{
		RunID:     res.RunID,
		Strategy:  strat.Name(),
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		Dataset:   cfg.DataPath,
	}
	out := cmd.OutOrStdout()
	if btPlain {
		report.PrintResult(out, h, res.Result)
	} else {
		fmt.Fprintln(out, renderResult(h, res.Result))
	}
	if btTrades {
		report.PrintTrades(out, res.TradeLog)
	}

	if btOrg != "" {
		run := journal.NewRun("backtest", strat.Name(), cfg.Timeframe, res.Result, cfg.StrategyParams)
		run.ID, run.Dataset = res.RunID, cfg.DataPath
		f, err := os.Create(btOrg)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := journal.WriteRunOrg(f, run); err != nil {
			return err
		}
	}
	return nil
}
