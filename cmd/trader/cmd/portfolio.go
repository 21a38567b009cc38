package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bartrader/backtest"
	"github.com/rustyeddy/bartrader/portfolio"
	"github.com/rustyeddy/bartrader/report"
	"github.com/rustyeddy/bartrader/strategies"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Backtest several symbols with split capital",
	Long: `Portfolio backtests every symbol independently with
initial_capital * weight and merges the trades by exit time into one
equity curve.

Bars are read from <data_dir>/<SYMBOL>.csv or <SYMBOL>.csv.xz.

Example:
  trader portfolio --dir data --symbols BTCUSDT,ETHUSDT`,
	RunE: runPortfolio,
}

var (
	pfDir     string
	pfSymbols []string
	pfJSON    bool
)

func init() {
	rootCmd.AddCommand(portfolioCmd)

	portfolioCmd.Flags().StringVar(&pfDir, "dir", "", "directory with one bar file per symbol (overrides data_dir)")
	portfolioCmd.Flags().StringSliceVar(&pfSymbols, "symbols", nil, "symbols to trade (overrides symbols)")
	portfolioCmd.Flags().BoolVar(&pfJSON, "json", false, "print the full result as JSON")
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("dir") {
		cfg.DataDir = pfDir
	}
	if len(pfSymbols) > 0 {
		cfg.Symbols = pfSymbols
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("no data directory: set --dir or data_dir")
	}
	from, to, err := cfg.Range()
	if err != nil {
		return err
	}

	symbols := cfg.SymbolList()
	bars, err := backtest.LoadSymbols(cfg.DataDir, symbols, from, to)
	if err != nil {
		return err
	}

	agg := &portfolio.Aggregator{
		Base: cfg.EngineOptions("", 0),
		Strategy: func(string) (strategies.Strategy, error) {
			return strategies.New(cfg.Strategy, cfg.StrategyParams)
		},
		Log: logger,
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := agg.Run(ctx, cfg.InitialCapital, bars, cfg.Weights)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if pfJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	report.PrintPortfolio(out, res)
	return nil
}
