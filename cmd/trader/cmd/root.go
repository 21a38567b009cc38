package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/config"
	"github.com/rustyeddy/bartrader/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Bar-driven strategy backtester and live trader",
	Long: `Trader runs bar-based trading strategies over historical data or
against an exchange, with the same engine in both modes.

It provides tools for:
  - Backtesting a strategy over a CSV bar file
  - Portfolio backtests across several symbols
  - Live trading by polling an exchange (paper or Bybit)
  - Generating and validating configuration files
  - Querying the run and trade journal`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
}

var (
	cfgFile  string
	envFile  string
	logLevel string
	logDev   bool

	cfg *config.Config

	logger = zap.NewNop()
)

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with secrets")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logDev, "log-dev", false, "human readable console logs")
}

func setup(cmd *cobra.Command, args []string) error {
	l, err := logging.New(logLevel, logDev)
	if err != nil {
		return err
	}
	logger = l

	config.LoadEnv(envFile)
	if cfgFile == "" {
		cfg = config.Default()
	} else if cfg, err = config.LoadFromFile(cfgFile); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
