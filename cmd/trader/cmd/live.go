package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/broker"
	"github.com/rustyeddy/bartrader/broker/bybit"
	"github.com/rustyeddy/bartrader/broker/paper"
	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/live"
	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/strategies"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Trade a strategy by polling an exchange",
	Long: `Live polls the exchange for the newest bar of the configured symbol
and timeframe, steps the strategy engine once per new bar and sends the
resulting orders.

With exchange "paper" the bars come from --data (or data_path) and orders
fill at the last close. With exchange "bybit" the credentials are read from
BYBIT_API_KEY and BYBIT_API_SECRET.

Prometheus metrics are served on live.metrics_addr.

Example:
  trader live --exchange paper --data data/BTCUSDT.csv --poll 10ms`,
	RunE: runLive,
}

var (
	liveExchange string
	liveData     string
	livePoll     time.Duration
	liveMetrics  string
	liveMainnet  bool
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVar(&liveExchange, "exchange", "", "exchange: paper or bybit (overrides exchange)")
	liveCmd.Flags().StringVarP(&liveData, "data", "d", "", "bar CSV replayed by the paper exchange")
	liveCmd.Flags().DurationVar(&livePoll, "poll", 0, "poll interval (default a third of the timeframe)")
	liveCmd.Flags().StringVar(&liveMetrics, "metrics", "", "metrics listen address, empty to use live.metrics_addr")
	liveCmd.Flags().BoolVar(&liveMainnet, "mainnet", false, "trade on Bybit mainnet instead of testnet")
}

func runLive(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	if f.Changed("exchange") {
		cfg.Exchange = liveExchange
	}
	if f.Changed("data") {
		cfg.DataPath = liveData
	}
	if f.Changed("poll") {
		cfg.Live.PollInterval.Duration = livePoll
	}
	if f.Changed("metrics") {
		cfg.Live.MetricsAddr = liveMetrics
	}
	if liveMainnet {
		cfg.Testnet = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	x, err := openExchange(ctx, cancel)
	if err != nil {
		return err
	}

	strat, err := strategies.New(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return err
	}

	store := journal.OpenOrNop(ctx, cfg.Journal, logger)
	defer store.Close()

	metrics := live.NewMetrics()
	if cfg.Live.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Live.MetricsAddr); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	t, err := live.New(live.Config{
		Symbol:        cfg.Symbol,
		Timeframe:     cfg.Timeframe,
		PollInterval:  cfg.PollInterval(),
		SnapshotEvery: cfg.Live.SnapshotEvery,
		HistoryLimit:  cfg.Live.HistoryLimit,
		Lookback:      cfg.Live.Lookback,
	},
		cfg.LiveEngineOptions(cfg.Symbol, x.PointValue(cfg.Symbol)),
		strat,
		x,
		live.WithJournal(store),
		live.WithMetrics(metrics),
		live.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := t.Run(ctx); err != nil {
		return err
	}

	res := t.Engine().Result()
	fmt.Fprintf(cmd.OutOrStdout(), "stopped: equity %.2f, %d trades (%d W / %d L)\n",
		res.FinalEquity, res.Trades, res.Wins, res.Losses)
	return nil
}

// replay ends the run on the first poll after the paper bars ran out, so
// the last bar is fully processed first.
type replay struct {
	*paper.Exchange
	done context.CancelFunc
}

func (r *replay) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	if r.Exhausted() {
		logger.Info("paper bars replayed", zap.Int("bars", len(r.Bars)))
		r.done()
		return nil, context.Canceled
	}
	return r.Exchange.GetBars(ctx, symbol, timeframe, limit)
}

// openExchange builds the configured exchange.
func openExchange(ctx context.Context, cancel context.CancelFunc) (broker.Exchange, error) {
	switch strings.ToLower(cfg.Exchange) {
	case "paper":
		if cfg.DataPath == "" {
			return nil, fmt.Errorf("paper exchange needs --data or data_path")
		}
		from, to, err := cfg.Range()
		if err != nil {
			return nil, err
		}
		bars, err := market.LoadBars(cfg.DataPath, from, to)
		if err != nil {
			return nil, err
		}
		x := paper.New(bars)
		if pv := cfg.Risk.PointValue; pv > 0 {
			x.PointVal = pv
		}
		return &replay{Exchange: x, done: cancel}, nil

	case "bybit":
		if cfg.Credentials.APIKey == "" || cfg.Credentials.APISecret == "" {
			return nil, fmt.Errorf("bybit needs BYBIT_API_KEY and BYBIT_API_SECRET")
		}
		c := bybit.New(bybit.Config{
			APIKey:    cfg.Credentials.APIKey,
			APISecret: cfg.Credentials.APISecret,
			Testnet:   cfg.Testnet,
		}, logger)
		if err := c.LoadInstrument(ctx, cfg.Symbol); err != nil {
			logger.Warn("instrument precision unavailable", zap.String("symbol", cfg.Symbol), zap.Error(err))
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange)
}
