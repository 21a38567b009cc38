package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bartrader/sim"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, 10000.0, cfg.InitialCapital)
	assert.Equal(t, 0.0005, cfg.CommissionRate)
	assert.Equal(t, 0.25, cfg.Risk.RiskPerTradePct)
	assert.Equal(t, 2000.0, cfg.Risk.MaxDailyLossMoney)
	assert.Equal(t, 20, cfg.Risk.MaxTradesPerDay)
	assert.Equal(t, 1.0, cfg.Risk.FixedLots)
	assert.Equal(t, 20, cfg.StrategyParams.EMAPeriod)
	assert.Equal(t, 1.2, cfg.StrategyParams.KeltnerMult)
	assert.Equal(t, sim.StopPoints, cfg.Risk.StopMode)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no symbol", func(c *Config) { c.Symbol = "" }, "symbol is required"},
		{"symbols only", func(c *Config) { c.Symbol = ""; c.Symbols = []string{"A", "B"} }, ""},
		{"bad timeframe", func(c *Config) { c.Timeframe = "7m" }, "unknown timeframe"},
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }, "initial_capital"},
		{"negative commission", func(c *Config) { c.CommissionRate = -0.1 }, "commission_rate"},
		{"unknown strategy", func(c *Config) { c.Strategy = "martingale" }, "unknown strategy"},
		{"alias strategy", func(c *Config) { c.Strategy = "trend-following" }, ""},
		{"bad exchange", func(c *Config) { c.Exchange = "ftx" }, "exchange"},
		{"negative weight", func(c *Config) { c.Weights = map[string]float64{"A": -1} }, "weights.A"},
		{"bad start", func(c *Config) { c.Start = "yesterday" }, "bad time"},
		{"end before start", func(c *Config) { c.Start = "2024-02-01"; c.End = "2024-01-01" }, "end must be after start"},
		{"bad hour", func(c *Config) { c.StrategyParams.AllowedHours = []int{24} }, "allowed_hours"},
		{"bad weekday", func(c *Config) { c.StrategyParams.AllowedWeekdays = []string{"Funday"} }, "allowed_weekdays"},
		{"zero max loss", func(c *Config) { c.Risk.MaxDailyLossMoney = 0 }, "max_daily_loss_money"},
		{"negative slippage", func(c *Config) { c.Risk.SlippagePoints = -1 }, "slippage_points"},
		{"bad stop mode", func(c *Config) { c.Risk.StopMode = "pips" }, "stop_mode"},
		{"sqlite without path", func(c *Config) { c.Journal.Type = "sqlite" }, "db_path"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	for _, ext := range []string{".yaml", ".json"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config"+ext)

			cfg := Default()
			cfg.Symbols = []string{"BTCUSDT", "ETHUSDT"}
			cfg.Weights = map[string]float64{"BTCUSDT": 0.7, "ETHUSDT": 0.3}
			cfg.Risk.UseBreakEven = true
			cfg.Risk.BreakEvenR = 1
			cfg.Risk.CooldownBars = 3
			cfg.Live.PollInterval = Duration{20 * time.Second}
			cfg.StrategyParams.AllowedHours = []int{8, 9}
			cfg.Credentials.APISecret = "secret"
			require.NoError(t, cfg.SaveToFile(path))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), "secret")
			assert.Contains(t, string(raw), "max_daily_loss_money")
			assert.Contains(t, string(raw), "20s")

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Symbols, got.Symbols)
			assert.Equal(t, cfg.Weights, got.Weights)
			assert.Equal(t, cfg.Risk.Limits, got.Risk.Limits)
			assert.Equal(t, cfg.Risk.ExitRules, got.Risk.ExitRules)
			assert.Equal(t, 20*time.Second, got.PollInterval())
			assert.Equal(t, []int{8, 9}, got.StrategyParams.AllowedHours)
			assert.Empty(t, got.Credentials.APISecret)
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol: ETHUSDT\nrisk:\n  max_trades_per_day: 3\n  stop_mode: atr\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, 3, cfg.Risk.MaxTradesPerDay)
	assert.Equal(t, 2000.0, cfg.Risk.MaxDailyLossMoney)
	assert.Equal(t, sim.StopATR, cfg.Risk.StopMode)
	assert.Equal(t, 14, cfg.StrategyParams.ATRPeriod)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("initial_capital: -5\n"), 0o644))
	_, err = LoadFromFile(bad)
	assert.ErrorIs(t, err, ErrInvalid)

	junk := filepath.Join(dir, "junk.json")
	require.NoError(t, os.WriteFile(junk, []byte("{not json"), 0o644))
	_, err = LoadFromFile(junk)
	assert.Error(t, err)
}

func TestRangeAndHelpers(t *testing.T) {
	cfg := Default()
	cfg.Start = "2024-01-02"
	cfg.End = "2024-01-03T12:00:00Z"
	from, to, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), to)

	assert.Equal(t, []string{"BTC/USDT:USDT"}, cfg.SymbolList())
	assert.Equal(t, 20*time.Second, cfg.PollInterval())

	cfg.Timeframe = "1s"
	assert.Equal(t, time.Second, cfg.PollInterval())
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Risk.SlippagePoints = 2
	cfg.Risk.UseATRTrailing = true

	o := cfg.EngineOptions("ETHUSDT", 0)
	assert.Equal(t, "ETHUSDT", o.Symbol)
	assert.Equal(t, 1.0, o.PointValue)
	assert.Equal(t, 2.0, o.SlippagePoints)
	assert.True(t, o.Exits.UseATRTrailing)
	assert.Equal(t, sim.StopPoints, o.StopMode)
	assert.Equal(t, 5.0, cfg.EngineOptions("X", 5).PointValue)

	assert.Equal(t, sim.StopATR, cfg.LiveEngineOptions("X", 1).StopMode)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "k")
	t.Setenv("BYBIT_API_SECRET", "s")
	t.Setenv("JOURNAL_DSN", "postgres://localhost/bt")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BYBIT_API_KEY=fromfile\n"), 0o644))
	LoadEnv(envFile)

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "k", cfg.Credentials.APIKey, "set variables win over .env")
	assert.Equal(t, "s", cfg.Credentials.APISecret)
	assert.Equal(t, "postgres://localhost/bt", cfg.Journal.DSN)
	assert.Equal(t, "nats://localhost:4222", cfg.Journal.NATSURL)
}
