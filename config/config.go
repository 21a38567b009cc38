// Package config is the run configuration: one YAML or JSON file plus
// secrets from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/risk"
	"github.com/rustyeddy/bartrader/sim"
	"github.com/rustyeddy/bartrader/strategies"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the complete run configuration.
type Config struct {
	Symbol         string             `json:"symbol" yaml:"symbol"`
	Symbols        []string           `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Weights        map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	Timeframe      string             `json:"timeframe" yaml:"timeframe"`
	Start          string             `json:"start,omitempty" yaml:"start,omitempty"`
	End            string             `json:"end,omitempty" yaml:"end,omitempty"`
	DataPath       string             `json:"data_path,omitempty" yaml:"data_path,omitempty"`
	DataDir        string             `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	InitialCapital float64            `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate float64            `json:"commission_rate" yaml:"commission_rate"`
	Strategy       string             `json:"strategy" yaml:"strategy"`
	Exchange       string             `json:"exchange" yaml:"exchange"`
	Testnet        bool               `json:"testnet" yaml:"testnet"`

	StrategyParams strategies.Params `json:"strategy_params" yaml:"strategy_params"`
	Risk           RiskConfig        `json:"risk" yaml:"risk"`
	Journal        journal.Options   `json:"journal" yaml:"journal"`
	Live           LiveConfig        `json:"live" yaml:"live"`

	// Credentials come from the environment only and are never saved.
	Credentials Credentials `json:"-" yaml:"-"`
}

// RiskConfig is the risk section: gate limits, exit rules and fill
// settings share one flat namespace.
type RiskConfig struct {
	risk.Limits   `json:",inline" yaml:",inline"`
	sim.ExitRules `json:",inline" yaml:",inline"`

	SlippagePoints float64      `json:"slippage_points" yaml:"slippage_points"`
	StopMode       sim.StopMode `json:"stop_mode,omitempty" yaml:"stop_mode,omitempty"`
	PointValue     float64      `json:"point_value,omitempty" yaml:"point_value,omitempty"`
}

// LiveConfig configures the polling trader.
type LiveConfig struct {
	// PollInterval of zero means a third of the timeframe.
	PollInterval  Duration     `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	MetricsAddr   string       `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	SnapshotEvery int          `json:"snapshot_every" yaml:"snapshot_every"`
	HistoryLimit  int          `json:"history_limit" yaml:"history_limit"`
	Lookback      int          `json:"lookback" yaml:"lookback"`
	StopMode      sim.StopMode `json:"stop_mode,omitempty" yaml:"stop_mode,omitempty"`
}

type Credentials struct {
	APIKey    string
	APISecret string
}

// Duration reads and writes durations as strings like "20s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the defaults the strategies were tuned with.
func Default() *Config {
	return &Config{
		Symbol:         "BTC/USDT:USDT",
		Timeframe:      "1m",
		InitialCapital: 10000,
		CommissionRate: 0.0005,
		Strategy:       "trend_following",
		Exchange:       "paper",
		Testnet:        true,
		StrategyParams: strategies.DefaultParams(),
		Risk: RiskConfig{
			Limits:   risk.DefaultLimits(),
			StopMode: sim.StopPoints,
		},
		Journal: journal.Options{Type: "none"},
		Live: LiveConfig{
			MetricsAddr:   ":9090",
			SnapshotEvery: 1,
			HistoryLimit:  200,
			Lookback:      60,
			StopMode:      sim.StopATR,
		},
	}
}

// LoadFromFile reads YAML or JSON over the defaults and validates the
// result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Symbol == "" && len(c.Symbols) == 0 {
		return invalid("symbol is required")
	}
	if !market.ValidTimeframe(c.Timeframe) {
		return invalid("unknown timeframe %q", c.Timeframe)
	}
	if !finite(c.InitialCapital) || c.InitialCapital <= 0 {
		return invalid("initial_capital must be positive")
	}
	if !finite(c.CommissionRate) || c.CommissionRate < 0 {
		return invalid("commission_rate must be non-negative")
	}
	if !strategies.Known(c.Strategy) {
		return invalid("%v: %q", strategies.ErrUnknownStrategy, c.Strategy)
	}
	switch strings.ToLower(c.Exchange) {
	case "paper", "bybit":
	default:
		return invalid("exchange must be 'paper' or 'bybit'")
	}
	syms := make([]string, 0, len(c.Weights))
	for sym := range c.Weights {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		if w := c.Weights[sym]; !finite(w) || w < 0 {
			return invalid("weights.%s must be non-negative", sym)
		}
	}
	if _, _, err := c.Range(); err != nil {
		return invalid("%v", err)
	}
	if err := c.StrategyParams.Validate(); err != nil {
		return invalid("%v", err)
	}
	if err := c.Risk.Limits.Validate(); err != nil {
		return invalid("%v", err)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"slippage_points", c.Risk.SlippagePoints},
		{"point_value", c.Risk.PointValue},
		{"break_even_r", c.Risk.BreakEvenR},
		{"trail_atr_mult", c.Risk.TrailATRMult},
	} {
		if !finite(f.v) || f.v < 0 {
			return invalid("risk.%s must be non-negative", f.name)
		}
	}
	if !c.Risk.StopMode.Valid() {
		return invalid("risk.stop_mode must be 'points' or 'atr'")
	}
	if !c.Live.StopMode.Valid() {
		return invalid("live.stop_mode must be 'points' or 'atr'")
	}
	if err := c.Journal.Validate(); err != nil {
		return invalid("%v", err)
	}
	if c.Live.PollInterval.Duration < 0 {
		return invalid("live.poll_interval must be non-negative")
	}
	if c.Live.SnapshotEvery < 0 || c.Live.HistoryLimit < 0 || c.Live.Lookback < 0 {
		return invalid("live counts must be non-negative")
	}
	return nil
}

// Range parses Start and End. Both accept RFC3339 or a plain date; an
// empty value leaves that side open.
func (c *Config) Range() (from, to time.Time, err error) {
	if from, err = parseTime(c.Start); err != nil {
		return
	}
	if to, err = parseTime(c.End); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		err = fmt.Errorf("end must be after start")
	}
	return
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(market.DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q", s)
	}
	return t.UTC(), nil
}

// SymbolList is Symbols, or just Symbol when no list was given.
func (c *Config) SymbolList() []string {
	if len(c.Symbols) > 0 {
		return c.Symbols
	}
	return []string{c.Symbol}
}

// PollInterval is the configured interval or a third of the timeframe.
func (c *Config) PollInterval() time.Duration {
	if c.Live.PollInterval.Duration > 0 {
		return c.Live.PollInterval.Duration
	}
	return market.DefaultPollInterval(c.Timeframe)
}

// EngineOptions builds engine options for one symbol. A non-positive
// pointValue falls back to risk.point_value and then 1.
func (c *Config) EngineOptions(symbol string, pointValue float64) sim.Options {
	if pointValue <= 0 {
		pointValue = c.Risk.PointValue
	}
	if pointValue <= 0 {
		pointValue = 1
	}
	return sim.Options{
		Symbol:         symbol,
		InitialCapital: c.InitialCapital,
		CommissionRate: c.CommissionRate,
		PointValue:     pointValue,
		SlippagePoints: c.Risk.SlippagePoints,
		StopMode:       c.Risk.StopMode,
		Params:         c.StrategyParams,
		Limits:         c.Risk.Limits,
		Exits:          c.Risk.ExitRules,
	}
}

// LiveEngineOptions is EngineOptions with the live stop mode.
func (c *Config) LiveEngineOptions(symbol string, pointValue float64) sim.Options {
	o := c.EngineOptions(symbol, pointValue)
	if c.Live.StopMode != "" {
		o.StopMode = c.Live.StopMode
	}
	return o
}
