// Package risk is the per-day risk gate: it decides whether a new entry is
// allowed and how large it may be.
package risk

import (
	"fmt"
	"math"
)

// Limits configures the gate and position sizing.
type Limits struct {
	RiskPerTradePct   float64 `yaml:"risk_per_trade_pct" json:"risk_per_trade_pct"`
	MaxDailyLossMoney float64 `yaml:"max_daily_loss_money" json:"max_daily_loss_money"`
	MaxTradesPerDay   int     `yaml:"max_trades_per_day" json:"max_trades_per_day"`
	UseEquityForRisk  bool    `yaml:"use_equity_for_risk" json:"use_equity_for_risk"`
	FixedLots         float64 `yaml:"fixed_lots" json:"fixed_lots"`
	LotPerMoney       float64 `yaml:"lot_per_money" json:"lot_per_money"`

	// CooldownBars blocks entries for this many bars after a losing trade.
	CooldownBars int `yaml:"cooldown_bars" json:"cooldown_bars"`
}

func DefaultLimits() Limits {
	return Limits{
		RiskPerTradePct:   0.25,
		MaxDailyLossMoney: 2000,
		MaxTradesPerDay:   20,
		FixedLots:         1,
	}
}

func (l Limits) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"risk_per_trade_pct", l.RiskPerTradePct},
		{"max_daily_loss_money", l.MaxDailyLossMoney},
		{"fixed_lots", l.FixedLots},
		{"lot_per_money", l.LotPerMoney},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("risk.%s must be finite", f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("risk.%s must be non-negative", f.name)
		}
	}
	if l.MaxDailyLossMoney <= 0 {
		return fmt.Errorf("risk.max_daily_loss_money must be positive")
	}
	if l.MaxTradesPerDay < 1 {
		return fmt.Errorf("risk.max_trades_per_day must be at least 1")
	}
	if l.CooldownBars < 0 {
		return fmt.Errorf("risk.cooldown_bars must be non-negative")
	}
	return nil
}

// DayState is the bookkeeping for one UTC trading day.
type DayState struct {
	StartingEquity float64
	CumulativeLoss float64
	TradeCount     int
	Closed         bool
}
