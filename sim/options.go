package sim

import (
	"fmt"
	"math"

	"github.com/rustyeddy/bartrader/risk"
	"github.com/rustyeddy/bartrader/strategies"
)

// StopMode picks how the stop distance is derived at entry.
type StopMode string

const (
	// StopPoints uses max(1, sl_atr_mult*10) points.
	StopPoints StopMode = "points"
	// StopATR uses max(1, sl_atr_mult*ATR) with ATR from the engine's own
	// bar history, falling back to StopPoints until ATR is available.
	StopATR StopMode = "atr"
)

func (m StopMode) Valid() bool { return m == "" || m == StopPoints || m == StopATR }

// ExitRules are the optional exit management toggles.
type ExitRules struct {
	UseBreakEven   bool    `yaml:"use_break_even" json:"use_break_even"`
	BreakEvenR     float64 `yaml:"break_even_r" json:"break_even_r"`
	UseATRTrailing bool    `yaml:"use_atr_trailing" json:"use_atr_trailing"`
	TrailATRMult   float64 `yaml:"trail_atr_mult" json:"trail_atr_mult"`
}

// Options configures one engine instance.
type Options struct {
	Symbol         string
	InitialCapital float64
	CommissionRate float64
	PointValue     float64
	SlippagePoints float64
	StopMode       StopMode

	Params strategies.Params
	Limits risk.Limits
	Exits  ExitRules
}

// validate rejects invalid numbers in every section, so a bad value fails
// here rather than mid-run.
func (o Options) validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"initial_capital", o.InitialCapital},
		{"commission_rate", o.CommissionRate},
		{"point_value", o.PointValue},
		{"slippage_points", o.SlippagePoints},
		{"break_even_r", o.Exits.BreakEvenR},
		{"trail_atr_mult", o.Exits.TrailATRMult},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("sim: %s must be finite", f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("sim: %s must be non-negative", f.name)
		}
	}
	if !o.StopMode.Valid() {
		return fmt.Errorf("sim: unknown stop mode %q", o.StopMode)
	}
	if err := o.Limits.Validate(); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	if err := o.Params.Validate(); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	return nil
}
