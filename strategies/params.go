package strategies

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Params is the named parameter set every strategy is built from. Fields
// a strategy does not use are ignored.
type Params struct {
	EMAPeriod         int     `yaml:"ema_period" json:"ema_period"`
	ATRPeriod         int     `yaml:"atr_period" json:"atr_period"`
	KeltnerMult       float64 `yaml:"keltner_mult" json:"keltner_mult"`
	SLATRMult         float64 `yaml:"sl_atr_mult" json:"sl_atr_mult"`
	TPRMult           float64 `yaml:"tp_r_mult" json:"tp_r_mult"`
	BarsConfirmBreak  int     `yaml:"bars_confirm_break" json:"bars_confirm_break"`
	MinATRPoints      float64 `yaml:"min_atr_points" json:"min_atr_points"`
	MaxSpreadPoints   float64 `yaml:"max_spread_points" json:"max_spread_points"`
	FilterEMASlope    bool    `yaml:"filter_ema_slope" json:"filter_ema_slope"`
	MinEMASlopePoints float64 `yaml:"min_ema_slope_points" json:"min_ema_slope_points"`

	// AllowedHours restricts entries to these UTC hours when non-empty.
	AllowedHours []int `yaml:"allowed_hours,omitempty" json:"allowed_hours,omitempty"`
	// AllowedWeekdays restricts entries to these UTC weekdays ("Monday"...)
	// when non-empty.
	AllowedWeekdays []string `yaml:"allowed_weekdays,omitempty" json:"allowed_weekdays,omitempty"`
}

func DefaultParams() Params {
	return Params{
		EMAPeriod:         20,
		ATRPeriod:         14,
		KeltnerMult:       1.2,
		SLATRMult:         2.0,
		TPRMult:           3.0,
		BarsConfirmBreak:  2,
		MinATRPoints:      10,
		MaxSpreadPoints:   3,
		FilterEMASlope:    true,
		MinEMASlopePoints: 5,
	}
}

// Validate checks that every number is finite and non-negative and that
// the time filters name real hours and weekdays.
func (p Params) Validate() error {
	floats := map[string]float64{
		"keltner_mult":         p.KeltnerMult,
		"sl_atr_mult":          p.SLATRMult,
		"tp_r_mult":            p.TPRMult,
		"min_atr_points":       p.MinATRPoints,
		"max_spread_points":    p.MaxSpreadPoints,
		"min_ema_slope_points": p.MinEMASlopePoints,
	}
	for _, k := range []string{"keltner_mult", "sl_atr_mult", "tp_r_mult", "min_atr_points", "max_spread_points", "min_ema_slope_points"} {
		v := floats[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("strategy_params.%s must be finite", k)
		}
		if v < 0 {
			return fmt.Errorf("strategy_params.%s must be non-negative", k)
		}
	}
	if p.EMAPeriod < 0 || p.ATRPeriod < 0 || p.BarsConfirmBreak < 0 {
		return fmt.Errorf("strategy_params periods must be non-negative")
	}
	for _, h := range p.AllowedHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("strategy_params.allowed_hours: %d is not an hour", h)
		}
	}
	for _, d := range p.AllowedWeekdays {
		if _, ok := ParseWeekday(d); !ok {
			return fmt.Errorf("strategy_params.allowed_weekdays: %q is not a weekday", d)
		}
	}
	return nil
}

// ParseWeekday accepts English weekday names in any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, true
		}
	}
	return 0, false
}

// TimeFilter is the compiled form of AllowedHours and AllowedWeekdays.
type TimeFilter struct {
	hours    map[int]bool
	weekdays map[time.Weekday]bool
}

func (p Params) TimeFilter() TimeFilter {
	var f TimeFilter
	if len(p.AllowedHours) > 0 {
		f.hours = make(map[int]bool, len(p.AllowedHours))
		for _, h := range p.AllowedHours {
			f.hours[h] = true
		}
	}
	if len(p.AllowedWeekdays) > 0 {
		f.weekdays = make(map[time.Weekday]bool, len(p.AllowedWeekdays))
		for _, s := range p.AllowedWeekdays {
			if d, ok := ParseWeekday(s); ok {
				f.weekdays[d] = true
			}
		}
	}
	return f
}

// Allows reports whether an entry at t passes the filter. A zero time
// always passes.
func (f TimeFilter) Allows(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	t = t.UTC()
	if f.hours != nil && !f.hours[t.Hour()] {
		return false
	}
	if f.weekdays != nil && !f.weekdays[t.Weekday()] {
		return false
	}
	return true
}
