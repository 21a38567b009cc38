package risk

import (
	"math"
	"strconv"

	"go.uber.org/zap"
)

// MinQty is the smallest size SizeFromRisk returns.
const MinQty = 0.01

// Gate tracks the active trading day and admits or rejects new entries.
// It is owned by a single engine and is not safe for concurrent use.
type Gate struct {
	limits Limits
	log    *zap.Logger

	day *DayState

	bar           int
	cooldownUntil int
}

func NewGate(l Limits, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{limits: l, log: log, cooldownUntil: -1}
}

func (g *Gate) Limits() Limits { return g.limits }

// StartDay replaces the day state with a fresh one.
func (g *Gate) StartDay(equity float64) {
	g.day = &DayState{StartingEquity: equity}
	g.log.Info("risk: start of day", zap.Float64("equity", equity))
}

// EndDay finalizes the active day. It is safe to call with no active day
// and more than once.
func (g *Gate) EndDay() {
	if g.day == nil {
		return
	}
	g.log.Debug("risk: end of day",
		zap.Int("trades", g.day.TradeCount),
		zap.Float64("loss", g.day.CumulativeLoss),
		zap.Bool("closed", g.day.Closed),
	)
}

// Day returns a copy of the active day state.
func (g *Gate) Day() (DayState, bool) {
	if g.day == nil {
		return DayState{}, false
	}
	return *g.day, true
}

// OnBar advances the bar clock used by the cooldown.
func (g *Gate) OnBar() { g.bar++ }

// Check reports whether a new entry is allowed. When several conditions
// hold the cooldown wins, then the loss limit, then the trade cap.
func (g *Gate) Check() Decision {
	if g.day == nil {
		return BlockedNoDay
	}
	d := Allowed
	if g.day.TradeCount >= g.limits.MaxTradesPerDay {
		d = BlockedByTradeCap
	}
	if g.day.Closed || g.day.CumulativeLoss >= g.limits.MaxDailyLossMoney {
		d = BlockedByDailyLoss
	}
	if g.limits.CooldownBars > 0 && g.bar <= g.cooldownUntil {
		d = BlockedByCooldown
	}
	return d
}

func (g *Gate) CanTrade() bool { return g.Check().Allowed() }

// RegisterTrade books a settled trade's net result against the day.
func (g *Gate) RegisterTrade(net float64) {
	if g.day == nil {
		return
	}
	g.day.TradeCount++
	if net < 0 {
		g.day.CumulativeLoss += math.Abs(net)
		if g.limits.CooldownBars > 0 {
			g.cooldownUntil = g.bar + g.limits.CooldownBars
		}
	}
	if !g.day.Closed && g.day.CumulativeLoss >= g.limits.MaxDailyLossMoney {
		g.day.Closed = true
		g.log.Warn("risk: daily loss limit reached, day closed",
			zap.Float64("loss", g.day.CumulativeLoss),
			zap.Float64("limit", g.limits.MaxDailyLossMoney),
		)
	}
}

// SizeFromRisk converts the per-trade risk budget into a quantity:
//
//	capital   = equity or the day's starting equity
//	riskMoney = capital * pct / 100
//	qty       = riskMoney / (stopPoints * pointValue)
//
// capped by LotPerMoney when set, then rounded to 3 decimals with a floor
// of MinQty. A non-positive stop distance returns FixedLots.
func (g *Gate) SizeFromRisk(price, stopPoints, equity, pointValue float64) float64 {
	if stopPoints <= 0 {
		return g.limits.FixedLots
	}
	capital := equity
	if !g.limits.UseEquityForRisk && g.day != nil {
		capital = g.day.StartingEquity
	}
	riskMoney := capital * g.limits.RiskPerTradePct / 100
	qty := riskMoney / (stopPoints * pointValue)
	if g.limits.LotPerMoney > 0 {
		qty = math.Min(qty, math.Max(1, capital/g.limits.LotPerMoney))
	}
	return math.Max(MinQty, Round(qty, 3))
}

// Round rounds the exact binary value of x to the given number of decimal
// places, ties to even. 0.0125 is stored slightly above the tie and rounds
// up to 0.013.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', int(places), 64), 64)
	if err != nil {
		return x
	}
	return r
}
