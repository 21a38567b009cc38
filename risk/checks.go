package risk

// Decision is the outcome of a gate check.
type Decision int

const (
	Allowed Decision = iota
	BlockedNoDay
	BlockedByTradeCap
	BlockedByDailyLoss
	BlockedByCooldown
)

// Reason is the diagnostic tag recorded for a blocked entry.
func (d Decision) Reason() string {
	switch d {
	case Allowed:
		return "ok"
	case BlockedNoDay:
		return "no_day"
	case BlockedByTradeCap:
		return "cap_trades_day"
	case BlockedByDailyLoss:
		return "daily_loss_limit"
	case BlockedByCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

func (d Decision) String() string { return d.Reason() }

func (d Decision) Allowed() bool { return d == Allowed }
