package sim

import (
	"math"

	"github.com/rustyeddy/bartrader/market"
)

// CloseReason says which path closed a trade.
type CloseReason string

const (
	CloseStop    CloseReason = "stop"
	CloseExit    CloseReason = "exit"
	CloseExitEnd CloseReason = "exit_end"
)

// StopKind classifies stop-triggered closes.
type StopKind string

const (
	StopNone       StopKind = ""
	StopTakeProfit StopKind = "tp"
	StopLoss       StopKind = "sl"
)

// TradeRecord is one completed open/close cycle. Times are milliseconds
// since the epoch, zero when the bar had none.
type TradeRecord struct {
	Symbol      string      `json:"symbol,omitempty"`
	EntryTime   int64       `json:"entry_time"`
	ExitTime    int64       `json:"exit_time"`
	Side        market.Side `json:"side"`
	EntryPrice  float64     `json:"entry_price"`
	ExitPrice   float64     `json:"exit_price"`
	Qty         float64     `json:"qty"`
	Fee         float64     `json:"fee"`
	PnL         float64     `json:"pnl"`
	Equity      float64     `json:"equity"`
	CloseReason CloseReason `json:"close_reason"`
	StopKind    StopKind    `json:"stop_kind,omitempty"`
}

// HasExitTime reports whether the record carries an exit timestamp.
func (t TradeRecord) HasExitTime() bool { return t.ExitTime != 0 }

// Fee charges rate on both the entry and exit notional. It depends only on
// magnitudes, so LONG and SHORT pay the same.
func Fee(rate, entry, exit, qty float64) float64 {
	q := math.Abs(qty)
	return rate * (math.Abs(entry)*q + math.Abs(exit)*q)
}

// classifyStop compares the exit against the entry snapshot's levels.
func classifyStop(snap EntrySnapshot, exit float64) StopKind {
	switch snap.Side {
	case market.Long:
		if exit >= snap.Take {
			return StopTakeProfit
		}
		if exit <= snap.Stop {
			return StopLoss
		}
	case market.Short:
		if exit <= snap.Take {
			return StopTakeProfit
		}
		if exit >= snap.Stop {
			return StopLoss
		}
	}
	return StopNone
}
