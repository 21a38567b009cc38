// Package sim runs a strategy bar by bar: it owns the single open position
// per symbol, gates entries through the risk gate, settles fees and PnL,
// and records every closed trade.
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/bartrader/market"
)

var (
	// ErrPositionOpen is returned when opening over an existing position.
	ErrPositionOpen = errors.New("sim: position already open")
	// ErrPositionFlat is returned when closing or checking a flat position.
	ErrPositionFlat = errors.New("sim: no open position")
)

// PositionState is a read-only view of a position.
type PositionState struct {
	Side  market.Side `json:"side"`
	Qty   float64     `json:"qty"`
	Entry float64     `json:"entry"`
	Stop  float64     `json:"stop"`
	Take  float64     `json:"take"`
}

// Position is the lifecycle of one symbol's position: Flat or Open. The
// zero value is flat.
type Position struct {
	s PositionState
}

func (p *Position) Flat() bool { return p.s.Side == market.Flat || p.s.Qty <= 0 }

func (p *Position) State() PositionState { return p.s }

// Open moves Flat -> Open.
func (p *Position) Open(side market.Side, qty, entry, stop, take float64) error {
	if !p.Flat() {
		return fmt.Errorf("open %s: %w", side, ErrPositionOpen)
	}
	if side == market.Flat {
		return fmt.Errorf("open: side must be LONG or SHORT")
	}
	if !(qty > 0) || math.IsInf(qty, 0) {
		return fmt.Errorf("open %s: invalid qty %v", side, qty)
	}
	p.s = PositionState{Side: side, Qty: qty, Entry: entry, Stop: stop, Take: take}
	return nil
}

// PnL is the gross result of closing at price.
func (s PositionState) PnL(price float64) float64 {
	if s.Side == market.Long {
		return (price - s.Entry) * s.Qty
	}
	return (s.Entry - price) * s.Qty
}

// Close moves Open -> Flat at price and returns the gross PnL.
func (p *Position) Close(price float64) (float64, error) {
	if p.Flat() {
		return 0, fmt.Errorf("close: %w", ErrPositionFlat)
	}
	pnl := p.s.PnL(price)
	p.s = PositionState{}
	return pnl, nil
}

// Fill is the result of a triggered stop or take.
type Fill struct {
	Price float64
	PnL   float64
}

// CheckStops closes the position when price has crossed the stop or the
// take. The fill is at the crossed level. If a single price crosses both,
// the stop wins.
func (p *Position) CheckStops(price float64) (Fill, bool, error) {
	if p.Flat() {
		return Fill{}, false, fmt.Errorf("check stops: %w", ErrPositionFlat)
	}
	level, hit := p.s.crossed(price)
	if !hit {
		return Fill{}, false, nil
	}
	pnl, err := p.Close(level)
	if err != nil {
		return Fill{}, false, err
	}
	return Fill{Price: level, PnL: pnl}, true, nil
}

func (s PositionState) crossed(price float64) (float64, bool) {
	switch s.Side {
	case market.Long:
		if price <= s.Stop {
			return s.Stop, true
		}
		if price >= s.Take {
			return s.Take, true
		}
	case market.Short:
		if price >= s.Stop {
			return s.Stop, true
		}
		if price <= s.Take {
			return s.Take, true
		}
	}
	return 0, false
}

// MoveToBreakeven pulls the stop to entry once price is beyond entry. It
// never loosens the stop.
func (p *Position) MoveToBreakeven(price float64) error {
	if p.Flat() {
		return fmt.Errorf("breakeven: %w", ErrPositionFlat)
	}
	switch p.s.Side {
	case market.Long:
		if price > p.s.Entry {
			p.s.Stop = math.Max(p.s.Stop, p.s.Entry)
		}
	case market.Short:
		if price < p.s.Entry {
			p.s.Stop = math.Min(p.s.Stop, p.s.Entry)
		}
	}
	return nil
}

// TrailStop keeps the stop within distance of price, tightening only.
func (p *Position) TrailStop(price, distance float64) error {
	if p.Flat() {
		return fmt.Errorf("trail: %w", ErrPositionFlat)
	}
	if !(distance > 0) {
		return nil
	}
	switch p.s.Side {
	case market.Long:
		p.s.Stop = math.Max(p.s.Stop, price-distance)
	case market.Short:
		p.s.Stop = math.Min(p.s.Stop, price+distance)
	}
	return nil
}

// EntrySnapshot is a copy of the position taken when it opened.
type EntrySnapshot struct {
	Side      market.Side `json:"side"`
	Entry     float64     `json:"entry"`
	Qty       float64     `json:"qty"`
	Stop      float64     `json:"sl"`
	Take      float64     `json:"tp"`
	Timestamp int64       `json:"ts"`
}

// Snapshot copies the live fields, stamped with ts.
func (p *Position) Snapshot(ts int64) EntrySnapshot {
	return EntrySnapshot{
		Side:      p.s.Side,
		Entry:     p.s.Entry,
		Qty:       p.s.Qty,
		Stop:      p.s.Stop,
		Take:      p.s.Take,
		Timestamp: ts,
	}
}
