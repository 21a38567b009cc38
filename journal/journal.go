// Package journal persists runs, trades, live events, orders and
// snapshots. Every backend implements Store; failures are reported to the
// caller and never reach back into engine state.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rustyeddy/bartrader/internal/id"
	"github.com/rustyeddy/bartrader/sim"
)

// ErrNotFound is returned by readers when a run does not exist.
var ErrNotFound = errors.New("journal: not found")

// Run mirrors one row of the runs table.
type Run struct {
	ID             string          `json:"id"`
	Created        time.Time       `json:"created"`
	Mode           string          `json:"mode"`
	Strategy       string          `json:"strategy"`
	Symbol         string          `json:"symbol"`
	Timeframe      string          `json:"timeframe,omitempty"`
	Dataset        string          `json:"dataset,omitempty"`
	InitialCapital float64         `json:"initial_capital"`
	FinalEquity    float64         `json:"final_equity"`
	PnL            float64         `json:"pnl"`
	Trades         int             `json:"trades"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	Params         json.RawMessage `json:"params,omitempty"`
	Diagnostics    json.RawMessage `json:"debug,omitempty"`
}

// WinRate in percent.
func (r Run) WinRate() float64 {
	if r.Trades == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Trades) * 100
}

// ReturnPct is PnL relative to the initial capital, in percent.
func (r Run) ReturnPct() float64 {
	if r.InitialCapital == 0 {
		return 0
	}
	return r.PnL / r.InitialCapital * 100
}

// NewRun fills a Run from an engine result. params is marshaled to JSON.
func NewRun(mode, strategy, timeframe string, res sim.Result, params interface{}) Run {
	r := Run{
		Created:        time.Now().UTC(),
		Mode:           mode,
		Strategy:       strategy,
		Symbol:         res.Symbol,
		Timeframe:      timeframe,
		InitialCapital: res.InitialCapital,
		FinalEquity:    res.FinalEquity,
		PnL:            res.PnL,
		Trades:         res.Trades,
		Wins:           res.Wins,
		Losses:         res.Losses,
	}
	if params != nil {
		r.Params, _ = json.Marshal(params)
	}
	r.Diagnostics, _ = json.Marshal(res.Diagnostics)
	return r
}

// Trade is a stored trade: the engine's record plus its row identity.
type Trade struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`
	sim.TradeRecord
}

// Event is a live lifecycle record such as startup, shutdown or error.
type Event struct {
	Time    time.Time              `json:"time"`
	Kind    string                 `json:"kind"`
	Symbol  string                 `json:"symbol,omitempty"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Order is one placement attempt.
type Order struct {
	Time       time.Time `json:"time"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price,omitempty"`
	ReduceOnly bool      `json:"reduce_only,omitempty"`
	ExchangeID string    `json:"exchange_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Store is the persistence collaborator.
type Store interface {
	// InsertRun stores r and returns its ID, assigning one when r.ID is empty.
	InsertRun(ctx context.Context, r Run) (string, error)
	InsertTrades(ctx context.Context, runID string, trades []sim.TradeRecord) error
	LogEvent(ctx context.Context, e Event) error
	LogOrder(ctx context.Context, o Order) error
	// LogSnapshot stores any JSON-encodable state snapshot.
	LogSnapshot(ctx context.Context, symbol string, snapshot interface{}) error
	Close() error
}

// Reader is implemented by the queryable stores.
type Reader interface {
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListTrades(ctx context.Context, runID string) ([]Trade, error)
}

func ensureRunID(r *Run) {
	if r.ID == "" {
		r.ID = id.New()
	}
	if r.Created.IsZero() {
		r.Created = time.Now().UTC()
	}
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
