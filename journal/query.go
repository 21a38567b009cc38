package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/bartrader/sim"
)

const runColumns = `run_id, created, mode, strategy, symbol, timeframe, dataset, initial_capital,
	final_equity, pnl, trades, wins, losses, params, debug`

const tradeColumns = `trade_id, run_id, symbol, side, qty, entry_price, exit_price, entry_time,
	exit_time, fee, pnl, equity, close_reason, stop_kind`

// scanner is satisfied by *sql.Row, *sql.Rows and the pgx row types.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r       Run
		created string
		params  sql.NullString
		debug   sql.NullString
	)
	err := s.Scan(&r.ID, &created, &r.Mode, &r.Strategy, &r.Symbol, &r.Timeframe, &r.Dataset,
		&r.InitialCapital, &r.FinalEquity, &r.PnL, &r.Trades, &r.Wins, &r.Losses, &params, &debug)
	if err != nil {
		return Run{}, err
	}
	r.Created, _ = time.Parse(time.RFC3339Nano, created)
	if params.Valid {
		r.Params = json.RawMessage(params.String)
	}
	if debug.Valid {
		r.Diagnostics = json.RawMessage(debug.String)
	}
	return r, nil
}

func scanTrade(s scanner) (Trade, error) {
	var (
		t            Trade
		side, reason string
		kind         string
	)
	err := s.Scan(&t.ID, &t.RunID, &t.Symbol, &side, &t.Qty, &t.EntryPrice, &t.ExitPrice,
		&t.EntryTime, &t.ExitTime, &t.Fee, &t.PnL, &t.Equity, &reason, &kind)
	if err != nil {
		return Trade{}, err
	}
	if err := t.Side.UnmarshalText([]byte(side)); err != nil {
		return Trade{}, fmt.Errorf("journal: trade %s: %w", t.ID, err)
	}
	t.CloseReason = sim.CloseReason(reason)
	t.StopKind = sim.StopKind(kind)
	return t, nil
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns the newest runs first. limit <= 0 means all.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTrades returns the trades of a run in the order they were closed.
func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]Trade, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountEvents returns how many events of kind were logged.
func (j *SQLite) CountEvents(ctx context.Context, kind string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE kind = ?`, kind).Scan(&n)
	return n, err
}
