package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/bartrader/internal/id"
	"github.com/rustyeddy/bartrader/sim"
)

type SQLite struct {
	db *sql.DB
}

var (
	_ Store  = (*SQLite)(nil)
	_ Reader = (*SQLite)(nil)
)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) InsertRun(ctx context.Context, r Run) (string, error) {
	ensureRunID(&r)
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, mode, strategy, symbol, timeframe, dataset, initial_capital,
		 final_equity, pnl, trades, wins, losses, params, debug)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Created.UTC().Format(time.RFC3339Nano), r.Mode, r.Strategy, r.Symbol,
		r.Timeframe, r.Dataset, r.InitialCapital, r.FinalEquity, r.PnL,
		r.Trades, r.Wins, r.Losses, nullJSON(r.Params), nullJSON(r.Diagnostics),
	)
	if err != nil {
		return "", fmt.Errorf("journal: insert run: %w", err)
	}
	return r.ID, nil
}

func (j *SQLite) InsertTrades(ctx context.Context, runID string, trades []sim.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(trade_id, run_id, seq, symbol, side, qty, entry_price, exit_price, entry_time,
		 exit_time, fee, pnl, equity, close_reason, stop_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			id.New(), runID, i, t.Symbol, t.Side.String(), t.Qty, t.EntryPrice, t.ExitPrice,
			t.EntryTime, t.ExitTime, t.Fee, t.PnL, t.Equity, string(t.CloseReason), string(t.StopKind),
		); err != nil {
			return fmt.Errorf("journal: insert trade %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (j *SQLite) LogEvent(ctx context.Context, e Event) error {
	var data interface{}
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return err
		}
		data = string(b)
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (time, kind, symbol, message, data) VALUES (?, ?, ?, ?, ?)`,
		stamp(e.Time).Format(time.RFC3339Nano), e.Kind, e.Symbol, e.Message, data,
	)
	return err
}

func (j *SQLite) LogOrder(ctx context.Context, o Order) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO orders (time, symbol, side, qty, price, reduce_only, exchange_id, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stamp(o.Time).Format(time.RFC3339Nano), o.Symbol, o.Side, o.Qty, o.Price,
		o.ReduceOnly, o.ExchangeID, o.Status, o.Error,
	)
	return err
}

func (j *SQLite) LogSnapshot(ctx context.Context, symbol string, snapshot interface{}) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO snapshots (time, symbol, data) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), symbol, string(b),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func nullJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
