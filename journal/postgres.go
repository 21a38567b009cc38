package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/rustyeddy/bartrader/internal/id"
	"github.com/rustyeddy/bartrader/sim"
)

// PostgresSchema mirrors Schema in Postgres types.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TEXT NOT NULL,
	mode TEXT NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL DEFAULT '',
	dataset TEXT NOT NULL DEFAULT '',
	initial_capital DOUBLE PRECISION NOT NULL,
	final_equity DOUBLE PRECISION NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	params TEXT,
	debug TEXT
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price DOUBLE PRECISION NOT NULL,
	entry_time BIGINT NOT NULL,
	exit_time BIGINT NOT NULL,
	fee DOUBLE PRECISION NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	equity DOUBLE PRECISION NOT NULL,
	close_reason TEXT NOT NULL,
	stop_kind TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, seq);

CREATE TABLE IF NOT EXISTS events (
	time TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	data JSONB
);

CREATE TABLE IF NOT EXISTS orders (
	time TIMESTAMPTZ NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	reduce_only BOOLEAN NOT NULL,
	exchange_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	time TIMESTAMPTZ NOT NULL,
	symbol TEXT NOT NULL,
	data JSONB NOT NULL
);
`

// Postgres stores the journal in a Postgres database through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ Store  = (*Postgres)(nil)
	_ Reader = (*Postgres)(nil)
)

// NewPostgres connects to dsn and creates the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) InsertRun(ctx context.Context, r Run) (string, error) {
	ensureRunID(&r)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO runs
		(run_id, created, mode, strategy, symbol, timeframe, dataset, initial_capital,
		 final_equity, pnl, trades, wins, losses, params, debug)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.Created.UTC().Format(time.RFC3339Nano), r.Mode, r.Strategy, r.Symbol,
		r.Timeframe, r.Dataset, r.InitialCapital, r.FinalEquity, r.PnL,
		r.Trades, r.Wins, r.Losses, nullJSON(r.Params), nullJSON(r.Diagnostics),
	)
	if err != nil {
		return "", fmt.Errorf("journal: insert run: %w", err)
	}
	return r.ID, nil
}

func (p *Postgres) InsertTrades(ctx context.Context, runID string, trades []sim.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, t := range trades {
		batch.Queue(`
			INSERT INTO trades
			(trade_id, run_id, seq, symbol, side, qty, entry_price, exit_price, entry_time,
			 exit_time, fee, pnl, equity, close_reason, stop_kind)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			id.New(), runID, i, t.Symbol, t.Side.String(), t.Qty, t.EntryPrice, t.ExitPrice,
			t.EntryTime, t.ExitTime, t.Fee, t.PnL, t.Equity, string(t.CloseReason), string(t.StopKind),
		)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("journal: insert trade %d: %w", i, err)
		}
	}
	return nil
}

func (p *Postgres) LogEvent(ctx context.Context, e Event) error {
	var data interface{}
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return err
		}
		data = string(b)
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO events (time, kind, symbol, message, data) VALUES ($1, $2, $3, $4, $5::jsonb)`,
		stamp(e.Time), e.Kind, e.Symbol, e.Message, data,
	)
	return err
}

func (p *Postgres) LogOrder(ctx context.Context, o Order) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO orders (time, symbol, side, qty, price, reduce_only, exchange_id, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		stamp(o.Time), o.Symbol, o.Side, o.Qty, o.Price, o.ReduceOnly, o.ExchangeID, o.Status, o.Error,
	)
	return err
}

func (p *Postgres) LogSnapshot(ctx context.Context, symbol string, snapshot interface{}) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO snapshots (time, symbol, data) VALUES ($1, $2, $3::jsonb)`,
		time.Now().UTC(), symbol, string(b),
	)
	return err
}

func (p *Postgres) GetRun(ctx context.Context, runID string) (Run, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, err
	}
	return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY created DESC, run_id DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, q, args...)
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
	return out, rows.Err()
}

func (p *Postgres) ListTrades(ctx context.Context, runID string) ([]Trade, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE run_id = $1 ORDER BY seq ASC`, runID)
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
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
