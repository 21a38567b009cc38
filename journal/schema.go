package journal

// Schema is the SQLite schema. Times are stored as RFC3339 text; trade
// times keep the engine's millisecond integers.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TEXT NOT NULL,
	mode TEXT NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL DEFAULT '',
	dataset TEXT NOT NULL DEFAULT '',
	initial_capital REAL NOT NULL,
	final_equity REAL NOT NULL,
	pnl REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	params TEXT,
	debug TEXT
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	entry_time INTEGER NOT NULL,
	exit_time INTEGER NOT NULL,
	fee REAL NOT NULL,
	pnl REAL NOT NULL,
	equity REAL NOT NULL,
	close_reason TEXT NOT NULL,
	stop_kind TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, seq);

CREATE TABLE IF NOT EXISTS events (
	time TEXT NOT NULL,
	kind TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	data TEXT
);

CREATE TABLE IF NOT EXISTS orders (
	time TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty REAL NOT NULL,
	price REAL NOT NULL,
	reduce_only INTEGER NOT NULL,
	exchange_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	time TEXT NOT NULL,
	symbol TEXT NOT NULL,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
`
