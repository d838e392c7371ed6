package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pair TEXT NOT NULL,
	units REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	fees REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	exposure REAL NOT NULL,
	realized REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS orders (
	client_order_id TEXT PRIMARY KEY,
	exchange_order_id TEXT NOT NULL DEFAULT '',
	pair TEXT NOT NULL,
	side TEXT NOT NULL,
	units REAL NOT NULL,
	filled_units REAL NOT NULL,
	avg_fill_price REAL NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`
