package journal

// Schema creates the run archive. Every row in trades and equity belongs to
// a backtest_runs row through run_id; seq preserves log order.
const Schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	bar_interval TEXT NOT NULL,
	dataset TEXT NOT NULL,
	config TEXT NOT NULL,
	fill_timing TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	initial_capital REAL NOT NULL,
	commission_rate REAL NOT NULL,
	final_cash REAL NOT NULL,
	final_position REAL NOT NULL,
	final_equity REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	closed_trades INTEGER NOT NULL,
	winning_trades INTEGER NOT NULL,
	losing_trades INTEGER NOT NULL,
	total_pnl REAL NOT NULL,
	total_pnl_pct REAL NOT NULL,
	win_rate REAL NOT NULL,
	gross_profit REAL NOT NULL,
	gross_loss REAL NOT NULL,
	profit_factor REAL,
	max_drawdown REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	commission_paid REAL NOT NULL,
	total_bought REAL NOT NULL,
	total_sold REAL NOT NULL,
	duration_ns INTEGER NOT NULL,
	notes TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON backtest_runs(created);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	trade_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	notional REAL NOT NULL,
	commission REAL NOT NULL,
	avg_entry_price REAL NOT NULL,
	cash_after REAL NOT NULL,
	position_after REAL NOT NULL,
	realized_pnl REAL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL,
	position REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`
