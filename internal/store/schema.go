package store

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	trade_ref TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	trade_date DATETIME NOT NULL,
	settlement_date DATETIME NOT NULL,
	amount REAL NOT NULL,
	unsettled_funded INTEGER NOT NULL DEFAULT 0,
	is_settled INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_settlements_account ON settlements(account_id, settlement_date);

CREATE TABLE IF NOT EXISTS day_trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	buy_ref TEXT NOT NULL,
	sell_ref TEXT NOT NULL,
	trade_date DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_day_trades_account ON day_trades(account_id, trade_date);

CREATE TABLE IF NOT EXISTS trade_frequency (
	account_id TEXT NOT NULL,
	day TEXT NOT NULL,
	daily_count INTEGER NOT NULL,
	week_start TEXT NOT NULL,
	PRIMARY KEY (account_id, day)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_account ON audit_logs(account_id, created_at);
`
