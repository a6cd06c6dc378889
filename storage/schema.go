package storage

// schema holds every table the service persists. Statements are idempotent
// so startup can apply them unconditionally.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		initial_balance INTEGER NOT NULL DEFAULT 0,
		configured INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE(user_id, name, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		category TEXT NOT NULL,
		amount INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		amount INTEGER NOT NULL,
		category TEXT NOT NULL,
		charge_day INTEGER NOT NULL,
		next_charge_date TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount INTEGER,
		due_date TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS debts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		counterparty TEXT NOT NULL,
		amount INTEGER NOT NULL,
		direction TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		scope TEXT NOT NULL,
		threshold INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE(user_id, scope)
	)`,
	`CREATE TABLE IF NOT EXISTS monthly_summary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		income_total INTEGER NOT NULL DEFAULT 0,
		expense_total INTEGER NOT NULL DEFAULT 0,
		saving_total INTEGER NOT NULL DEFAULT 0,
		end_balance INTEGER NOT NULL DEFAULT 0,
		refreshed_at TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE(user_id, month, year)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_summary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		income_total INTEGER NOT NULL DEFAULT 0,
		expense_total INTEGER NOT NULL DEFAULT 0,
		saving_total INTEGER NOT NULL DEFAULT 0,
		refreshed_at TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE(user_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		dedup_key TEXT NOT NULL DEFAULT '',
		processed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_movements_user_date ON movements(user_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_user_period ON movements(user_id, month, year)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_user_kind ON categories(user_id, kind, active)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions(next_charge_date, active)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_date, active)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_pending ON notifications(processed, created_at)`,
}
