package store

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                 BIGSERIAL PRIMARY KEY,
		order_number       TEXT,
		total              NUMERIC(20, 8) NOT NULL,
		currency           TEXT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'awaiting_payment',
		payment_request_id TEXT,
		payment_data       JSONB,
		paid_at            TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS orders_payment_request_id_idx ON orders (payment_request_id)`,
	`CREATE TABLE IF NOT EXISTS order_notes (
		id         BIGSERIAL PRIMARY KEY,
		order_id   BIGINT NOT NULL REFERENCES orders (id),
		note       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS order_notes_order_id_idx ON order_notes (order_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		order_number       TEXT,
		total              TEXT NOT NULL,
		currency           TEXT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'awaiting_payment',
		payment_request_id TEXT UNIQUE,
		payment_data       TEXT,
		paid_at            TEXT,
		created_at         TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_notes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id   INTEGER NOT NULL REFERENCES orders (id),
		note       TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS order_notes_order_id_idx ON order_notes (order_id)`,
}
