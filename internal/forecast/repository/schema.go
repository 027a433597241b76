package repository

// Schema is the subset of the CRUD backend's tables this service reads. The
// CRUD backend owns the real migrations; this is used by integration tests
// and local setups.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	sku TEXT NOT NULL DEFAULT '',
	category TEXT,
	stock INTEGER,
	reorder_threshold INTEGER,
	price NUMERIC(12, 2)
);

CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	invoice_date TEXT
);

CREATE TABLE IF NOT EXISTS invoice_items (
	id SERIAL PRIMARY KEY,
	invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	product_id TEXT,
	quantity NUMERIC,
	unit_price NUMERIC(12, 2)
);
`
