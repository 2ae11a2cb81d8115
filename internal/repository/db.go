// Package repository persists instruments, invoices, match results and
// batch status records in SQLite.
//
// The driver is pure Go (modernc.org/sqlite) so the service builds
// without cgo. Amounts are stored as decimal strings, never floats.
// Store unavailability is the only batch-fatal condition in the
// pipeline, so every method wraps failures as persistence errors.
package repository

import (
	"context"
	"database/sql"
	"time"

	pkgerrors "document-reconciliation-service/pkg/errors"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS instruments (
	id                TEXT PRIMARY KEY,
	kind              TEXT NOT NULL,
	amount            TEXT NOT NULL,
	date              TEXT NOT NULL,
	counterparty_name TEXT NOT NULL DEFAULT '',
	source_ref        TEXT NOT NULL DEFAULT '',
	dedup_key         TEXT NOT NULL UNIQUE,
	batch_id          TEXT NOT NULL,
	created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
	id            TEXT PRIMARY KEY,
	supplier_name TEXT NOT NULL DEFAULT '',
	total_amount  TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'open',
	invoice_date  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS match_results (
	id             TEXT PRIMARY KEY,
	invoice_id     TEXT NOT NULL,
	match_type     TEXT NOT NULL,
	confidence     REAL NOT NULL,
	residual_delta TEXT NOT NULL DEFAULT '0',
	superseded     INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS match_result_instruments (
	match_id      TEXT NOT NULL,
	instrument_id TEXT NOT NULL,
	PRIMARY KEY (match_id, instrument_id)
);

CREATE TABLE IF NOT EXISTS batches (
	id                 TEXT PRIMARY KEY,
	state              TEXT NOT NULL,
	total_files        INTEGER NOT NULL DEFAULT 0,
	processed_files    INTEGER NOT NULL DEFAULT 0,
	imported_files     INTEGER NOT NULL DEFAULT 0,
	duplicates_skipped INTEGER NOT NULL DEFAULT 0,
	errors             TEXT NOT NULL DEFAULT '[]',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL,
	completed_at       TEXT
);

CREATE INDEX IF NOT EXISTS idx_instruments_batch ON instruments(batch_id);
CREATE INDEX IF NOT EXISTS idx_match_results_invoice ON match_results(invoice_id);
`

// Open opens (or creates) the SQLite database and applies the schema
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "open database", err)
	}
	// SQLite allows one writer; the pipeline is single-writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "ping database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "apply schema", err)
	}
	return db, nil
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
