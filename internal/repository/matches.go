package repository

import (
	"context"
	"database/sql"

	"document-reconciliation-service/internal/models"
	pkgerrors "document-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// MatchStore persists match results and their instrument links.
// Results are append-only: an override marks the old row superseded
// instead of deleting it, preserving the audit trail.
type MatchStore interface {
	Insert(ctx context.Context, result *models.MatchResult) error
	Supersede(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*models.MatchResult, error)
	ListAll(ctx context.Context) ([]*models.MatchResult, error)
}

type sqliteMatchStore struct {
	db *sql.DB
}

// NewMatchStore creates a SQLite-backed match result store
func NewMatchStore(db *sql.DB) MatchStore {
	return &sqliteMatchStore{db: db}
}

// Insert writes the result and its instrument links in one transaction
func (s *sqliteMatchStore) Insert(ctx context.Context, result *models.MatchResult) error {
	if result.ID == "" || result.InvoiceID == "" || len(result.InstrumentIDs) == 0 {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "incomplete match result", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "begin match insert", err)
	}
	defer tx.Rollback()

	superseded := 0
	if result.Superseded {
		superseded = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_results (id, invoice_id, match_type, confidence, residual_delta, superseded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.InvoiceID, string(result.MatchType), result.Confidence,
		result.ResidualDelta.String(), superseded, formatTime(result.CreatedAt))
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "insert match result", err)
	}

	for _, instID := range result.InstrumentIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO match_result_instruments (match_id, instrument_id) VALUES (?, ?)`,
			result.ID, instID); err != nil {
			return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "link match instrument", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "commit match insert", err)
	}
	return nil
}

func (s *sqliteMatchStore) Supersede(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE match_results SET superseded = 1 WHERE id = ?`, id)
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "supersede match result", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "supersede match result: no such result "+id, nil)
	}
	return nil
}

func (s *sqliteMatchStore) ListActive(ctx context.Context) ([]*models.MatchResult, error) {
	return s.list(ctx, `SELECT id, invoice_id, match_type, confidence, residual_delta, superseded, created_at
		FROM match_results WHERE superseded = 0 ORDER BY created_at, id`)
}

func (s *sqliteMatchStore) ListAll(ctx context.Context) ([]*models.MatchResult, error) {
	return s.list(ctx, `SELECT id, invoice_id, match_type, confidence, residual_delta, superseded, created_at
		FROM match_results ORDER BY created_at, id`)
}

func (s *sqliteMatchStore) list(ctx context.Context, q string) ([]*models.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "list match results", err)
	}
	defer rows.Close()

	var out []*models.MatchResult
	for rows.Next() {
		var m models.MatchResult
		var matchType, residual, createdAt string
		var superseded int
		if err := rows.Scan(&m.ID, &m.InvoiceID, &matchType, &m.Confidence, &residual, &superseded, &createdAt); err != nil {
			return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "scan match result", err)
		}
		d, err := decimal.NewFromString(residual)
		if err != nil {
			return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "decode residual delta", err)
		}
		m.MatchType = models.MatchType(matchType)
		m.ResidualDelta = d
		m.Superseded = superseded != 0
		m.CreatedAt = parseTime(createdAt)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "iterate match results", err)
	}

	// Attach instrument links outside the row loop; SQLite here runs
	// with a single connection, nested queries would deadlock.
	for _, m := range out {
		ids, err := s.instrumentIDs(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		m.InstrumentIDs = ids
	}
	return out, nil
}

func (s *sqliteMatchStore) instrumentIDs(ctx context.Context, matchID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instrument_id FROM match_result_instruments
		WHERE match_id = ? ORDER BY instrument_id`, matchID)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "list match instruments", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "scan match instrument", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
