package repository

import (
	"context"
	"database/sql"

	"document-reconciliation-service/internal/models"
	pkgerrors "document-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// InstrumentStore persists financial instruments keyed by dedup key
type InstrumentStore interface {
	Insert(ctx context.Context, inst *models.FinancialInstrument) error
	ListDedupKeys(ctx context.Context) ([]string, error)
	ListUnmatched(ctx context.Context) ([]*models.FinancialInstrument, error)
	ListAll(ctx context.Context) ([]*models.FinancialInstrument, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.FinancialInstrument, error)
}

type sqliteInstrumentStore struct {
	db *sql.DB
}

// NewInstrumentStore creates a SQLite-backed instrument store
func NewInstrumentStore(db *sql.DB) InstrumentStore {
	return &sqliteInstrumentStore{db: db}
}

func (s *sqliteInstrumentStore) Insert(ctx context.Context, inst *models.FinancialInstrument) error {
	if err := inst.Validate(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryPersistence, pkgerrors.CodeWriteFailed, "invalid instrument")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instruments (id, kind, amount, date, counterparty_name, source_ref, dedup_key, batch_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, string(inst.Kind), inst.Amount.String(), formatTime(inst.Date),
		inst.CounterpartyName, inst.SourceRef, inst.DedupKey, inst.BatchID, formatTime(inst.CreatedAt))
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "insert instrument", err)
	}
	return nil
}

// ListDedupKeys returns every persisted fingerprint, used to hydrate
// the batch-scoped dedup index in one round trip.
func (s *sqliteInstrumentStore) ListDedupKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dedup_key FROM instruments`)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "list dedup keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "scan dedup key", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ListUnmatched returns instruments with no active (non-superseded)
// binding, forming the instrument pool of a reconciliation run.
func (s *sqliteInstrumentStore) ListUnmatched(ctx context.Context) ([]*models.FinancialInstrument, error) {
	return s.query(ctx, `
		SELECT i.id, i.kind, i.amount, i.date, i.counterparty_name, i.source_ref, i.dedup_key, i.batch_id, i.created_at
		FROM instruments i
		WHERE i.id NOT IN (
			SELECT mri.instrument_id
			FROM match_result_instruments mri
			JOIN match_results mr ON mr.id = mri.match_id
			WHERE mr.superseded = 0
		)
		ORDER BY i.date, i.id`)
}

func (s *sqliteInstrumentStore) ListAll(ctx context.Context) ([]*models.FinancialInstrument, error) {
	return s.query(ctx, `
		SELECT id, kind, amount, date, counterparty_name, source_ref, dedup_key, batch_id, created_at
		FROM instruments ORDER BY date, id`)
}

func (s *sqliteInstrumentStore) GetByIDs(ctx context.Context, ids []string) ([]*models.FinancialInstrument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, kind, amount, date, counterparty_name, source_ref, dedup_key, batch_id, created_at
		FROM instruments WHERE id IN (?` // first placeholder
	args := []interface{}{ids[0]}
	for _, id := range ids[1:] {
		query += ",?"
		args = append(args, id)
	}
	query += ") ORDER BY date, id"
	return s.queryArgs(ctx, query, args...)
}

func (s *sqliteInstrumentStore) query(ctx context.Context, q string) ([]*models.FinancialInstrument, error) {
	return s.queryArgs(ctx, q)
}

func (s *sqliteInstrumentStore) queryArgs(ctx context.Context, q string, args ...interface{}) ([]*models.FinancialInstrument, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "list instruments", err)
	}
	defer rows.Close()

	var out []*models.FinancialInstrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstrument(rows *sql.Rows) (*models.FinancialInstrument, error) {
	var inst models.FinancialInstrument
	var kind, amount, date, createdAt string
	if err := rows.Scan(&inst.ID, &kind, &amount, &date, &inst.CounterpartyName,
		&inst.SourceRef, &inst.DedupKey, &inst.BatchID, &createdAt); err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "scan instrument", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "decode instrument amount", err)
	}
	inst.Kind = models.InstrumentKind(kind)
	inst.Amount = d
	inst.Date = parseTime(date)
	inst.CreatedAt = parseTime(createdAt)
	return &inst, nil
}
