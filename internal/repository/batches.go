package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"document-reconciliation-service/internal/models"
	pkgerrors "document-reconciliation-service/pkg/errors"
)

// BatchStore persists batch status records. Progress updates overwrite
// the full row; the orchestrator is the only writer.
type BatchStore interface {
	Create(ctx context.Context, status *models.BatchStatus) error
	Update(ctx context.Context, status *models.BatchStatus) error
	Get(ctx context.Context, id string) (*models.BatchStatus, error)
	List(ctx context.Context) ([]*models.BatchStatus, error)
}

type sqliteBatchStore struct {
	db *sql.DB
}

// NewBatchStore creates a SQLite-backed batch status store
func NewBatchStore(db *sql.DB) BatchStore {
	return &sqliteBatchStore{db: db}
}

func (s *sqliteBatchStore) Create(ctx context.Context, status *models.BatchStatus) error {
	errs, err := encodeErrors(status.Errors)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches (id, state, total_files, processed_files, imported_files, duplicates_skipped, errors, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		status.ID, string(status.State), status.TotalFiles, status.ProcessedFiles,
		status.ImportedFiles, status.DuplicatesSkipped, errs,
		formatTime(status.CreatedAt), formatTime(status.UpdatedAt), completedAtValue(status))
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "create batch", err)
	}
	return nil
}

func (s *sqliteBatchStore) Update(ctx context.Context, status *models.BatchStatus) error {
	errs, err := encodeErrors(status.Errors)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET state = ?, total_files = ?, processed_files = ?, imported_files = ?,
			duplicates_skipped = ?, errors = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		string(status.State), status.TotalFiles, status.ProcessedFiles, status.ImportedFiles,
		status.DuplicatesSkipped, errs, formatTime(status.UpdatedAt), completedAtValue(status), status.ID)
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "update batch", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "update batch: no such batch "+status.ID, nil)
	}
	return nil
}

func (s *sqliteBatchStore) Get(ctx context.Context, id string) (*models.BatchStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, total_files, processed_files, imported_files, duplicates_skipped, errors, created_at, updated_at, completed_at
		FROM batches WHERE id = ?`, id)

	status, err := scanBatch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return status, err
}

func (s *sqliteBatchStore) List(ctx context.Context) ([]*models.BatchStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, total_files, processed_files, imported_files, duplicates_skipped, errors, created_at, updated_at, completed_at
		FROM batches ORDER BY created_at, id`)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "list batches", err)
	}
	defer rows.Close()

	var out []*models.BatchStatus
	for rows.Next() {
		status, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, rows.Err()
}

func scanBatch(scan func(...interface{}) error) (*models.BatchStatus, error) {
	var status models.BatchStatus
	var state, errs, createdAt, updatedAt string
	var completedAt sql.NullString
	if err := scan(&status.ID, &state, &status.TotalFiles, &status.ProcessedFiles,
		&status.ImportedFiles, &status.DuplicatesSkipped, &errs, &createdAt, &updatedAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "scan batch", err)
	}

	if err := json.Unmarshal([]byte(errs), &status.Errors); err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "decode batch errors", err)
	}
	status.State = models.BatchState(state)
	status.CreatedAt = parseTime(createdAt)
	status.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid && completedAt.String != "" {
		t := parseTime(completedAt.String)
		status.CompletedAt = &t
	}
	return &status, nil
}

func encodeErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "encode batch errors", err)
	}
	return string(b), nil
}

func completedAtValue(status *models.BatchStatus) interface{} {
	if status.CompletedAt == nil {
		return nil
	}
	return formatTime(*status.CompletedAt)
}
