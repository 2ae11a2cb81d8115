package repository

import (
	"context"
	"database/sql"

	"document-reconciliation-service/internal/models"
	pkgerrors "document-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// InvoiceStore reads invoice totals and writes payment status. The
// invoice data itself is owned by an external bookkeeping system; this
// store only tracks reconciliation state.
type InvoiceStore interface {
	Insert(ctx context.Context, inv *models.Invoice) error
	ListOpen(ctx context.Context) ([]*models.Invoice, error)
	ListAll(ctx context.Context) ([]*models.Invoice, error)
	Get(ctx context.Context, id string) (*models.Invoice, error)
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error
}

type sqliteInvoiceStore struct {
	db *sql.DB
}

// NewInvoiceStore creates a SQLite-backed invoice store
func NewInvoiceStore(db *sql.DB) InvoiceStore {
	return &sqliteInvoiceStore{db: db}
}

func (s *sqliteInvoiceStore) Insert(ctx context.Context, inv *models.Invoice) error {
	if err := inv.Validate(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryPersistence, pkgerrors.CodeWriteFailed, "invalid invoice")
	}
	status := inv.Status
	if status == "" {
		status = models.InvoiceOpen
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, supplier_name, total_amount, status, invoice_date)
		VALUES (?, ?, ?, ?, ?)`,
		inv.ID, inv.SupplierName, inv.TotalAmount.String(), string(status), formatTime(inv.InvoiceDate))
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "insert invoice", err)
	}
	return nil
}

func (s *sqliteInvoiceStore) ListOpen(ctx context.Context) ([]*models.Invoice, error) {
	return s.list(ctx, `SELECT id, supplier_name, total_amount, status, invoice_date
		FROM invoices WHERE status = 'open' ORDER BY id`)
}

func (s *sqliteInvoiceStore) ListAll(ctx context.Context) ([]*models.Invoice, error) {
	return s.list(ctx, `SELECT id, supplier_name, total_amount, status, invoice_date
		FROM invoices ORDER BY id`)
}

func (s *sqliteInvoiceStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, supplier_name, total_amount, status, invoice_date
		FROM invoices WHERE id = ?`, id)

	inv, err := scanInvoiceRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func (s *sqliteInvoiceStore) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE invoices SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "update invoice status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.PersistenceError(pkgerrors.CodeWriteFailed, "update invoice status: no such invoice "+id, nil)
	}
	return nil
}

func (s *sqliteInvoiceStore) list(ctx context.Context, q string) ([]*models.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "list invoices", err)
	}
	defer rows.Close()

	var out []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoiceRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoiceRow(scan func(...interface{}) error) (*models.Invoice, error) {
	var inv models.Invoice
	var amount, status, date string
	if err := scan(&inv.ID, &inv.SupplierName, &amount, &status, &date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "scan invoice", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "decode invoice total", err)
	}
	inv.TotalAmount = d
	inv.Status = models.InvoiceStatus(status)
	inv.InvoiceDate = parseTime(date)
	return &inv, nil
}
