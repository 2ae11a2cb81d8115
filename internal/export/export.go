// Package export serializes the persisted instrument set to CSV or
// XLSX for downstream accounting tools. The row schema is fixed; the
// matched-invoice column is resolved from active bindings.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"document-reconciliation-service/internal/models"

	"github.com/xuri/excelize/v2"
)

// Format selects the output serialization
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
}

// Row is one exported instrument
type Row struct {
	Date           time.Time
	Amount         string
	Counterparty   string
	Kind           models.InstrumentKind
	DedupKey       string
	SourceFile     string
	MatchedInvoice string
}

var header = []string{"date", "amount", "counterparty", "kind", "dedup_key", "source_file", "matched_invoice"}

// BuildRows joins instruments with their active bindings. Instruments
// without an active binding get an empty matched-invoice column.
func BuildRows(instruments []*models.FinancialInstrument, active []*models.MatchResult) []Row {
	invoiceByInstrument := make(map[string]string)
	for _, m := range active {
		if m.Superseded {
			continue
		}
		for _, id := range m.InstrumentIDs {
			invoiceByInstrument[id] = m.InvoiceID
		}
	}

	rows := make([]Row, 0, len(instruments))
	for _, inst := range instruments {
		rows = append(rows, Row{
			Date:           inst.Date,
			Amount:         models.FormatAmount(inst.Amount),
			Counterparty:   inst.CounterpartyName,
			Kind:           inst.Kind,
			DedupKey:       inst.DedupKey,
			SourceFile:     inst.SourceRef,
			MatchedInvoice: invoiceByInstrument[inst.ID],
		})
	}
	return rows
}

// WriteCSV writes the rows as comma-separated values with a header
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			formatDate(row.Date),
			row.Amount,
			row.Counterparty,
			string(row.Kind),
			row.DedupKey,
			row.SourceFile,
			row.MatchedInvoice,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Instruments"

// WriteXLSX writes the rows as a single-sheet workbook
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := setRow(f, 1, headerCells); err != nil {
		return err
	}

	for i, row := range rows {
		cells := []interface{}{
			formatDate(row.Date),
			row.Amount,
			row.Counterparty,
			string(row.Kind),
			row.DedupKey,
			row.SourceFile,
			row.MatchedInvoice,
		}
		if err := setRow(f, i+2, cells); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("cell coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("set row %d: %w", n, err)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
