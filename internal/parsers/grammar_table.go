package parsers

import (
	"strings"

	"document-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// roleColumns maps header roles to column indexes within one table.
// -1 means the role was not found.
type roleColumns struct {
	date      int
	valueDate int
	desc      int
	debit     int
	credit    int
	amount    int
}

func newRoleColumns() roleColumns {
	return roleColumns{date: -1, valueDate: -1, desc: -1, debit: -1, credit: -1, amount: -1}
}

// complete reports whether enough roles resolved to parse rows: a date,
// a description, and at least one amount-bearing column.
func (rc roleColumns) complete() bool {
	return rc.date >= 0 && rc.desc >= 0 && (rc.debit >= 0 || rc.credit >= 0 || rc.amount >= 0)
}

// Header keywords per role, covering the known statement layouts.
// Order within a role does not matter; first keyword hit per cell wins.
var roleKeywords = map[string][]string{
	"date":      {"data contabile", "data operazione", "data reg", "data mov", "data"},
	"valueDate": {"data valuta", "valuta", "value date"},
	"desc":      {"descrizione operazioni", "descrizione", "causale", "dettagli", "description", "operazione"},
	"debit":     {"addebiti", "importo dare", "dare", "uscite", "debit"},
	"credit":    {"accrediti", "importo avere", "avere", "entrate", "credit"},
	"amount":    {"importo", "amount"},
}

// tableGrammar parses column-oriented statement layouts: find the
// header row of each table by role keywords, then map every following
// row positionally.
func (sp *StatementParser) tableGrammar(pages []models.ExtractedPage) []*models.Transaction {
	var out []*models.Transaction
	for _, page := range pages {
		for _, table := range page.Tables {
			out = append(out, parseTable(table)...)
		}
	}
	return out
}

func parseTable(table models.Table) []*models.Transaction {
	cols, headerIdx, found := findHeaderRow(table)
	if !found {
		return nil
	}

	var out []*models.Transaction
	for _, row := range table.Rows[headerIdx+1:] {
		if tx, ok := parseTableRow(row, cols); ok {
			out = append(out, tx)
		}
	}
	return out
}

// findHeaderRow scans the leading rows of a table for a row whose cells
// resolve enough roles to act as the header.
func findHeaderRow(table models.Table) (roleColumns, int, bool) {
	limit := len(table.Rows)
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		cols := mapHeaderRoles(table.Rows[i])
		if cols.complete() {
			return cols, i, true
		}
	}
	return newRoleColumns(), -1, false
}

func mapHeaderRoles(cells []string) roleColumns {
	cols := newRoleColumns()
	for idx, cell := range cells {
		lower := strings.ToLower(strings.TrimSpace(cell))
		if lower == "" {
			continue
		}
		switch {
		// Value date before date: "data valuta" contains "data".
		case cols.valueDate < 0 && matchesRole(lower, "valueDate"):
			cols.valueDate = idx
		case cols.date < 0 && matchesRole(lower, "date"):
			cols.date = idx
		case cols.desc < 0 && matchesRole(lower, "desc"):
			cols.desc = idx
		case cols.debit < 0 && matchesRole(lower, "debit"):
			cols.debit = idx
		case cols.credit < 0 && matchesRole(lower, "credit"):
			cols.credit = idx
		case cols.amount < 0 && matchesRole(lower, "amount"):
			cols.amount = idx
		}
	}
	return cols
}

func matchesRole(cell, role string) bool {
	for _, kw := range roleKeywords[role] {
		if strings.Contains(cell, kw) {
			return true
		}
	}
	return false
}

// parseTableRow maps one data row through the resolved columns.
// Direction comes from which of the debit/credit columns holds the
// value, or from the sign of a single amount column.
func parseTableRow(cells []string, cols roleColumns) (*models.Transaction, bool) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	bookingDate, err := models.ParseDate(cell(cols.date))
	if err != nil {
		return nil, false
	}

	tx := &models.Transaction{
		BookingDate: bookingDate,
		Description: cell(cols.desc),
	}
	if vd, err := models.ParseDate(cell(cols.valueDate)); err == nil {
		tx.ValueDate = vd
	}

	amount, ok := resolveRowAmount(cell, cols)
	if !ok {
		return nil, false
	}
	tx.Amount = amount
	return tx, true
}

func resolveRowAmount(cell func(int) string, cols roleColumns) (decimal.Decimal, bool) {
	if v := cell(cols.debit); v != "" {
		if d, err := models.ParseAmount(v); err == nil && !d.IsZero() {
			return d.Abs().Neg(), true
		}
	}
	if v := cell(cols.credit); v != "" {
		if d, err := models.ParseAmount(v); err == nil && !d.IsZero() {
			return d.Abs(), true
		}
	}
	if v := cell(cols.amount); v != "" {
		if d, err := models.ParseAmount(v); err == nil && !d.IsZero() {
			return d, true
		}
	}
	return decimal.Zero, false
}
