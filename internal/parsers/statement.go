// Package parsers extracts structured records from the text and tables
// of financial documents.
//
// Statement parsing is grammar-per-dialect: a lookup table maps each
// known dialect to a parse function, and the GENERIC entry doubles as
// the fallback when a dialect grammar yields nothing. Grammars come in
// two shapes: table grammars locate columns by header role (date /
// value date / description / debit / credit) in the extracted tables,
// and line grammars apply a single-line regex convention where a
// trailing sign denotes direction.
//
// Rows that fail the post-extraction filters are dropped by design, not
// reported: statements are mostly non-transactional text, so an
// unmatched row is the common case, not an anomaly.
package parsers

import (
	"strings"

	"document-reconciliation-service/internal/models"
	"document-reconciliation-service/pkg/logger"
)

// grammarFunc extracts candidate transactions from the pages of one
// document. Filtering and dedup happen after the grammar runs.
type grammarFunc func(pages []models.ExtractedPage) []*models.Transaction

// StatementParser extracts transaction rows from statement documents
type StatementParser struct {
	grammars map[models.Dialect]grammarFunc
	logger   logger.Logger
}

// NewStatementParser builds a parser with the closed grammar table
func NewStatementParser(log logger.Logger) *StatementParser {
	if log == nil {
		log = logger.NewNopLogger()
	}
	sp := &StatementParser{
		logger: log.WithComponent("statement-parser"),
	}
	sp.grammars = map[models.Dialect]grammarFunc{
		models.DialectBancaIntesa: sp.tableGrammar,
		models.DialectUniCredit:   sp.tableGrammar,
		models.DialectMPS:         sp.tableGrammar,
		models.DialectBNL:         func(pages []models.ExtractedPage) []*models.Transaction { return sp.lineGrammar(pages, 1) },
		models.DialectCartaSi:     func(pages []models.ExtractedPage) []*models.Transaction { return sp.lineGrammar(pages, -1) },
		models.DialectGeneric:     sp.genericGrammar,
	}
	return sp
}

// Parse extracts the transactions of one document. The dialect grammar
// runs first; if it produces nothing the generic fallback runs. Rows
// surviving the rejection filters are deduplicated on their composite
// natural key, collapsing rows surfaced by both the text and the table
// extraction pass.
func (sp *StatementParser) Parse(pages []models.ExtractedPage, d models.Dialect, sourceFile string) []*models.Transaction {
	grammar, ok := sp.grammars[d]
	if !ok {
		grammar = sp.grammars[models.DialectGeneric]
	}

	candidates := grammar(pages)
	if len(candidates) == 0 && d != models.DialectGeneric {
		sp.logger.WithFields(logger.Fields{"dialect": d, "file": sourceFile}).
			Debug("dialect grammar yielded nothing, trying generic fallback")
		candidates = sp.genericGrammar(pages)
	}

	var out []*models.Transaction
	seen := make(map[string]bool)
	dropped := 0

	for _, tx := range candidates {
		tx.Dialect = d
		tx.SourceFile = sourceFile
		if tx.ValueDate.IsZero() {
			tx.ValueDate = tx.BookingDate
		}

		if !sp.accept(tx) {
			dropped++
			continue
		}
		key := tx.NaturalKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tx)
	}

	sp.logger.WithFields(logger.Fields{
		"file": sourceFile, "dialect": d,
		"extracted": len(out), "dropped": dropped,
	}).Debug("statement parsed")
	return out
}

// nonTransactional labels mark balance carry-overs and summary rows
// that look like transactions but are not.
var nonTransactional = []string{
	"saldo iniziale", "saldo finale", "saldo precedente", "saldo contabile",
	"saldo liquido", "totale uscite", "totale entrate", "totale movimenti",
	"riepilogo", "competenze e spese", "opening balance", "closing balance",
}

// accept applies the post-extraction rejection rules. These are not
// errors: statements are mostly non-transactional text.
func (sp *StatementParser) accept(tx *models.Transaction) bool {
	desc := strings.TrimSpace(tx.Description)
	if desc == "" {
		return false
	}
	if tx.BookingDate.IsZero() {
		return false
	}
	if tx.Amount.IsZero() {
		return false
	}

	lower := strings.ToLower(desc)
	for _, label := range nonTransactional {
		if strings.Contains(lower, label) {
			return false
		}
	}

	// A description that is itself just a figure is a stray balance
	// printed next to a date, not a transaction.
	if _, err := models.ParseAmount(desc); err == nil {
		return false
	}
	return true
}
