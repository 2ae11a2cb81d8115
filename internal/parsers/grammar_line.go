package parsers

import (
	"regexp"
	"strings"

	"document-reconciliation-service/internal/models"
)

// Line grammar: one transaction per text line, booking date first, an
// optional value date, free-text description, trailing amount whose
// sign may follow the figure ("1.234,56-").
var lineRowPattern = regexp.MustCompile(
	`^\s*(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})(?:\s+(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}))?\s+(.+?)\s+([+-]?\d{1,3}(?:\.\d{3})*,\d{2}[+-]?)\s*$`)

// Generic fallback row: <date> <description> <amount>, tolerant of any
// amount shape ParseAmount accepts.
var genericRowPattern = regexp.MustCompile(
	`(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})\s+(.+?)\s+([+-]?\d{1,3}(?:\.\d{3})*(?:,\d{1,2})?[+-]?)\s*$`)

// lineGrammar parses single-line statement conventions. defaultSign
// applies when the amount carries no explicit sign: +1 for current
// account layouts that print signed figures, -1 for card statements
// where every unsigned row is a charge.
func (sp *StatementParser) lineGrammar(pages []models.ExtractedPage, defaultSign int) []*models.Transaction {
	var out []*models.Transaction
	for _, page := range pages {
		for _, line := range strings.Split(page.Text, "\n") {
			m := lineRowPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			bookingDate, err := models.ParseDate(m[1])
			if err != nil {
				continue
			}
			amount, err := models.ParseAmount(m[4])
			if err != nil || amount.IsZero() {
				continue
			}
			if defaultSign < 0 && !hasExplicitSign(m[4]) {
				amount = amount.Abs().Neg()
			}

			tx := &models.Transaction{
				BookingDate: bookingDate,
				Description: strings.TrimSpace(m[3]),
				Amount:      amount,
			}
			if m[2] != "" {
				if vd, err := models.ParseDate(m[2]); err == nil {
					tx.ValueDate = vd
				}
			}
			out = append(out, tx)
		}
	}
	return out
}

func hasExplicitSign(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") ||
		strings.HasSuffix(s, "+") || strings.HasSuffix(s, "-")
}

// genericGrammar is the fallback for unrecognized layouts. It first
// looks for a header row in the extracted tables and maps rows
// positionally; when no header is found it slides a
// <date> <description> <amount> regex over the raw text lines.
func (sp *StatementParser) genericGrammar(pages []models.ExtractedPage) []*models.Transaction {
	if out := sp.tableGrammar(pages); len(out) > 0 {
		return out
	}

	var out []*models.Transaction
	for _, page := range pages {
		for _, line := range strings.Split(page.Text, "\n") {
			m := genericRowPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			bookingDate, err := models.ParseDate(m[1])
			if err != nil {
				continue
			}
			amount, err := models.ParseAmount(m[3])
			if err != nil || amount.IsZero() {
				continue
			}
			out = append(out, &models.Transaction{
				BookingDate: bookingDate,
				Description: strings.TrimSpace(m[2]),
				Amount:      amount,
			})
		}
	}
	return out
}
