package parsers

import (
	"regexp"
	"strings"

	"document-reconciliation-service/internal/models"
	pkgerrors "document-reconciliation-service/pkg/errors"
	"document-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// WireTransferExtractor pulls a transfer record out of a mostly
// unstructured confirmation document. Each field is extracted by an
// independent best-effort pass; the amount is the only load-bearing
// field and a transfer without one is discarded.
type WireTransferExtractor struct {
	logger logger.Logger
}

// NewWireTransferExtractor creates a wire transfer extractor
func NewWireTransferExtractor(log logger.Logger) *WireTransferExtractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &WireTransferExtractor{logger: log.WithComponent("wire-extractor")}
}

var (
	ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)

	// Labelled amount first; any continental-format figure as fallback.
	labelledAmountPattern = regexp.MustCompile(`(?i)(?:importo|amount|totale)\s*[:€]?\s*(?:EUR|€)?\s*([+-]?\d{1,3}(?:\.\d{3})*,\d{2})`)
	anyAmountPattern      = regexp.MustCompile(`[+-]?\d{1,3}(?:\.\d{3})*,\d{2}`)

	// Bank-assigned operation references (CRO/TRN and labelled variants).
	operationRefPattern = regexp.MustCompile(`(?i)\b(?:CRO|TRN|riferimento(?:\s+operazione)?|rif\.|reference)\s*[:.]?\s*([A-Z0-9]{8,35})`)

	causalePattern = regexp.MustCompile(`(?i)(?:causale|descrizione|description)\s*[:.]?\s*(.+)`)

	payeePrefixPattern = regexp.MustCompile(`(?i)^\s*(?:beneficiario|beneficiary|a favore di)\s*[:.]?\s*(.+)$`)
	payerPrefixPattern = regexp.MustCompile(`(?i)^\s*(?:ordinante|originator|disposto da)\s*[:.]?\s*(.+)$`)
)

// Extract parses one confirmation document. Returns a parse error with
// code missing_amount when no amount resolves; every other field is
// optional and left empty when absent.
func (we *WireTransferExtractor) Extract(pages []models.ExtractedPage, sourceFile string) (*models.WireTransfer, error) {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	text := sb.String()

	transfer := &models.WireTransfer{
		Currency:   "EUR",
		SourceFile: sourceFile,
	}

	if amount, ok := extractAmount(text); ok {
		transfer.Amount = amount
	} else {
		return nil, pkgerrors.ParseError(pkgerrors.CodeMissingAmount, sourceFile, 0, "", nil)
	}

	if date, ok := models.FindDate(text); ok {
		transfer.Date = date
	}

	// IBAN convention on confirmations: the beneficiary account is
	// printed before the originator account when both appear.
	ibans := ibanPattern.FindAllString(text, 2)
	if len(ibans) > 0 {
		transfer.PayeeIBAN = ibans[0]
	}
	if len(ibans) > 1 {
		transfer.PayerIBAN = ibans[1]
	}

	if m := operationRefPattern.FindStringSubmatch(text); m != nil {
		transfer.OperationRef = models.NormalizeOperationRef(m[1])
	}

	for _, line := range strings.Split(text, "\n") {
		if transfer.PayeeName == "" {
			if m := payeePrefixPattern.FindStringSubmatch(line); m != nil {
				transfer.PayeeName = cleanParty(m[1])
				continue
			}
		}
		if transfer.PayerName == "" {
			if m := payerPrefixPattern.FindStringSubmatch(line); m != nil {
				transfer.PayerName = cleanParty(m[1])
				continue
			}
		}
		if transfer.Description == "" {
			if m := causalePattern.FindStringSubmatch(line); m != nil {
				transfer.Description = strings.TrimSpace(m[1])
			}
		}
	}

	transfer.DedupKey = transfer.ComputeDedupKey()

	we.logger.WithFields(logger.Fields{
		"file": sourceFile, "amount": transfer.Amount.String(),
		"ref": transfer.OperationRef,
	}).Debug("wire transfer extracted")
	return transfer, nil
}

// extractAmount prefers a labelled figure; failing that, the first
// continental-format figure anywhere in the text.
func extractAmount(text string) (decimal.Decimal, bool) {
	if m := labelledAmountPattern.FindStringSubmatch(text); m != nil {
		if d, err := models.ParseAmount(m[1]); err == nil && !d.IsZero() {
			return d, true
		}
	}
	if m := anyAmountPattern.FindString(text); m != "" {
		if d, err := models.ParseAmount(m); err == nil && !d.IsZero() {
			return d, true
		}
	}
	return decimal.Zero, false
}

func cleanParty(s string) string {
	s = strings.TrimSpace(s)
	// Party lines sometimes run into the next label on the same row.
	if idx := ibanPattern.FindStringIndex(s); idx != nil {
		s = strings.TrimSpace(s[:idx[0]])
	}
	return strings.Join(strings.Fields(s), " ")
}
