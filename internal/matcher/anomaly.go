package matcher

import (
	"sort"

	"document-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// Anomaly flags a bound pair that fails re-validation. The pass is
// diagnostic only: it never mutates bindings, it reports them for
// operator review.
type Anomaly struct {
	Result       *models.MatchResult
	InvoiceID    string
	Reasons      []string
	Alternatives []AlternativeCandidate
}

// AlternativeCandidate is a suggested replacement invoice, ranked by
// amount proximity to the bound instruments.
type AlternativeCandidate struct {
	Invoice     *models.Invoice
	AmountDelta decimal.Decimal
}

// BoundPair is the resolved view of one binding for re-validation
type BoundPair struct {
	Result      *models.MatchResult
	Instruments []*models.FinancialInstrument
	Invoice     *models.Invoice
}

// ValidateBindings re-validates already-bound pairs against amount
// delta, counterparty name similarity, invoice paid status, and date
// delta. allInvoices is the full invoice set used to rank alternative
// candidates within the configured proximity window.
func (e *Engine) ValidateBindings(pairs []BoundPair, allInvoices []*models.Invoice) []Anomaly {
	var anomalies []Anomaly

	for _, pair := range pairs {
		if pair.Result == nil || pair.Invoice == nil || pair.Result.Superseded {
			continue
		}

		var reasons []string
		boundSum := decimal.Zero
		for _, inst := range pair.Instruments {
			boundSum = boundSum.Add(inst.AbsAmount())
		}

		if boundSum.Sub(pair.Invoice.TotalAmount).Abs().GreaterThan(e.config.AnomalyAmountTolerance) {
			reasons = append(reasons, "amount mismatch")
		}
		if pair.Invoice.Status == models.InvoicePaid {
			reasons = append(reasons, "already paid")
		}
		if r, flagged := e.checkNameSimilarity(pair); flagged {
			reasons = append(reasons, r)
		}
		if r, flagged := e.checkDateDelta(pair); flagged {
			reasons = append(reasons, r)
		}

		if len(reasons) == 0 {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Result:       pair.Result,
			InvoiceID:    pair.Invoice.ID,
			Reasons:      reasons,
			Alternatives: e.rankAlternatives(boundSum, pair.Invoice.ID, allInvoices),
		})
	}
	return anomalies
}

func (e *Engine) checkNameSimilarity(pair BoundPair) (string, bool) {
	// Only single-instrument bindings carry a meaningful counterparty.
	if len(pair.Instruments) != 1 || pair.Instruments[0].CounterpartyName == "" {
		return "", false
	}
	sim := TokenSetSimilarity(pair.Instruments[0].CounterpartyName, pair.Invoice.SupplierName)
	if sim < e.config.FuzzyMinSimilarity {
		return "low name similarity", true
	}
	return "", false
}

func (e *Engine) checkDateDelta(pair BoundPair) (string, bool) {
	maxDelta := e.config.AnomalyMaxDateDeltaDays
	if maxDelta <= 0 {
		return "", false
	}
	for _, inst := range pair.Instruments {
		if inst.Date.IsZero() || pair.Invoice.InvoiceDate.IsZero() {
			continue
		}
		deltaDays := int(absDuration(inst.Date.Sub(pair.Invoice.InvoiceDate)).Hours() / 24)
		if deltaDays > maxDelta {
			return "date delta exceeds limit", true
		}
	}
	return "", false
}

// rankAlternatives lists other invoices within the proximity window of
// the bound amount, closest first.
func (e *Engine) rankAlternatives(boundSum decimal.Decimal, currentInvoiceID string, invoices []*models.Invoice) []AlternativeCandidate {
	var candidates []AlternativeCandidate
	for _, inv := range invoices {
		if inv.ID == currentInvoiceID {
			continue
		}
		delta := boundSum.Sub(inv.TotalAmount).Abs()
		if delta.LessThanOrEqual(e.config.AlternativeWindow) {
			candidates = append(candidates, AlternativeCandidate{Invoice: inv, AmountDelta: delta})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].AmountDelta.Equal(candidates[j].AmountDelta) {
			return candidates[i].AmountDelta.LessThan(candidates[j].AmountDelta)
		}
		return candidates[i].Invoice.ID < candidates[j].Invoice.ID
	})
	return candidates
}
