package matcher

import (
	"testing"

	"document-reconciliation-service/internal/models"
)

func boundPair(result *models.MatchResult, inv *models.Invoice, instruments ...*models.FinancialInstrument) BoundPair {
	return BoundPair{Result: result, Instruments: instruments, Invoice: inv}
}

func TestValidateBindingsCleanPairPasses(t *testing.T) {
	engine := newTestEngine(t)

	inv := makeInvoice("INV1", "500.00", "Rossi Costruzioni", testDay)
	inst := makeInstrument("I1", "-500.20", testDay.AddDate(0, 0, 3), "Rossi Costruzioni SRL")
	pair := boundPair(&models.MatchResult{ID: "M1", InvoiceID: "INV1", InstrumentIDs: []string{"I1"}}, inv, inst)

	anomalies := engine.ValidateBindings([]BoundPair{pair}, []*models.Invoice{inv})
	if len(anomalies) != 0 {
		t.Fatalf("clean pair flagged: %v", anomalies[0].Reasons)
	}
}

func TestValidateBindingsAlreadyPaidWithAlternatives(t *testing.T) {
	engine := newTestEngine(t)

	bound := makeInvoice("BOUND", "500.00", "Rossi Costruzioni", testDay)
	bound.Status = models.InvoicePaid

	// Alternatives within the ±5 amount window of the bound sum,
	// plus one outside it.
	near := makeInvoice("NEAR", "499.00", "Bianchi", testDay)
	far := makeInvoice("FAR", "503.00", "Verdi", testDay)
	out := makeInvoice("OUT", "600.00", "Neri", testDay)
	all := []*models.Invoice{bound, near, far, out}

	inst := makeInstrument("I1", "-500.50", testDay, "Rossi Costruzioni")
	pair := boundPair(&models.MatchResult{ID: "M1", InvoiceID: "BOUND", InstrumentIDs: []string{"I1"}}, bound, inst)

	anomalies := engine.ValidateBindings([]BoundPair{pair}, all)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}

	a := anomalies[0]
	if !containsReason(a.Reasons, "already paid") {
		t.Errorf("reasons = %v, want already paid", a.Reasons)
	}

	if len(a.Alternatives) != 2 {
		t.Fatalf("expected 2 alternatives within the window, got %d", len(a.Alternatives))
	}
	// Ranked by amount proximity: |500.50-499| = 1.50 before |500.50-503| = 2.50.
	if a.Alternatives[0].Invoice.ID != "NEAR" || a.Alternatives[1].Invoice.ID != "FAR" {
		t.Errorf("alternatives out of order: %s, %s", a.Alternatives[0].Invoice.ID, a.Alternatives[1].Invoice.ID)
	}
	if bound.Status != models.InvoicePaid {
		t.Error("the anomaly pass must not mutate anything")
	}
}

func TestValidateBindingsAmountMismatch(t *testing.T) {
	engine := newTestEngine(t)

	inv := makeInvoice("INV1", "900.00", "Rossi", testDay)
	inst := makeInstrument("I1", "-500.00", testDay, "Rossi")
	pair := boundPair(&models.MatchResult{ID: "M1", InvoiceID: "INV1", InstrumentIDs: []string{"I1"}}, inv, inst)

	anomalies := engine.ValidateBindings([]BoundPair{pair}, []*models.Invoice{inv})
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if !containsReason(anomalies[0].Reasons, "amount mismatch") {
		t.Errorf("reasons = %v, want amount mismatch", anomalies[0].Reasons)
	}
}

func TestValidateBindingsLowNameSimilarity(t *testing.T) {
	engine := newTestEngine(t)

	inv := makeInvoice("INV1", "500.00", "Rossi Costruzioni", testDay)
	inst := makeInstrument("I1", "-500.00", testDay, "Pizzeria Da Gino")
	pair := boundPair(&models.MatchResult{ID: "M1", InvoiceID: "INV1", InstrumentIDs: []string{"I1"}}, inv, inst)

	anomalies := engine.ValidateBindings([]BoundPair{pair}, []*models.Invoice{inv})
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if !containsReason(anomalies[0].Reasons, "low name similarity") {
		t.Errorf("reasons = %v, want low name similarity", anomalies[0].Reasons)
	}
}

func TestValidateBindingsDateDelta(t *testing.T) {
	engine := newTestEngine(t)

	inv := makeInvoice("INV1", "500.00", "Rossi", testDay)
	inst := makeInstrument("I1", "-500.00", testDay.AddDate(1, 0, 0), "Rossi")
	pair := boundPair(&models.MatchResult{ID: "M1", InvoiceID: "INV1", InstrumentIDs: []string{"I1"}}, inv, inst)

	anomalies := engine.ValidateBindings([]BoundPair{pair}, []*models.Invoice{inv})
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if !containsReason(anomalies[0].Reasons, "date delta exceeds limit") {
		t.Errorf("reasons = %v, want date delta exceeds limit", anomalies[0].Reasons)
	}
}

func TestValidateBindingsSkipsSuperseded(t *testing.T) {
	engine := newTestEngine(t)

	inv := makeInvoice("INV1", "900.00", "Rossi", testDay)
	inst := makeInstrument("I1", "-500.00", testDay, "Rossi")
	pair := boundPair(&models.MatchResult{ID: "M1", InvoiceID: "INV1", InstrumentIDs: []string{"I1"}, Superseded: true}, inv, inst)

	if anomalies := engine.ValidateBindings([]BoundPair{pair}, []*models.Invoice{inv}); len(anomalies) != 0 {
		t.Errorf("superseded pair should be ignored, got %d anomalies", len(anomalies))
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
