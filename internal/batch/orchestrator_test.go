package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"document-reconciliation-service/internal/matcher"
	"document-reconciliation-service/internal/models"
	"document-reconciliation-service/internal/repository"
	pkgerrors "document-reconciliation-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, Stores) {
	t.Helper()

	db, err := repository.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stores := Stores{
		Instruments: repository.NewInstrumentStore(db),
		Invoices:    repository.NewInvoiceStore(db),
		Matches:     repository.NewMatchStore(db),
		Batches:     repository.NewBatchStore(db),
	}

	cfg := DefaultConfig()
	cfg.WorkDir = t.TempDir()

	o, err := New(cfg, nil, stores, nil)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	return o, stores
}

func wireConfirmation(ref string) []models.ExtractedPage {
	text := "DISPOSIZIONE DI BONIFICO\n" +
		"Data operazione: 10/03/2024\n" +
		"Beneficiario: ROSSI COSTRUZIONI SRL\n" +
		"Importo: EUR 4.989,78\n" +
		"Riferimento operazione: " + ref + "\n"
	return []models.ExtractedPage{{Number: 1, Text: text}}
}

func statementPages() []models.ExtractedPage {
	return []models.ExtractedPage{{
		Number: 1,
		Text:   "INTESA SANPAOLO\nEstratto conto\n",
		Tables: []models.Table{{Rows: [][]string{
			{"Data", "Descrizione", "Importo"},
			{"03/01/2024", "CANONE MENSILE", "-7,50"},
		}}},
	}}
}

func TestIsWireConfirmation(t *testing.T) {
	if !isWireConfirmation("Disposizione di bonifico a favore di...") {
		t.Error("bonifico marker should classify as confirmation")
	}
	if !isWireConfirmation("Ordinante: ACME\nBeneficiario: ROSSI") {
		t.Error("both party prefixes should classify as confirmation")
	}
	if isWireConfirmation("Estratto conto al 31/01/2024") {
		t.Error("a statement should not classify as confirmation")
	}
}

func TestProcessDocumentsCountsDuplicates(t *testing.T) {
	o, stores := newTestOrchestrator(t)
	ctx := context.Background()

	status := &models.BatchStatus{ID: uuid.NewString(), State: models.BatchProcessing}
	index, err := o.hydrateIndex(ctx)
	if err != nil {
		t.Fatalf("hydrate failed: %v", err)
	}
	sample := pkgerrors.NewSample(10)

	docs := []struct {
		name  string
		pages []models.ExtractedPage
	}{
		{"bonifico1.pdf", wireConfirmation("TRN123456789X")},
		{"estratto.pdf", statementPages()},
		// Same operation reference re-uploaded: must be skipped.
		{"bonifico1_copy.pdf", wireConfirmation("TRN123456789X")},
	}
	for _, doc := range docs {
		if err := o.processDocument(ctx, status, index, stagedDocument{Name: doc.name},
			extractionResult{pages: doc.pages}, sample); err != nil {
			t.Fatalf("process failed: %v", err)
		}
	}

	if status.ImportedFiles != 2 {
		t.Errorf("imported files = %d, want 2", status.ImportedFiles)
	}
	if status.DuplicatesSkipped != 1 {
		t.Errorf("duplicates skipped = %d, want 1", status.DuplicatesSkipped)
	}

	all, err := stores.Instruments.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 persisted instruments, got %d", len(all))
	}
}

func TestIngestionIsIdempotent(t *testing.T) {
	o, stores := newTestOrchestrator(t)
	ctx := context.Background()

	process := func(status *models.BatchStatus) {
		index, err := o.hydrateIndex(ctx)
		if err != nil {
			t.Fatalf("hydrate failed: %v", err)
		}
		sample := pkgerrors.NewSample(10)
		o.processDocument(ctx, status, index, stagedDocument{Name: "bonifico.pdf"},
			extractionResult{pages: wireConfirmation("TRN999888777Y")}, sample)
		o.processDocument(ctx, status, index, stagedDocument{Name: "estratto.pdf"},
			extractionResult{pages: statementPages()}, sample)
	}

	first := &models.BatchStatus{ID: uuid.NewString()}
	process(first)
	if first.ImportedFiles != 2 {
		t.Fatalf("first run imported %d files, want 2", first.ImportedFiles)
	}

	// Re-ingesting the identical batch: the hydrated index absorbs
	// everything, the store stays unchanged.
	second := &models.BatchStatus{ID: uuid.NewString()}
	process(second)
	if second.ImportedFiles != 0 {
		t.Errorf("second run imported %d files, want 0", second.ImportedFiles)
	}
	if second.DuplicatesSkipped != 2 {
		t.Errorf("second run skipped %d duplicates, want 2", second.DuplicatesSkipped)
	}

	all, err := stores.Instruments.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("store grew to %d instruments on re-ingestion", len(all))
	}
}

func TestProcessDocumentUnreadable(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	status := &models.BatchStatus{ID: uuid.NewString()}
	index, _ := o.hydrateIndex(ctx)
	sample := pkgerrors.NewSample(10)

	o.processDocument(ctx, status, index, stagedDocument{Name: "scan.pdf"},
		extractionResult{pages: []models.ExtractedPage{{Number: 1}}}, sample)

	if status.ImportedFiles != 0 {
		t.Error("unreadable document must import nothing")
	}
	if sample.CountByCode(pkgerrors.CodeDocumentUnreadable) != 1 {
		t.Errorf("expected one unreadable error, sample: %s", sample)
	}
}

func TestCancelledBatchReleasesScope(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	dir := t.TempDir()
	inputs := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, fmt.Sprintf("doc%d.pdf", i))
		if err := os.WriteFile(path, []byte("not a pdf"), 0o600); err != nil {
			t.Fatalf("write fixture failed: %v", err)
		}
		inputs = append(inputs, path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	status, err := o.Submit(ctx, inputs)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	cancel()

	// Must return even when the feeder abandons jobs mid-flight: a
	// result channel that will never be written must not be waited on.
	o.Wait()

	if err := o.acquire(); err != nil {
		t.Errorf("scope still held after cancelled batch: %v", err)
	}
	o.release()

	if _, err := o.Status(context.Background(), status.ID); err != nil {
		t.Errorf("status lookup failed after cancellation: %v", err)
	}
}

func TestScopeGuardSerializesBatches(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	if err := o.acquire(); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := o.acquire(); err != ErrBatchInProgress {
		t.Errorf("second acquire = %v, want ErrBatchInProgress", err)
	}
	o.release()
	if err := o.acquire(); err != nil {
		t.Errorf("acquire after release failed: %v", err)
	}
	o.release()
}

func TestReconcilePersistsMatches(t *testing.T) {
	o, stores := newTestOrchestrator(t)
	ctx := context.Background()

	inst := &models.FinancialInstrument{
		ID:               "I1",
		Kind:             models.KindWireTransfer,
		Amount:           decimal.RequireFromString("-4989.78"),
		Date:             time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		CounterpartyName: "Rossi Costruzioni",
		DedupKey:         "ref:TRN123456789X",
		BatchID:          "B1",
		CreatedAt:        time.Now().UTC(),
	}
	if err := stores.Instruments.Insert(ctx, inst); err != nil {
		t.Fatalf("insert instrument failed: %v", err)
	}
	if err := stores.Invoices.Insert(ctx, &models.Invoice{
		ID:           "INV1",
		SupplierName: "Rossi Costruzioni SRL",
		TotalAmount:  decimal.RequireFromString("4989.78"),
		InvoiceDate:  time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("insert invoice failed: %v", err)
	}

	outcome, anomalies, err := o.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome.Summary.ExactMatches != 1 {
		t.Fatalf("expected 1 exact match, got %+v", outcome.Summary)
	}
	if len(anomalies) != 0 {
		t.Errorf("unexpected anomalies: %v", anomalies)
	}

	inv, err := stores.Invoices.Get(ctx, "INV1")
	if err != nil {
		t.Fatalf("get invoice failed: %v", err)
	}
	if inv.Status != models.InvoiceMatched {
		t.Errorf("invoice status = %s, want matched", inv.Status)
	}

	unmatched, err := stores.Instruments.ListUnmatched(ctx)
	if err != nil {
		t.Fatalf("list unmatched failed: %v", err)
	}
	if len(unmatched) != 0 {
		t.Errorf("bound instrument still listed as unmatched")
	}

	// A second run finds an empty pool and binds nothing new.
	outcome, _, err = o.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if len(outcome.Matches) != 0 {
		t.Errorf("second run produced %d new matches", len(outcome.Matches))
	}
}

func TestApplyOverrideRebind(t *testing.T) {
	o, stores := newTestOrchestrator(t)
	ctx := context.Background()

	for _, inv := range []*models.Invoice{
		{ID: "INV_OLD", SupplierName: "Rossi", TotalAmount: decimal.RequireFromString("500.00")},
		{ID: "INV_NEW", SupplierName: "Bianchi", TotalAmount: decimal.RequireFromString("500.20")},
	} {
		if err := stores.Invoices.Insert(ctx, inv); err != nil {
			t.Fatalf("insert invoice failed: %v", err)
		}
	}
	previous := &models.MatchResult{
		ID:            "M1",
		InstrumentIDs: []string{"I1"},
		InvoiceID:     "INV_OLD",
		MatchType:     models.MatchFuzzy,
		Confidence:    0.7,
		CreatedAt:     time.Now().UTC(),
	}
	if err := stores.Matches.Insert(ctx, previous); err != nil {
		t.Fatalf("insert match failed: %v", err)
	}
	if err := stores.Invoices.UpdateStatus(ctx, "INV_OLD", models.InvoiceMatched); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	override := matcher.Rebind(previous, []string{"I1"}, "INV_NEW", decimal.Zero)
	if err := o.ApplyOverride(ctx, override); err != nil {
		t.Fatalf("apply override failed: %v", err)
	}

	active, err := stores.Matches.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 1 || active[0].InvoiceID != "INV_NEW" || active[0].MatchType != models.MatchManual {
		t.Errorf("unexpected active bindings: %+v", active)
	}

	oldInv, _ := stores.Invoices.Get(ctx, "INV_OLD")
	if oldInv.Status != models.InvoiceOpen {
		t.Errorf("previous invoice status = %s, want open", oldInv.Status)
	}
	newInv, _ := stores.Invoices.Get(ctx, "INV_NEW")
	if newInv.Status != models.InvoicePaidPending {
		t.Errorf("new invoice status = %s, want paid_pending", newInv.Status)
	}
}
