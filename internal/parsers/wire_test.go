package parsers

import (
	"testing"
	"time"

	"document-reconciliation-service/internal/models"
	pkgerrors "document-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func confirmationPages(text string) []models.ExtractedPage {
	return []models.ExtractedPage{{Number: 1, Text: text}}
}

func TestWireExtractFullConfirmation(t *testing.T) {
	text := `DISPOSIZIONE DI BONIFICO
Data operazione: 10/03/2024
Beneficiario: ROSSI COSTRUZIONI SRL IT40S0542811101000000654321
Ordinante: ACME SPA IT60X0542811101000000123456
Importo: EUR 4.989,78
Causale: Saldo fattura 2024/017
Riferimento operazione: TRN123456789X
`

	we := NewWireTransferExtractor(nil)
	transfer, err := we.Extract(confirmationPages(text), "bonifico.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !transfer.Amount.Equal(decimal.RequireFromString("4989.78")) {
		t.Errorf("amount = %s, want 4989.78", transfer.Amount)
	}
	if !transfer.Date.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %s", transfer.Date)
	}
	if transfer.PayeeIBAN != "IT40S0542811101000000654321" {
		t.Errorf("payee IBAN = %q", transfer.PayeeIBAN)
	}
	if transfer.PayerIBAN != "IT60X0542811101000000123456" {
		t.Errorf("payer IBAN = %q", transfer.PayerIBAN)
	}
	if transfer.PayeeName != "ROSSI COSTRUZIONI SRL" {
		t.Errorf("payee name = %q", transfer.PayeeName)
	}
	if transfer.PayerName != "ACME SPA" {
		t.Errorf("payer name = %q", transfer.PayerName)
	}
	if transfer.OperationRef != "TRN123456789X" {
		t.Errorf("operation ref = %q", transfer.OperationRef)
	}
	if transfer.Description != "Saldo fattura 2024/017" {
		t.Errorf("description = %q", transfer.Description)
	}
	if transfer.Currency != "EUR" {
		t.Errorf("currency = %q", transfer.Currency)
	}
	if transfer.DedupKey != "ref:TRN123456789X" {
		t.Errorf("dedup key = %q", transfer.DedupKey)
	}
}

func TestWireExtractLabelledAmountWins(t *testing.T) {
	// A commission figure appears before the labelled amount; the
	// labelled one must win.
	text := `Bonifico SEPA
Commissioni: 2,50
Importo: 1.500,00
`
	we := NewWireTransferExtractor(nil)
	transfer, err := we.Extract(confirmationPages(text), "b.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transfer.Amount.Equal(decimal.RequireFromString("1500")) {
		t.Errorf("amount = %s, want 1500", transfer.Amount)
	}
}

func TestWireExtractAnyAmountFallback(t *testing.T) {
	text := "Bonifico eseguito per 750,25 in data 01/02/2024\n"

	we := NewWireTransferExtractor(nil)
	transfer, err := we.Extract(confirmationPages(text), "b.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transfer.Amount.Equal(decimal.RequireFromString("750.25")) {
		t.Errorf("amount = %s, want 750.25", transfer.Amount)
	}
}

func TestWireExtractMissingAmount(t *testing.T) {
	text := "Conferma di disposizione senza importo leggibile\n"

	we := NewWireTransferExtractor(nil)
	_, err := we.Extract(confirmationPages(text), "vuoto.pdf")
	if err == nil {
		t.Fatal("expected an error for a confirmation without amount")
	}
	if code := pkgerrors.GetCode(err); code != pkgerrors.CodeMissingAmount {
		t.Errorf("error code = %s, want %s", code, pkgerrors.CodeMissingAmount)
	}
}

func TestWireExtractTextualDate(t *testing.T) {
	text := `Disposizione di bonifico del 10 marzo 2024
Importo: 300,00
`
	we := NewWireTransferExtractor(nil)
	transfer, err := we.Extract(confirmationPages(text), "b.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transfer.Date.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %s, want 10 March 2024", transfer.Date)
	}
}

func TestWireExtractFallbackKeyWithoutRef(t *testing.T) {
	text := `Bonifico
Data: 05/04/2024
Beneficiario: VERDI IMPIANTI SNC
Importo: 980,00
`
	we := NewWireTransferExtractor(nil)
	transfer, err := we.Extract(confirmationPages(text), "b.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transfer.OperationRef != "" {
		t.Errorf("unexpected operation ref %q", transfer.OperationRef)
	}
	if transfer.DedupKey == "" || len(transfer.DedupKey) != 64 {
		t.Errorf("expected sha256 fallback key, got %q", transfer.DedupKey)
	}

	// Re-extracting the identical document yields the identical key.
	again, err := we.Extract(confirmationPages(text), "b.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.DedupKey != transfer.DedupKey {
		t.Error("dedup key must be stable across re-extraction")
	}
}
