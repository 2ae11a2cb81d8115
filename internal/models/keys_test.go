package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeOperationRef(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"trn 123-456/789", "TRN123456789"},
		{"  TRN123456789X ", "TRN123456789X"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeOperationRef(tt.input); got != tt.want {
			t.Errorf("NormalizeOperationRef(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWireTransferDedupKeyPrefersOperationRef(t *testing.T) {
	w := &WireTransfer{
		Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString("4989.78"),
		PayeeIBAN:    "IT40S0542811101000000654321",
		PayeeName:    "Rossi Costruzioni SRL",
		OperationRef: "TRN123456789X",
	}
	if got := w.ComputeDedupKey(); got != "ref:TRN123456789X" {
		t.Errorf("dedup key = %q, want ref:TRN123456789X", got)
	}

	// The same reference extracted with different casing and noise
	// still yields the identical key.
	noisy := *w
	noisy.OperationRef = "trn 123456789-x"
	if noisy.ComputeDedupKey() != w.ComputeDedupKey() {
		t.Error("normalized reference should produce the same key")
	}
}

func TestWireTransferDedupKeyFallback(t *testing.T) {
	base := WireTransfer{
		Date:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString("1500.00"),
		PayeeIBAN: "IT40S0542811101000000654321",
		PayeeName: "Rossi Costruzioni",
	}

	a := base
	b := base
	if a.ComputeDedupKey() != b.ComputeDedupKey() {
		t.Error("identical transfers must share a key")
	}
	if strings.HasPrefix(a.ComputeDedupKey(), "ref:") {
		t.Error("fallback key must not carry the ref prefix")
	}

	// Any constituent field changing changes the key.
	c := base
	c.Amount = decimal.RequireFromString("1500.01")
	if c.ComputeDedupKey() == a.ComputeDedupKey() {
		t.Error("different amount must change the key")
	}
	d := base
	d.Date = base.Date.AddDate(0, 0, 1)
	if d.ComputeDedupKey() == a.ComputeDedupKey() {
		t.Error("different date must change the key")
	}
}

func TestTransactionNaturalKey(t *testing.T) {
	tx := &Transaction{
		BookingDate: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Description: "pagamento   fornitore Rossi",
		Amount:      decimal.RequireFromString("-1234.56"),
	}
	want := "2024-01-03|PAGAMENTO FORNITORE ROSSI|-1234.56"
	if got := tx.NaturalKey(); got != want {
		t.Errorf("NaturalKey = %q, want %q", got, want)
	}

	// Long descriptions truncate to 40 characters so minor trailing
	// differences (reference numbers etc.) collapse onto one key.
	long := &Transaction{
		BookingDate: tx.BookingDate,
		Description: strings.Repeat("A", 45) + " suffix one",
		Amount:      tx.Amount,
	}
	longer := &Transaction{
		BookingDate: tx.BookingDate,
		Description: strings.Repeat("A", 45) + " suffix two",
		Amount:      tx.Amount,
	}
	if long.NaturalKey() != longer.NaturalKey() {
		t.Error("keys should collapse after 40-char truncation")
	}
}

func TestTransactionDedupKeyStable(t *testing.T) {
	tx := &Transaction{
		BookingDate: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Description: "CANONE MENSILE",
		Amount:      decimal.RequireFromString("-7.50"),
	}
	first := tx.ComputeDedupKey()
	second := tx.ComputeDedupKey()
	if first != second {
		t.Error("dedup key must be deterministic")
	}
	if len(first) != 64 {
		t.Errorf("expected sha256 hex key, got %d chars", len(first))
	}
}
