package parsers

import (
	"testing"
	"time"

	"document-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func tablePages(rows [][]string) []models.ExtractedPage {
	return []models.ExtractedPage{{
		Number: 1,
		Tables: []models.Table{{Rows: rows}},
	}}
}

func textPages(text string) []models.ExtractedPage {
	return []models.ExtractedPage{{Number: 1, Text: text}}
}

func TestParseTableGrammar(t *testing.T) {
	pages := tablePages([][]string{
		{"Estratto conto n. 1/2024"},
		{"Data", "Data Valuta", "Descrizione operazioni", "Addebiti", "Accrediti"},
		{"03/01/2024", "04/01/2024", "PAGAMENTO FORNITORE ROSSI", "1.234,56", ""},
		{"05/01/2024", "05/01/2024", "BONIFICO DA CLIENTE BIANCHI", "", "2.500,00"},
		{"31/01/2024", "", "SALDO FINALE", "", "1.265,44"},
	})

	sp := NewStatementParser(nil)
	txs := sp.Parse(pages, models.DialectBancaIntesa, "estratto.pdf")

	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}

	first := txs[0]
	if !first.Amount.Equal(decimal.RequireFromString("-1234.56")) {
		t.Errorf("debit column should yield a negative amount, got %s", first.Amount)
	}
	if !first.BookingDate.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected booking date %s", first.BookingDate)
	}
	if !first.ValueDate.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected value date %s", first.ValueDate)
	}
	if first.Dialect != models.DialectBancaIntesa || first.SourceFile != "estratto.pdf" {
		t.Error("dialect and source file should be stamped on every row")
	}

	second := txs[1]
	if !second.Amount.Equal(decimal.RequireFromString("2500")) {
		t.Errorf("credit column should yield a positive amount, got %s", second.Amount)
	}
}

func TestParseRejectsBalanceRows(t *testing.T) {
	pages := tablePages([][]string{
		{"Data", "Descrizione", "Importo"},
		{"01/01/2024", "SALDO INIZIALE", "5.000,00"},
		{"02/01/2024", "TOTALE USCITE", "1.200,00"},
		{"03/01/2024", "CANONE MENSILE", "-7,50"},
		{"04/01/2024", "1.000,00", "1.000,00"}, // stray balance figure as description
	})

	sp := NewStatementParser(nil)
	txs := sp.Parse(pages, models.DialectUniCredit, "test.pdf")

	if len(txs) != 1 {
		t.Fatalf("expected only the canone row to survive, got %d rows", len(txs))
	}
	if txs[0].Description != "CANONE MENSILE" {
		t.Errorf("unexpected survivor: %q", txs[0].Description)
	}
}

func TestParseCardStatementDefaultSign(t *testing.T) {
	text := "CartaSi estratto conto\n" +
		"05/01/2024 SUPERMERCATO ESSELUNGA MILANO 84,30\n" +
		"08/01/2024 RIMBORSO QUOTA 12,00+\n"

	sp := NewStatementParser(nil)
	txs := sp.Parse(textPages(text), models.DialectCartaSi, "carta.pdf")

	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	// Unsigned card rows are charges.
	if !txs[0].Amount.Equal(decimal.RequireFromString("-84.30")) {
		t.Errorf("unsigned card amount should be negative, got %s", txs[0].Amount)
	}
	// An explicit trailing plus keeps the credit direction.
	if !txs[1].Amount.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("explicitly signed credit mangled: %s", txs[1].Amount)
	}
}

func TestParseLineGrammarWithValueDate(t *testing.T) {
	text := "03/01/2024 05/01/2024 PAGAMENTO UTENZE ENEL -156,78\n"

	sp := NewStatementParser(nil)
	txs := sp.Parse(textPages(text), models.DialectBNL, "bnl.pdf")

	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]
	if !tx.ValueDate.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("value date not parsed: %s", tx.ValueDate)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("-156.78")) {
		t.Errorf("unexpected amount %s", tx.Amount)
	}
}

func TestParseGenericFallbackSingleLine(t *testing.T) {
	// A statement from an unknown bank with a single parseable line
	// still yields one transaction through the generic fallback.
	text := "Banca Qualunque SpA\nMovimenti del periodo\n" +
		"15/03/2024 BONIFICO A FAVORE DI BIANCHI SRL 2.500,00\n"

	sp := NewStatementParser(nil)
	txs := sp.Parse(textPages(text), models.DialectGeneric, "unknown.pdf")

	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction via generic fallback, got %d", len(txs))
	}
	if txs[0].Description != "BONIFICO A FAVORE DI BIANCHI SRL" {
		t.Errorf("unexpected description %q", txs[0].Description)
	}
	if !txs[0].Amount.Equal(decimal.RequireFromString("2500")) {
		t.Errorf("unexpected amount %s", txs[0].Amount)
	}
}

func TestParseDialectFallsBackToGeneric(t *testing.T) {
	// A document detected as a table dialect but carrying only loose
	// text lines goes through the generic fallback.
	text := "20/02/2024 PRELIEVO ATM VIA ROMA 250,00\n"

	sp := NewStatementParser(nil)
	txs := sp.Parse(textPages(text), models.DialectBancaIntesa, "atm.pdf")

	if len(txs) != 1 {
		t.Fatalf("expected generic fallback to recover 1 row, got %d", len(txs))
	}
	if txs[0].Dialect != models.DialectBancaIntesa {
		t.Error("rows keep the detected dialect even when the fallback parsed them")
	}
}

func TestParseCollapsesNaturalKeyDuplicates(t *testing.T) {
	// The same row surfaced twice (text pass and table pass) must
	// collapse onto one transaction.
	pages := []models.ExtractedPage{{
		Number: 1,
		Text:   "03/01/2024 CANONE MENSILE 7,50-\n",
		Tables: []models.Table{{Rows: [][]string{
			{"Data", "Descrizione", "Importo"},
			{"03/01/2024", "CANONE MENSILE", "7,50-"},
		}}},
	}}

	sp := NewStatementParser(nil)
	txs := sp.Parse(pages, models.DialectGeneric, "dup.pdf")

	if len(txs) != 1 {
		t.Fatalf("expected duplicate rows to collapse, got %d", len(txs))
	}
}
