// Package models defines the domain types shared across the document
// ingestion and reconciliation pipeline: parsed statement transactions,
// wire transfers, the normalized financial instrument the matcher
// operates on, invoices, match results, and batch status records.
//
// All monetary values are decimal.Decimal; floats never carry amounts.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Dialect identifies the source-specific statement layout a document
// was parsed with. The set is closed; anything unrecognized is Generic.
type Dialect string

const (
	DialectBancaIntesa Dialect = "BANCA_INTESA"
	DialectUniCredit   Dialect = "UNICREDIT"
	DialectBNL         Dialect = "BNL"
	DialectMPS         Dialect = "MPS"
	DialectCartaSi     Dialect = "CARTASI"
	DialectGeneric     Dialect = "GENERIC"
)

// String returns the string representation of the dialect
func (d Dialect) String() string {
	return string(d)
}

// IsValid checks if the dialect is one of the known values
func (d Dialect) IsValid() bool {
	switch d {
	case DialectBancaIntesa, DialectUniCredit, DialectBNL, DialectMPS, DialectCartaSi, DialectGeneric:
		return true
	}
	return false
}

// KnownDialects lists the non-generic dialects in detection order
func KnownDialects() []Dialect {
	return []Dialect{DialectBancaIntesa, DialectUniCredit, DialectBNL, DialectMPS, DialectCartaSi}
}

// Transaction is a single statement row extracted from a bank
// statement document. Immutable once produced.
type Transaction struct {
	BookingDate time.Time       `json:"bookingDate"`
	ValueDate   time.Time       `json:"valueDate"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Dialect     Dialect         `json:"dialect"`
	SourceFile  string          `json:"sourceFile"`
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if t.BookingDate.IsZero() {
		return fmt.Errorf("transaction booking date cannot be zero")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction description cannot be empty")
	}
	if !t.Dialect.IsValid() {
		return fmt.Errorf("invalid dialect: %s", t.Dialect)
	}
	return nil
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{Date: %s, Amount: %s, Desc: %.40q}",
		t.BookingDate.Format("2006-01-02"), t.Amount.String(), t.Description)
}

// WireTransfer is a transfer record extracted from a confirmation
// document. Amount is the only load-bearing field; everything else is
// best-effort.
type WireTransfer struct {
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PayerName    string          `json:"payerName"`
	PayerIBAN    string          `json:"payerIban"`
	PayeeName    string          `json:"payeeName"`
	PayeeIBAN    string          `json:"payeeIban"`
	Description  string          `json:"description"`
	OperationRef string          `json:"operationReference"`
	DedupKey     string          `json:"dedupKey"`
	SourceFile   string          `json:"sourceFile"`
}

// Validate checks that the transfer carries a resolvable amount
func (w *WireTransfer) Validate() error {
	if w.Amount.IsZero() {
		return fmt.Errorf("wire transfer amount cannot be zero")
	}
	return nil
}

// InstrumentKind discriminates the origin of a financial instrument
type InstrumentKind string

const (
	KindTransaction  InstrumentKind = "transaction"
	KindWireTransfer InstrumentKind = "wire_transfer"
	KindCheck        InstrumentKind = "check"
)

// IsValid checks if the instrument kind is valid
func (k InstrumentKind) IsValid() bool {
	return k == KindTransaction || k == KindWireTransfer || k == KindCheck
}

// FinancialInstrument is the normalized matchable view of any
// financial event: a statement transaction, a wire transfer, or an
// externally issued check record.
type FinancialInstrument struct {
	ID               string          `json:"id"`
	Kind             InstrumentKind  `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	Date             time.Time       `json:"date"`
	CounterpartyName string          `json:"counterpartyName"`
	SourceRef        string          `json:"sourceReference"`
	DedupKey         string          `json:"dedupKey"`
	BatchID          string          `json:"batchId"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Validate performs basic validation on the instrument
func (fi *FinancialInstrument) Validate() error {
	if strings.TrimSpace(fi.ID) == "" {
		return fmt.Errorf("instrument ID cannot be empty")
	}
	if !fi.Kind.IsValid() {
		return fmt.Errorf("invalid instrument kind: %s", fi.Kind)
	}
	if fi.Amount.IsZero() {
		return fmt.Errorf("instrument amount cannot be zero")
	}
	if strings.TrimSpace(fi.DedupKey) == "" {
		return fmt.Errorf("instrument dedup key cannot be empty")
	}
	return nil
}

// AbsAmount returns the absolute value of the instrument amount
func (fi *FinancialInstrument) AbsAmount() decimal.Decimal {
	return fi.Amount.Abs()
}

// String returns a string representation of the instrument
func (fi *FinancialInstrument) String() string {
	return fmt.Sprintf("Instrument{ID: %s, Kind: %s, Amount: %s, Counterparty: %q}",
		fi.ID, fi.Kind, fi.Amount.String(), fi.CounterpartyName)
}

// InvoiceStatus tracks the payment lifecycle of an invoice
type InvoiceStatus string

const (
	InvoiceOpen        InvoiceStatus = "open"
	InvoiceMatched     InvoiceStatus = "matched"
	InvoicePaidPending InvoiceStatus = "paid_pending"
	InvoicePaid        InvoiceStatus = "paid"
)

// IsOpen reports whether the invoice can still accept a binding
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceOpen
}

// Invoice is the read-mostly external record instruments reconcile
// against.
type Invoice struct {
	ID           string          `json:"id"`
	SupplierName string          `json:"supplierName"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Status       InvoiceStatus   `json:"paymentStatus"`
	InvoiceDate  time.Time       `json:"invoiceDate"`
}

// Validate performs basic validation on the Invoice
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}
	if inv.TotalAmount.IsZero() {
		return fmt.Errorf("invoice total cannot be zero")
	}
	return nil
}

// MatchType classifies how a binding was produced
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchCombination MatchType = "combination"
	MatchFuzzy       MatchType = "fuzzy"
	MatchManual      MatchType = "manual"
)

// IsValid checks if the match type is valid
func (mt MatchType) IsValid() bool {
	switch mt {
	case MatchExact, MatchCombination, MatchFuzzy, MatchManual:
		return true
	}
	return false
}

// MatchResult is a durable instrument-to-invoice binding. Results are
// never deleted: a rebind supersedes the previous result and reopens
// its invoice.
type MatchResult struct {
	ID            string          `json:"id"`
	InstrumentIDs []string        `json:"instrumentIds"`
	InvoiceID     string          `json:"invoiceId"`
	MatchType     MatchType       `json:"matchType"`
	Confidence    float64         `json:"confidence"`
	ResidualDelta decimal.Decimal `json:"residualDelta"`
	Superseded    bool            `json:"superseded"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Validate performs basic validation on the MatchResult
func (mr *MatchResult) Validate() error {
	if len(mr.InstrumentIDs) == 0 {
		return fmt.Errorf("match result must bind at least one instrument")
	}
	if strings.TrimSpace(mr.InvoiceID) == "" {
		return fmt.Errorf("match result invoice ID cannot be empty")
	}
	if !mr.MatchType.IsValid() {
		return fmt.Errorf("invalid match type: %s", mr.MatchType)
	}
	if mr.Confidence < 0 || mr.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1: %f", mr.Confidence)
	}
	return nil
}

// BatchState is the lifecycle state of an ingestion batch. There is no
// failed terminal state: per-document failures are counted and the
// batch still completes.
type BatchState string

const (
	BatchCreated    BatchState = "CREATED"
	BatchQueued     BatchState = "QUEUED"
	BatchProcessing BatchState = "PROCESSING"
	BatchCompleted  BatchState = "COMPLETED"
)

// BatchStatus is the pollable status record of one ingestion batch
type BatchStatus struct {
	ID                string     `json:"id"`
	State             BatchState `json:"status"`
	TotalFiles        int        `json:"totalFiles"`
	ProcessedFiles    int        `json:"processedFiles"`
	ImportedFiles     int        `json:"importedFiles"`
	DuplicatesSkipped int        `json:"duplicatesSkipped"`
	Errors            []string   `json:"errors,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// ExtractedPage is one page of a document after text extraction: the
// page text plus zero or more recovered tables. Consumed immediately by
// the parsers, never persisted.
type ExtractedPage struct {
	Number int
	Text   string
	Tables []Table
}

// Table is an ordered sequence of rows of cell strings
type Table struct {
	Rows [][]string
}

// IsEmpty reports whether the page yielded neither text nor tables
func (p *ExtractedPage) IsEmpty() bool {
	if strings.TrimSpace(p.Text) != "" {
		return false
	}
	for _, t := range p.Tables {
		if len(t.Rows) > 0 {
			return false
		}
	}
	return true
}
