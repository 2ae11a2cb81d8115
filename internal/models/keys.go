package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizeOperationRef canonicalizes a bank-assigned operation
// reference so the same transfer re-extracted from the same document
// always yields an identical key.
func NormalizeOperationRef(ref string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(strings.TrimSpace(ref)), "")
}

// NaturalKey returns the composite key (date, truncated description,
// amount) used for in-parse deduplication of statement rows. The same
// row surfaced by both the text and the table extraction pass collapses
// onto one key.
func (t *Transaction) NaturalKey() string {
	desc := strings.ToUpper(strings.Join(strings.Fields(t.Description), " "))
	if len(desc) > 40 {
		desc = desc[:40]
	}
	return fmt.Sprintf("%s|%s|%s", t.BookingDate.Format("2006-01-02"), desc, t.Amount.StringFixed(2))
}

// ComputeDedupKey returns the cross-batch fingerprint of a statement
// transaction. Statements carry no bank reference per row, so the
// natural key doubles as the real-world identity.
func (t *Transaction) ComputeDedupKey() string {
	sum := sha256.Sum256([]byte("txn|" + t.NaturalKey()))
	return hex.EncodeToString(sum[:])
}

// ComputeDedupKey returns the fingerprint identifying this transfer
// across re-ingestion attempts. The operation reference is preferred
// when present (it is bank-assigned and unique); otherwise the key is a
// hash of date, amount, the tail of the beneficiary IBAN and the
// beneficiary name.
func (w *WireTransfer) ComputeDedupKey() string {
	if ref := NormalizeOperationRef(w.OperationRef); ref != "" {
		return "ref:" + ref
	}

	iban := NormalizeOperationRef(w.PayeeIBAN)
	if len(iban) > 12 {
		iban = iban[len(iban)-12:]
	}
	name := strings.ToUpper(strings.Join(strings.Fields(w.PayeeName), " "))

	payload := fmt.Sprintf("wire|%s|%s|%s|%s",
		w.Date.Format("2006-01-02"), w.Amount.StringFixed(2), iban, name)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
