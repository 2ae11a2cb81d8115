// Package dialect classifies extracted statement text into one of a
// closed set of known source formats.
//
// Detection is deterministic ordered signature matching: the first
// dialect whose full signature set appears (case-insensitively) in the
// text wins; no match yields Generic. There is no learning and no
// mutable state.
package dialect

import (
	"strings"

	"document-reconciliation-service/internal/models"
)

// signature is the set of markers that must all appear in the text for
// the dialect to match.
type signature struct {
	dialect models.Dialect
	markers []string
}

// Detection order matters: more specific signatures come first so a
// generic marker shared between layouts cannot shadow them.
var signatures = []signature{
	{models.DialectBancaIntesa, []string{"intesa sanpaolo"}},
	{models.DialectUniCredit, []string{"unicredit"}},
	{models.DialectBNL, []string{"bnl", "gruppo bnp paribas"}},
	{models.DialectMPS, []string{"monte dei paschi"}},
	{models.DialectCartaSi, []string{"cartasi"}},
}

// Detect classifies the concatenated page text of a document
func Detect(text string) models.Dialect {
	lower := strings.ToLower(text)
	for _, sig := range signatures {
		if matchesAll(lower, sig.markers) {
			return sig.dialect
		}
	}
	return models.DialectGeneric
}

func matchesAll(lower string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(lower, m) {
			return false
		}
	}
	return true
}
