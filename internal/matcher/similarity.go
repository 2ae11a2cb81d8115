package matcher

import (
	"regexp"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Legal-form suffixes and connectives carry no identity and would
// inflate similarity between unrelated companies.
var nameStopwords = map[string]bool{
	"srl": true, "spa": true, "snc": true, "sas": true, "sapa": true,
	"srls": true, "scarl": true, "societa": true, "soc": true, "coop": true,
	"di": true, "e": true, "il": true, "la": true, "ltd": true, "llc": true,
	"gmbh": true, "inc": true, "co": true, "company": true,
}

var nameCleaner = regexp.MustCompile(`[^a-z0-9\s]`)

func nameTokens(name string) []string {
	lower := nameCleaner.ReplaceAllString(strings.ToLower(name), " ")
	var tokens []string
	for _, tok := range strings.Fields(lower) {
		if len(tok) < 2 || nameStopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokenSetSimilarity scores how well two counterparty names refer to
// the same party, in [0,1]. Each token of one name is paired with its
// best Levenshtein ratio among the other name's tokens; the two
// directional scores are length-weighted and averaged, so word order
// and boilerplate differences cost little while genuinely different
// names score low.
func TokenSetSimilarity(a, b string) float64 {
	ta, tb := nameTokens(a), nameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	return (directionalScore(ta, tb) + directionalScore(tb, ta)) / 2
}

func directionalScore(from, to []string) float64 {
	var weighted, totalWeight float64
	for _, tok := range from {
		best := 0.0
		for _, other := range to {
			r := levenshtein.RatioForStrings([]rune(tok), []rune(other), levenshtein.DefaultOptions)
			if r > best {
				best = r
			}
		}
		w := float64(len(tok))
		weighted += best * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}
