// Package matcher binds unmatched financial instruments to open
// invoices through an ordered chain of matching strategies.
//
// The chain encodes an implicit confidence ranking: exact amount
// matches run first, then combination (subset-sum) matches, then fuzzy
// name matches. Each pass removes what it binds from the pool before
// the next pass runs, and every pass is a pure function of the current
// pool state, so re-running the chain over the same pools yields the
// same bindings.
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchingConfig holds the tunables of the strategy chain
type MatchingConfig struct {
	// ExactTolerance is the absolute amount tolerance of the exact pass.
	ExactTolerance decimal.Decimal

	// CombinationTolerances is the expanding tolerance sequence of the
	// subset-sum pass, tried tightest-first. The ordering decides which
	// match wins when several are plausible.
	CombinationTolerances []decimal.Decimal

	// MaxGroupSize caps subset enumeration. The search is exponential
	// in this value; 4-6 is the accuracy/cost trade-off.
	MaxGroupSize int

	// RecurringToleranceFloor and RecurringTolerancePercent shape the
	// magnitude-scaled tolerance of the recurring amount*k shortcut:
	// the larger of the two applies.
	RecurringToleranceFloor   decimal.Decimal
	RecurringTolerancePercent decimal.Decimal

	// FuzzyMinSimilarity is the minimum token-set similarity for the
	// fuzzy pass to accept a candidate.
	FuzzyMinSimilarity float64

	// FuzzyAmountTolerance is the extended amount tolerance of the
	// fuzzy pass.
	FuzzyAmountTolerance decimal.Decimal

	// AnomalyAmountTolerance and AnomalyMaxDateDeltaDays bound the
	// diagnostic re-validation of already-bound pairs.
	AnomalyAmountTolerance  decimal.Decimal
	AnomalyMaxDateDeltaDays int

	// AlternativeWindow is the amount proximity window for ranking
	// alternative invoice candidates in anomaly reports.
	AlternativeWindow decimal.Decimal
}

// DefaultMatchingConfig returns the production defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		ExactTolerance: decimal.NewFromFloat(0.50),
		CombinationTolerances: []decimal.Decimal{
			decimal.Zero,
			decimal.NewFromFloat(0.01),
			decimal.NewFromFloat(0.02),
			decimal.NewFromFloat(0.50),
			decimal.NewFromFloat(1.00),
		},
		MaxGroupSize:              5,
		RecurringToleranceFloor:   decimal.NewFromFloat(0.50),
		RecurringTolerancePercent: decimal.NewFromFloat(0.001),
		FuzzyMinSimilarity:        0.60,
		FuzzyAmountTolerance:      decimal.NewFromFloat(1.00),
		AnomalyAmountTolerance:    decimal.NewFromFloat(1.00),
		AnomalyMaxDateDeltaDays:   180,
		AlternativeWindow:         decimal.NewFromFloat(5.00),
	}
}

// Validate checks the configuration for consistency
func (mc *MatchingConfig) Validate() error {
	if mc.ExactTolerance.IsNegative() {
		return fmt.Errorf("exact tolerance cannot be negative")
	}
	if len(mc.CombinationTolerances) == 0 {
		return fmt.Errorf("combination tolerance sequence cannot be empty")
	}
	prev := decimal.NewFromInt(-1)
	for _, tol := range mc.CombinationTolerances {
		if tol.IsNegative() {
			return fmt.Errorf("combination tolerance cannot be negative: %s", tol)
		}
		if tol.LessThan(prev) {
			return fmt.Errorf("combination tolerances must be ordered tightest-first")
		}
		prev = tol
	}
	if mc.MaxGroupSize < 2 {
		return fmt.Errorf("max group size must be at least 2: %d", mc.MaxGroupSize)
	}
	if mc.MaxGroupSize > 8 {
		return fmt.Errorf("max group size above 8 makes subset search intractable: %d", mc.MaxGroupSize)
	}
	if mc.FuzzyMinSimilarity < 0 || mc.FuzzyMinSimilarity > 1 {
		return fmt.Errorf("fuzzy similarity threshold must be between 0 and 1: %f", mc.FuzzyMinSimilarity)
	}
	return nil
}

// Clone returns a deep copy of the configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	clone := *mc
	clone.CombinationTolerances = make([]decimal.Decimal, len(mc.CombinationTolerances))
	copy(clone.CombinationTolerances, mc.CombinationTolerances)
	return &clone
}
