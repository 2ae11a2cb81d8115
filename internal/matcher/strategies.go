package matcher

import (
	"sort"
	"time"

	"document-reconciliation-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Strategy is one pass of the matcher chain. TryMatch inspects the
// pool and returns the bindings it found; it must not mutate the pool
// itself — the engine applies results between passes. New strategies
// slot into the chain without touching the orchestration loop.
type Strategy interface {
	Name() string
	TryMatch(pool *Pool) []*models.MatchResult
}

func newResult(instrumentIDs []string, invoiceID string, mt models.MatchType, confidence float64, residual decimal.Decimal) *models.MatchResult {
	return &models.MatchResult{
		ID:            uuid.NewString(),
		InstrumentIDs: instrumentIDs,
		InvoiceID:     invoiceID,
		MatchType:     mt,
		Confidence:    confidence,
		ResidualDelta: residual,
		CreatedAt:     time.Now().UTC(),
	}
}

// exactStrategy binds single instruments whose amount falls within a
// fixed absolute tolerance of an invoice total. Invoices are processed
// largest-first; the first qualifying instrument wins.
type exactStrategy struct {
	tolerance decimal.Decimal
}

func (s *exactStrategy) Name() string { return "exact" }

func (s *exactStrategy) TryMatch(pool *Pool) []*models.MatchResult {
	var results []*models.MatchResult
	usedInstruments := make(map[string]bool)

	for _, inv := range pool.Invoices {
		for _, inst := range pool.Instruments {
			if usedInstruments[inst.ID] {
				continue
			}
			delta := inst.AbsAmount().Sub(inv.TotalAmount)
			if delta.Abs().LessThanOrEqual(s.tolerance) {
				usedInstruments[inst.ID] = true
				results = append(results, newResult(
					[]string{inst.ID}, inv.ID, models.MatchExact, 1.0, delta))
				break
			}
		}
	}
	return results
}

// combinationStrategy binds groups of instruments whose sum matches an
// invoice total. Two mechanisms run in order: a shortcut for recurring
// identical amounts (k installments of the same figure), then general
// subset enumeration under the expanding tolerance sequence,
// tightest-first so the most precise available match always wins.
type combinationStrategy struct {
	config *MatchingConfig
}

func (s *combinationStrategy) Name() string { return "combination" }

func (s *combinationStrategy) TryMatch(pool *Pool) []*models.MatchResult {
	results := s.matchRecurring(pool)

	// Work on a shadow pool so subset search sees what recurring
	// matching already consumed, without mutating the engine's pool.
	shadow := &Pool{
		Instruments: append([]*models.FinancialInstrument(nil), pool.Instruments...),
		Invoices:    append([]*models.Invoice(nil), pool.Invoices...),
	}
	shadow.apply(results)

	results = append(results, s.matchSubsets(shadow)...)
	return results
}

// matchRecurring handles the common installment pattern: the same
// amount recurring k times summing to one invoice. Tolerance scales
// with magnitude (fixed floor or percentage, whichever is larger) to
// absorb rounding drift across installments.
func (s *combinationStrategy) matchRecurring(pool *Pool) []*models.MatchResult {
	groups := make(map[string][]*models.FinancialInstrument)
	var order []string
	for _, inst := range pool.Instruments {
		key := inst.AbsAmount().Round(2).StringFixed(2)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], inst)
	}

	var results []*models.MatchResult
	usedInvoices := make(map[string]bool)

	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		amount := group[0].AbsAmount()

		for k := len(group); k >= 2; k-- {
			total := amount.Mul(decimal.NewFromInt(int64(k)))
			tolerance := s.scaledTolerance(total)

			matched := false
			for _, inv := range pool.Invoices {
				if usedInvoices[inv.ID] {
					continue
				}
				delta := total.Sub(inv.TotalAmount)
				if delta.Abs().LessThanOrEqual(tolerance) {
					ids := make([]string, 0, k)
					for _, inst := range group[:k] {
						ids = append(ids, inst.ID)
					}
					usedInvoices[inv.ID] = true
					results = append(results, newResult(
						ids, inv.ID, models.MatchCombination, 0.9, delta))
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}
	return results
}

func (s *combinationStrategy) scaledTolerance(total decimal.Decimal) decimal.Decimal {
	pct := total.Mul(s.config.RecurringTolerancePercent)
	if pct.GreaterThan(s.config.RecurringToleranceFloor) {
		return pct
	}
	return s.config.RecurringToleranceFloor
}

// matchSubsets enumerates instrument subsets of size 2..MaxGroupSize
// against the remaining invoices. The tolerance sequence expands
// tightest-first; the first subset found under the current tolerance
// binds in full.
func (s *combinationStrategy) matchSubsets(pool *Pool) []*models.MatchResult {
	var results []*models.MatchResult

	for _, tolerance := range s.config.CombinationTolerances {
		for _, inv := range append([]*models.Invoice(nil), pool.Invoices...) {
			subset := findSubset(pool.Instruments, inv.TotalAmount, tolerance, s.config.MaxGroupSize)
			if subset == nil {
				continue
			}

			ids := make([]string, 0, len(subset))
			sum := decimal.Zero
			for _, inst := range subset {
				ids = append(ids, inst.ID)
				sum = sum.Add(inst.AbsAmount())
			}
			result := newResult(ids, inv.ID, models.MatchCombination, 0.85, sum.Sub(inv.TotalAmount))
			results = append(results, result)
			pool.apply([]*models.MatchResult{result})
		}
	}
	return results
}

// findSubset runs a bounded depth-first search over instruments sorted
// largest-first, pruning branches whose remaining capacity cannot reach
// the target. Exponential in maxSize, which is why maxSize is capped.
func findSubset(instruments []*models.FinancialInstrument, target, tolerance decimal.Decimal, maxSize int) []*models.FinancialInstrument {
	sorted := append([]*models.FinancialInstrument(nil), instruments...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].AbsAmount().Equal(sorted[j].AbsAmount()) {
			return sorted[i].AbsAmount().GreaterThan(sorted[j].AbsAmount())
		}
		return sorted[i].ID < sorted[j].ID
	})

	var pick func(start int, sum decimal.Decimal, chosen []*models.FinancialInstrument) []*models.FinancialInstrument
	pick = func(start int, sum decimal.Decimal, chosen []*models.FinancialInstrument) []*models.FinancialInstrument {
		if len(chosen) >= 2 {
			if sum.Sub(target).Abs().LessThanOrEqual(tolerance) {
				out := make([]*models.FinancialInstrument, len(chosen))
				copy(out, chosen)
				return out
			}
		}
		if len(chosen) == maxSize {
			return nil
		}
		for i := start; i < len(sorted); i++ {
			next := sum.Add(sorted[i].AbsAmount())
			// Amounts are sorted descending: once even the current
			// instrument overshoots, smaller ones may still fit, but a
			// sum already past target+tolerance can only grow.
			if next.GreaterThan(target.Add(tolerance)) {
				continue
			}
			if found := pick(i+1, next, append(chosen, sorted[i])); found != nil {
				return found
			}
		}
		return nil
	}

	return pick(0, decimal.Zero, nil)
}

// fuzzyStrategy binds on counterparty/supplier name similarity when
// the amount alone is not decisive. A candidate qualifies only when the
// amount is within the extended tolerance AND similarity clears the
// threshold; the best similarity wins, ties broken by smallest date
// delta.
type fuzzyStrategy struct {
	config *MatchingConfig
}

func (s *fuzzyStrategy) Name() string { return "fuzzy" }

func (s *fuzzyStrategy) TryMatch(pool *Pool) []*models.MatchResult {
	var results []*models.MatchResult
	usedInvoices := make(map[string]bool)

	for _, inst := range pool.Instruments {
		if inst.CounterpartyName == "" {
			continue
		}

		var best *models.Invoice
		bestSim := 0.0
		var bestDateDelta time.Duration

		for _, inv := range pool.Invoices {
			if usedInvoices[inv.ID] {
				continue
			}
			delta := inst.AbsAmount().Sub(inv.TotalAmount).Abs()
			if delta.GreaterThan(s.config.FuzzyAmountTolerance) {
				continue
			}
			sim := TokenSetSimilarity(inst.CounterpartyName, inv.SupplierName)
			if sim < s.config.FuzzyMinSimilarity {
				continue
			}

			dateDelta := absDuration(inst.Date.Sub(inv.InvoiceDate))
			if sim > bestSim || (sim == bestSim && best != nil && dateDelta < bestDateDelta) {
				best = inv
				bestSim = sim
				bestDateDelta = dateDelta
			}
		}

		if best != nil {
			usedInvoices[best.ID] = true
			results = append(results, newResult(
				[]string{inst.ID}, best.ID, models.MatchFuzzy, bestSim,
				inst.AbsAmount().Sub(best.TotalAmount)))
		}
	}
	return results
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
