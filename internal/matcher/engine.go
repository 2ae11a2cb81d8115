package matcher

import (
	"fmt"
	"time"

	"document-reconciliation-service/internal/models"
	"document-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine runs the ordered strategy chain over a pool of unmatched
// instruments and open invoices.
type Engine struct {
	config     *MatchingConfig
	strategies []Strategy
	logger     logger.Logger
}

// Outcome is the complete result of one reconciliation run
type Outcome struct {
	Matches              []*models.MatchResult
	UnmatchedInstruments []*models.FinancialInstrument
	OpenInvoices         []*models.Invoice
	Summary              Summary
}

// Summary provides aggregate statistics about a reconciliation run
type Summary struct {
	TotalInstruments     int
	TotalInvoices        int
	ExactMatches         int
	CombinationMatches   int
	FuzzyMatches         int
	UnmatchedInstruments int
	OpenInvoices         int
	TotalAmountMatched   decimal.Decimal
}

// NewEngine creates an engine with the default strategy chain:
// exact, combination, fuzzy, in that order.
func NewEngine(config *MatchingConfig, log logger.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engine{
		config: config,
		strategies: []Strategy{
			&exactStrategy{tolerance: config.ExactTolerance},
			&combinationStrategy{config: config},
			&fuzzyStrategy{config: config},
		},
		logger: log.WithComponent("matcher"),
	}, nil
}

// Reconcile runs every strategy in order against the pool. Each pass
// removes what it bound before the next pass runs. The run is
// deterministic: given the same pools and no external mutation,
// re-running yields the same bindings.
func (e *Engine) Reconcile(pool *Pool) *Outcome {
	outcome := &Outcome{
		Summary: Summary{
			TotalInstruments:   len(pool.Instruments),
			TotalInvoices:      len(pool.Invoices),
			TotalAmountMatched: decimal.Zero,
		},
	}

	for _, strategy := range e.strategies {
		results := strategy.TryMatch(pool)
		pool.apply(results)
		outcome.Matches = append(outcome.Matches, results...)

		e.logger.WithFields(logger.Fields{
			"strategy": strategy.Name(),
			"matches":  len(results),
			"pool":     len(pool.Instruments),
		}).Info("matching pass complete")
	}

	outcome.UnmatchedInstruments = append([]*models.FinancialInstrument(nil), pool.Instruments...)
	outcome.OpenInvoices = append([]*models.Invoice(nil), pool.Invoices...)

	for _, m := range outcome.Matches {
		switch m.MatchType {
		case models.MatchExact:
			outcome.Summary.ExactMatches++
		case models.MatchCombination:
			outcome.Summary.CombinationMatches++
		case models.MatchFuzzy:
			outcome.Summary.FuzzyMatches++
		}
	}
	outcome.Summary.UnmatchedInstruments = len(outcome.UnmatchedInstruments)
	outcome.Summary.OpenInvoices = len(outcome.OpenInvoices)
	return outcome
}

// Override is an explicit operator action on bindings. It is the only
// path that changes an existing binding: the superseded result is kept
// (never deleted) and its invoice reopened.
type Override struct {
	// Previous is the superseded result, nil when binding a previously
	// unmatched instrument.
	Previous *models.MatchResult
	// Replacement is the new binding, nil when the override only
	// clears the previous one.
	Replacement *models.MatchResult
	// ReopenedInvoiceID names the invoice to return to open status.
	ReopenedInvoiceID string
	// PendingInvoiceID names the invoice to mark paid-pending.
	PendingInvoiceID string
}

// Rebind builds the override that moves instruments from their current
// binding to a different invoice. The previous result is marked
// superseded, its invoice reopens, and the new invoice becomes
// paid-pending. Persistence is the caller's responsibility.
func Rebind(previous *models.MatchResult, instrumentIDs []string, newInvoiceID string, residual decimal.Decimal) *Override {
	override := &Override{
		Replacement: &models.MatchResult{
			ID:            uuid.NewString(),
			InstrumentIDs: instrumentIDs,
			InvoiceID:     newInvoiceID,
			MatchType:     models.MatchManual,
			Confidence:    1.0,
			ResidualDelta: residual,
			CreatedAt:     time.Now().UTC(),
		},
		PendingInvoiceID: newInvoiceID,
	}
	if previous != nil {
		previous.Superseded = true
		override.Previous = previous
		override.ReopenedInvoiceID = previous.InvoiceID
	}
	return override
}

// Clear builds the override that removes a binding without creating a
// new one, reopening the invoice.
func Clear(previous *models.MatchResult) *Override {
	previous.Superseded = true
	return &Override{
		Previous:          previous,
		ReopenedInvoiceID: previous.InvoiceID,
	}
}
