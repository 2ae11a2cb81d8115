package batch

import (
	"context"

	"document-reconciliation-service/internal/matcher"
	"document-reconciliation-service/internal/models"
	"document-reconciliation-service/pkg/logger"
)

// Reconcile runs the matching passes over every unmatched instrument
// and open invoice, persists the resulting bindings, and re-validates
// all active bindings for anomalies. It runs once after each batch and
// can also be invoked standalone to absorb cross-batch leftovers; the
// run is idempotent because already-bound instruments never re-enter
// the pool.
func (o *Orchestrator) Reconcile(ctx context.Context) (*matcher.Outcome, []matcher.Anomaly, error) {
	instruments, err := o.stores.Instruments.ListUnmatched(ctx)
	if err != nil {
		return nil, nil, err
	}
	invoices, err := o.stores.Invoices.ListOpen(ctx)
	if err != nil {
		return nil, nil, err
	}

	outcome := o.engine.Reconcile(matcher.NewPool(instruments, invoices))

	for _, result := range outcome.Matches {
		if err := o.stores.Matches.Insert(ctx, result); err != nil {
			return nil, nil, err
		}
		if err := o.stores.Invoices.UpdateStatus(ctx, result.InvoiceID, models.InvoiceMatched); err != nil {
			return nil, nil, err
		}
	}

	anomalies, err := o.validateActive(ctx)
	if err != nil {
		return nil, nil, err
	}

	o.logger.WithFields(logger.Fields{
		"exact":       outcome.Summary.ExactMatches,
		"combination": outcome.Summary.CombinationMatches,
		"fuzzy":       outcome.Summary.FuzzyMatches,
		"unmatched":   outcome.Summary.UnmatchedInstruments,
		"anomalies":   len(anomalies),
	}).Info("reconciliation run complete")

	return outcome, anomalies, nil
}

// validateActive resolves every active binding into a bound pair and
// runs the diagnostic anomaly pass over them. Nothing is mutated;
// anomalies are surfaced for operator review.
func (o *Orchestrator) validateActive(ctx context.Context) ([]matcher.Anomaly, error) {
	active, err := o.stores.Matches.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	allInvoices, err := o.stores.Invoices.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	invoiceByID := make(map[string]*models.Invoice, len(allInvoices))
	for _, inv := range allInvoices {
		invoiceByID[inv.ID] = inv
	}

	pairs := make([]matcher.BoundPair, 0, len(active))
	for _, result := range active {
		instruments, err := o.stores.Instruments.GetByIDs(ctx, result.InstrumentIDs)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, matcher.BoundPair{
			Result:      result,
			Instruments: instruments,
			Invoice:     invoiceByID[result.InvoiceID],
		})
	}

	return o.engine.ValidateBindings(pairs, allInvoices), nil
}

// ApplyOverride persists an operator override: the superseded result is
// kept with its flag set, its invoice reopens, and the replacement (if
// any) is written with its invoice marked paid-pending.
func (o *Orchestrator) ApplyOverride(ctx context.Context, override *matcher.Override) error {
	if override.Previous != nil {
		if err := o.stores.Matches.Supersede(ctx, override.Previous.ID); err != nil {
			return err
		}
	}
	if override.ReopenedInvoiceID != "" {
		if err := o.stores.Invoices.UpdateStatus(ctx, override.ReopenedInvoiceID, models.InvoiceOpen); err != nil {
			return err
		}
	}
	if override.Replacement != nil {
		if err := o.stores.Matches.Insert(ctx, override.Replacement); err != nil {
			return err
		}
	}
	if override.PendingInvoiceID != "" {
		if err := o.stores.Invoices.UpdateStatus(ctx, override.PendingInvoiceID, models.InvoicePaidPending); err != nil {
			return err
		}
	}
	return nil
}
