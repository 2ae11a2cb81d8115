package matcher

import (
	"sort"

	"document-reconciliation-service/internal/models"
)

// Pool holds the unmatched instruments and open invoices one
// reconciliation run operates on. The pool is mutated only within a
// single run and carries no synchronization: single-writer,
// sequential-per-batch semantics are required.
type Pool struct {
	Instruments []*models.FinancialInstrument
	Invoices    []*models.Invoice
}

// NewPool builds a pool with deterministic internal ordering:
// instruments by date then ID, invoices largest-first. Given the same
// inputs, every pass over the pool visits candidates in the same order.
func NewPool(instruments []*models.FinancialInstrument, invoices []*models.Invoice) *Pool {
	p := &Pool{
		Instruments: make([]*models.FinancialInstrument, len(instruments)),
		Invoices:    make([]*models.Invoice, len(invoices)),
	}
	copy(p.Instruments, instruments)
	copy(p.Invoices, invoices)

	sort.Slice(p.Instruments, func(i, j int) bool {
		if !p.Instruments[i].Date.Equal(p.Instruments[j].Date) {
			return p.Instruments[i].Date.Before(p.Instruments[j].Date)
		}
		return p.Instruments[i].ID < p.Instruments[j].ID
	})
	sort.Slice(p.Invoices, func(i, j int) bool {
		if !p.Invoices[i].TotalAmount.Equal(p.Invoices[j].TotalAmount) {
			return p.Invoices[i].TotalAmount.GreaterThan(p.Invoices[j].TotalAmount)
		}
		return p.Invoices[i].ID < p.Invoices[j].ID
	})
	return p
}

// RemoveInstruments drops the given instrument IDs from the pool
func (p *Pool) RemoveInstruments(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := p.Instruments[:0]
	for _, inst := range p.Instruments {
		if !drop[inst.ID] {
			kept = append(kept, inst)
		}
	}
	p.Instruments = kept
}

// RemoveInvoice drops one invoice from the pool
func (p *Pool) RemoveInvoice(id string) {
	kept := p.Invoices[:0]
	for _, inv := range p.Invoices {
		if inv.ID != id {
			kept = append(kept, inv)
		}
	}
	p.Invoices = kept
}

// apply removes everything a set of match results bound
func (p *Pool) apply(results []*models.MatchResult) {
	for _, r := range results {
		p.RemoveInstruments(r.InstrumentIDs)
		p.RemoveInvoice(r.InvoiceID)
	}
}
