package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reconcileScope string

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile unmatched instruments against open invoices",
	Long: `Reconcile runs the matching passes (exact, combination, fuzzy) over
every unmatched instrument and open invoice, then re-validates all
active bindings and reports anomalies.

Ingestion already reconciles after each batch; this command absorbs
leftovers across batches and re-runs the diagnostic pass on demand.`,

	RunE: runReconcileCmd,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileScope, "scope", "default", "scope to reconcile under")
}

func runReconcileCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	log, err := buildLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	db, stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	orchestrator, err := buildOrchestrator(stores, reconcileScope, 0, log)
	if err != nil {
		return err
	}

	outcome, anomalies, err := orchestrator.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	s := outcome.Summary
	fmt.Fprintf(os.Stdout, "Reconciliation complete\n")
	fmt.Fprintf(os.Stdout, "  instruments: %d  invoices: %d\n", s.TotalInstruments, s.TotalInvoices)
	fmt.Fprintf(os.Stdout, "  exact: %d  combination: %d  fuzzy: %d\n", s.ExactMatches, s.CombinationMatches, s.FuzzyMatches)
	fmt.Fprintf(os.Stdout, "  unmatched instruments: %d  open invoices: %d\n", s.UnmatchedInstruments, s.OpenInvoices)

	if len(anomalies) > 0 {
		fmt.Fprintf(os.Stdout, "\nAnomalies (%d, review only, nothing changed):\n", len(anomalies))
		for _, a := range anomalies {
			fmt.Fprintf(os.Stdout, "  invoice %s: %s\n", a.InvoiceID, strings.Join(a.Reasons, ", "))
			for _, alt := range a.Alternatives {
				fmt.Fprintf(os.Stdout, "    alternative %s (amount delta %s)\n", alt.Invoice.ID, alt.AmountDelta.StringFixed(2))
			}
		}
	}

	if viper.GetBool("verbose") {
		for _, m := range outcome.Matches {
			fmt.Fprintf(os.Stderr, "match %s: %d instrument(s) -> invoice %s (%s, confidence %.2f)\n",
				m.ID, len(m.InstrumentIDs), m.InvoiceID, m.MatchType, m.Confidence)
		}
	}
	return nil
}
