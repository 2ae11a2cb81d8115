package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the ingest command
var (
	ingestScope   string
	ingestWorkers int
	ingestWait    bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|zip> [...]",
	Short: "Ingest bank statements and transfer confirmations",
	Long: `Ingest runs the document pipeline over the given inputs: PDF files,
directories of PDFs, or zip archives of PDFs. Documents are extracted,
parsed, deduplicated, persisted, and reconciled against open invoices.

Examples:
  # A directory of statements
  reconcilerd ingest statements/

  # An archive plus a single confirmation, under a named scope
  reconcilerd ingest upload.zip bonifico.pdf --scope acme

  # Queue the batch without waiting for completion
  reconcilerd ingest statements/ --wait=false`,

	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateIngestFlags,
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestScope, "scope", "default", "dedup and invoice scope the batch runs under")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "parallel extraction workers")
	ingestCmd.Flags().BoolVar(&ingestWait, "wait", true, "block until the batch completes")

	viper.BindPFlag("scope", ingestCmd.Flags().Lookup("scope"))
	viper.BindPFlag("workers", ingestCmd.Flags().Lookup("workers"))
}

func validateIngestFlags(cmd *cobra.Command, args []string) error {
	ingestScope = viper.GetString("scope")
	ingestWorkers = viper.GetInt("workers")

	if ingestWorkers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	for i, input := range args {
		if err := validateFileExists(input, fmt.Sprintf("input %d", i+1)); err != nil {
			return err
		}
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	orchestrator, err := buildOrchestrator(stores, ingestScope, ingestWorkers, log)
	if err != nil {
		return err
	}

	status, err := orchestrator.Submit(ctx, args)
	if err != nil {
		return fmt.Errorf("failed to submit batch: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Batch %s queued (%d files)\n", status.ID, status.TotalFiles)
	if !ingestWait {
		return nil
	}

	orchestrator.Wait()

	final, err := orchestrator.Status(ctx, status.ID)
	if err != nil {
		return err
	}
	printBatchStatus(final)
	return nil
}
