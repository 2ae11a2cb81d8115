package cmd

import (
	"context"
	"fmt"
	"os"

	"document-reconciliation-service/internal/models"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Show the status of an ingestion batch",
	Long: `Status prints the pollable record of a batch: lifecycle state, file
counters, duplicate count, and the bounded error sample.`,

	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := stores.Batches.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if status == nil {
		return fmt.Errorf("no batch with id %s", args[0])
	}

	printBatchStatus(status)
	return nil
}

func printBatchStatus(status *models.BatchStatus) {
	fmt.Fprintf(os.Stdout, "Batch %s\n", status.ID)
	fmt.Fprintf(os.Stdout, "  state:      %s\n", status.State)
	fmt.Fprintf(os.Stdout, "  files:      %d total, %d processed, %d imported\n",
		status.TotalFiles, status.ProcessedFiles, status.ImportedFiles)
	fmt.Fprintf(os.Stdout, "  duplicates: %d\n", status.DuplicatesSkipped)
	fmt.Fprintf(os.Stdout, "  created:    %s\n", status.CreatedAt.Format("2006-01-02 15:04:05"))
	if status.CompletedAt != nil {
		fmt.Fprintf(os.Stdout, "  completed:  %s\n", status.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if len(status.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "  errors (%d):\n", len(status.Errors))
		for _, e := range status.Errors {
			fmt.Fprintf(os.Stdout, "    %s\n", e)
		}
	}
}
