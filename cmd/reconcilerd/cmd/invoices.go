package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"document-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// invoicesCmd loads the open-invoice set the matcher reconciles
// against. Invoice data is owned by an external bookkeeping system and
// arrives as a CSV extract: id, supplier_name, total_amount,
// invoice_date (YYYY-MM-DD).
var invoicesCmd = &cobra.Command{
	Use:   "load-invoices <file.csv>",
	Short: "Load invoices from a CSV extract",
	Long: `Load-invoices imports invoice records from a CSV extract with the
columns: id, supplier_name, total_amount, invoice_date (YYYY-MM-DD).
A header row is detected and skipped. Amounts accept both plain
(1234.56) and continental (1.234,56) notation.`,

	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(args[0], "invoice file")
	},
	RunE: runLoadInvoices,
}

func init() {
	rootCmd.AddCommand(invoicesCmd)
}

func runLoadInvoices(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open invoice file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 4

	loaded := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("invalid csv at line %d: %w", line, err)
		}
		if line == 1 && record[0] == "id" {
			continue
		}

		inv, err := invoiceFromRecord(record)
		if err != nil {
			return fmt.Errorf("invalid invoice at line %d: %w", line, err)
		}
		if err := stores.Invoices.Insert(ctx, inv); err != nil {
			return err
		}
		loaded++
	}

	fmt.Fprintf(os.Stdout, "Loaded %d invoice(s)\n", loaded)
	return nil
}

func invoiceFromRecord(record []string) (*models.Invoice, error) {
	amount, err := decimal.NewFromString(record[2])
	if err != nil {
		amount, err = models.ParseAmount(record[2])
		if err != nil {
			return nil, fmt.Errorf("unparseable amount %q", record[2])
		}
	}

	var invoiceDate time.Time
	if record[3] != "" {
		invoiceDate, err = time.Parse("2006-01-02", record[3])
		if err != nil {
			return nil, fmt.Errorf("unparseable date %q", record[3])
		}
	}

	return &models.Invoice{
		ID:           record[0],
		SupplierName: record[1],
		TotalAmount:  amount,
		Status:       models.InvoiceOpen,
		InvoiceDate:  invoiceDate,
	}, nil
}
