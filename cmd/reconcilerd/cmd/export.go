package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"document-reconciliation-service/internal/export"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the export command
var (
	exportFormat string
	exportOutput string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the instrument set to CSV or XLSX",
	Long: `Export serializes every persisted instrument, with its active
invoice binding if any, for downstream accounting tools.

Examples:
  reconcilerd export --format csv --output instruments.csv
  reconcilerd export --format xlsx --output instruments.xlsx`,

	PreRunE: validateExportFlags,
	RunE:    runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv, xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path (default: stdout, csv only)")

	viper.BindPFlag("export-format", exportCmd.Flags().Lookup("format"))
	viper.BindPFlag("export-output", exportCmd.Flags().Lookup("output"))
}

func validateExportFlags(cmd *cobra.Command, args []string) error {
	exportFormat = viper.GetString("export-format")
	exportOutput = viper.GetString("export-output")

	if _, err := export.ParseFormat(exportFormat); err != nil {
		return err
	}
	if exportFormat == string(export.FormatXLSX) && exportOutput == "" {
		return fmt.Errorf("xlsx export requires --output")
	}
	if exportOutput != "" {
		dir := filepath.Dir(exportOutput)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	instruments, err := stores.Instruments.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list instruments: %w", err)
	}
	active, err := stores.Matches.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bindings: %w", err)
	}
	rows := export.BuildRows(instruments, active)

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch export.Format(exportFormat) {
	case export.FormatXLSX:
		err = export.WriteXLSX(out, rows)
	default:
		err = export.WriteCSV(out, rows)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if exportOutput != "" {
		fmt.Fprintf(os.Stderr, "Exported %d instrument(s) to %s\n", len(rows), exportOutput)
	}
	return nil
}
