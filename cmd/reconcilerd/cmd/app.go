package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"document-reconciliation-service/internal/batch"
	"document-reconciliation-service/internal/repository"
	"document-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

// buildLogger creates the process logger from the global flags
func buildLogger() (logger.Logger, error) {
	cfg := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		cfg.Level = "debug"
	}
	return logger.NewLogger(cfg)
}

// openStores opens the database and wires the persistence stores. The
// returned *sql.DB must be closed by the caller.
func openStores(ctx context.Context) (*sql.DB, batch.Stores, error) {
	db, err := repository.Open(ctx, viper.GetString("db"))
	if err != nil {
		return nil, batch.Stores{}, fmt.Errorf("failed to open database: %w", err)
	}
	stores := batch.Stores{
		Instruments: repository.NewInstrumentStore(db),
		Invoices:    repository.NewInvoiceStore(db),
		Matches:     repository.NewMatchStore(db),
		Batches:     repository.NewBatchStore(db),
	}
	return db, stores, nil
}

// buildOrchestrator assembles the batch orchestrator from the global
// and per-command configuration.
func buildOrchestrator(stores batch.Stores, scope string, workers int, log logger.Logger) (*batch.Orchestrator, error) {
	cfg := batch.DefaultConfig()
	if scope != "" {
		cfg.Scope = scope
	}
	if workers > 0 {
		cfg.ExtractWorkers = workers
	}
	return batch.New(cfg, nil, stores, log)
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	} else if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	return nil
}
