// Package batch drives the document pipeline over a batch of uploads:
// staging (including zip expansion), parallel text extraction, the
// single-writer parse/dedup/persist stage, and the reconciliation run
// that follows ingestion.
//
// Batches progress CREATED -> QUEUED -> PROCESSING -> COMPLETED. There
// is no failed terminal state: per-document errors are counted into a
// bounded sample and the batch completes around them. Only a
// persistence failure halts a batch, leaving it retryable.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"document-reconciliation-service/internal/dedup"
	"document-reconciliation-service/internal/dialect"
	"document-reconciliation-service/internal/extractor"
	"document-reconciliation-service/internal/matcher"
	"document-reconciliation-service/internal/models"
	"document-reconciliation-service/internal/parsers"
	"document-reconciliation-service/internal/repository"
	pkgerrors "document-reconciliation-service/pkg/errors"
	"document-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// ErrBatchInProgress is returned when a batch is submitted while
// another batch against the same scope is still running. The dedup
// index and invoice pool are single-writer; concurrent batches on one
// scope must be serialized.
var ErrBatchInProgress = fmt.Errorf("a batch is already running for this scope")

// Stores bundles the persistence dependencies of the orchestrator
type Stores struct {
	Instruments repository.InstrumentStore
	Invoices    repository.InvoiceStore
	Matches     repository.MatchStore
	Batches     repository.BatchStore
}

// Orchestrator runs ingestion batches and the per-batch reconciliation
type Orchestrator struct {
	config    *Config
	stores    Stores
	extractor *extractor.Extractor
	statement *parsers.StatementParser
	wire      *parsers.WireTransferExtractor
	engine    *matcher.Engine
	logger    logger.Logger

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// New creates a batch orchestrator. A nil config or matching config
// selects the defaults.
func New(config *Config, matchingConfig *matcher.MatchingConfig, stores Stores, log logger.Logger) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CategoryConfiguration, pkgerrors.CodeInvalidConfig, "invalid batch configuration")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	engine, err := matcher.NewEngine(matchingConfig, log)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:    config,
		stores:    stores,
		extractor: extractor.New(config.PageCap, log),
		statement: parsers.NewStatementParser(log),
		wire:      parsers.NewWireTransferExtractor(log),
		engine:    engine,
		logger:    log.WithComponent("batch"),
		running:   make(map[string]bool),
	}, nil
}

// Submit stages the given inputs (PDF files, directories, or zip
// archives of PDFs), persists the batch record, and starts processing
// in the background. It returns as soon as the batch is queued; poll
// Status or call Wait for completion.
func (o *Orchestrator) Submit(ctx context.Context, inputs []string) (*models.BatchStatus, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := &models.BatchStatus{
		ID:        uuid.NewString(),
		State:     models.BatchCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.stores.Batches.Create(ctx, status); err != nil {
		o.release()
		return nil, err
	}

	dir := filepath.Join(o.config.WorkDir, status.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		o.release()
		return nil, pkgerrors.PersistenceError(pkgerrors.CodeStoreUnavailable, "create batch working dir", err)
	}

	sample := pkgerrors.NewSample(o.config.ErrorSampleCap)
	docs, err := o.stage(inputs, dir, sample)
	if err != nil {
		o.release()
		os.RemoveAll(dir)
		return nil, err
	}

	status.State = models.BatchQueued
	status.TotalFiles = len(docs)
	status.Errors = sample.Messages()
	status.UpdatedAt = time.Now().UTC()
	if err := o.stores.Batches.Update(ctx, status); err != nil {
		o.release()
		os.RemoveAll(dir)
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release()
		o.run(ctx, status, docs, dir, sample)
	}()

	queued := *status
	return &queued, nil
}

// Wait blocks until every background batch started by Submit finishes
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Status returns the persisted status of a batch
func (o *Orchestrator) Status(ctx context.Context, id string) (*models.BatchStatus, error) {
	return o.stores.Batches.Get(ctx, id)
}

func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[o.config.Scope] {
		return ErrBatchInProgress
	}
	o.running[o.config.Scope] = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, o.config.Scope)
}

// stage collects the working files for a batch: plain PDFs are copied
// in under sanitized names, directories are walked for PDFs, archives
// are expanded entry by entry.
func (o *Orchestrator) stage(inputs []string, dir string, sample *pkgerrors.Sample) ([]stagedDocument, error) {
	var docs []stagedDocument
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			sample.Add(pkgerrors.DocumentError(pkgerrors.CodeFileNotFound, input, err))
			continue
		}

		switch {
		case info.IsDir():
			entries, err := os.ReadDir(input)
			if err != nil {
				sample.Add(pkgerrors.DocumentError(pkgerrors.CodeFileNotFound, input, err))
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
					continue
				}
				doc, err := o.stageOne(filepath.Join(input, entry.Name()), dir)
				if err != nil {
					sample.Add(err)
					continue
				}
				docs = append(docs, doc)
			}
		case strings.EqualFold(filepath.Ext(input), ".zip"):
			expanded, err := expandZip(input, dir, o.config.MaxFilenameLen, sample)
			if err != nil {
				sample.Add(err)
				continue
			}
			docs = append(docs, expanded...)
		default:
			doc, err := o.stageOne(input, dir)
			if err != nil {
				sample.Add(err)
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (o *Orchestrator) stageOne(path, dir string) (stagedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return stagedDocument{}, pkgerrors.DocumentError(pkgerrors.CodeFileNotFound, path, err)
	}
	if len(content) > maxEntryBytes {
		return stagedDocument{}, pkgerrors.DocumentError(pkgerrors.CodeDocumentTooLarge, path, nil)
	}
	return stageFile(dir, path, content, o.config.MaxFilenameLen)
}

// extractionResult carries one document's pages back from the worker
// pool to the single-writer stage.
type extractionResult struct {
	pages []models.ExtractedPage
	err   error
}

// run processes the staged documents and then reconciles. Extraction
// fans out over a bounded worker pool; everything downstream of it
// (parsing, dedup, persistence) runs on this goroutine only, in
// submission order.
func (o *Orchestrator) run(ctx context.Context, status *models.BatchStatus, docs []stagedDocument, dir string, sample *pkgerrors.Sample) {
	log := o.logger.WithField("batch_id", status.ID)

	status.State = models.BatchProcessing
	status.UpdatedAt = time.Now().UTC()
	if err := o.stores.Batches.Update(ctx, status); err != nil {
		log.WithError(err).Error("batch halted before processing")
		return
	}

	index, err := o.hydrateIndex(ctx)
	if err != nil {
		log.WithError(err).Error("batch halted, dedup index unavailable")
		return
	}

	results := o.startExtraction(ctx, docs)

	for i, doc := range docs {
		// Cancellation is cooperative. The feeder abandons undispatched
		// jobs the moment the context ends, so the receive must never
		// block on a result that will not come.
		var res extractionResult
		select {
		case res = <-results[i]:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			log.Warn("batch cancelled")
			break
		}

		if err := o.processDocument(ctx, status, index, doc, res, sample); err != nil {
			log.WithError(err).Error("batch halted, instrument write failed")
			return
		}

		status.ProcessedFiles++
		os.Remove(doc.Path)

		if status.ProcessedFiles%o.config.ProgressInterval == 0 {
			status.Errors = sample.Messages()
			status.UpdatedAt = time.Now().UTC()
			if err := o.stores.Batches.Update(ctx, status); err != nil {
				log.WithError(err).Error("batch halted, progress write failed")
				return
			}
		}
	}

	os.RemoveAll(dir)

	if ctx.Err() == nil {
		if _, _, err := o.Reconcile(ctx); err != nil {
			sample.Add(err)
			log.WithError(err).Error("post-ingestion reconciliation failed")
		}
	}

	now := time.Now().UTC()
	status.State = models.BatchCompleted
	status.Errors = sample.Messages()
	status.UpdatedAt = now
	status.CompletedAt = &now
	if err := o.stores.Batches.Update(ctx, status); err != nil {
		log.WithError(err).Error("final status write failed")
		return
	}

	log.WithFields(logger.Fields{
		"processed":  status.ProcessedFiles,
		"imported":   status.ImportedFiles,
		"duplicates": status.DuplicatesSkipped,
		"errors":     sample.Total(),
	}).Info("batch completed")
}

// startExtraction fans the documents out to a bounded worker pool and
// returns one result channel per document so the caller can consume
// them in submission order.
func (o *Orchestrator) startExtraction(ctx context.Context, docs []stagedDocument) []chan extractionResult {
	results := make([]chan extractionResult, len(docs))
	for i := range docs {
		results[i] = make(chan extractionResult, 1)
	}

	jobs := make(chan int)
	for w := 0; w < o.config.ExtractWorkers; w++ {
		go func() {
			for i := range jobs {
				data, err := os.ReadFile(docs[i].Path)
				if err != nil {
					results[i] <- extractionResult{err: pkgerrors.DocumentError(pkgerrors.CodeFileNotFound, docs[i].Name, err)}
					continue
				}
				pages, err := o.extractor.Extract(data)
				results[i] <- extractionResult{pages: pages, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range docs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// processDocument is the single-writer stage for one document: parse,
// normalize, dedup, persist. Per-document failures go into the sample;
// only batch-fatal persistence failures are returned, halting the run
// while leaving already-committed progress in place.
func (o *Orchestrator) processDocument(ctx context.Context, status *models.BatchStatus, index *dedup.Index, doc stagedDocument, res extractionResult, sample *pkgerrors.Sample) error {
	if res.err != nil {
		sample.Add(res.err)
		return nil
	}
	if emptyPages(res.pages) {
		sample.Add(pkgerrors.DocumentError(pkgerrors.CodeDocumentUnreadable, doc.Name, nil))
		return nil
	}

	instruments := o.parse(res.pages, doc, sample)

	imported := 0
	for _, inst := range instruments {
		if index.Seen(inst.DedupKey) {
			status.DuplicatesSkipped++
			continue
		}
		inst.BatchID = status.ID
		if err := o.stores.Instruments.Insert(ctx, inst); err != nil {
			sample.Add(err)
			if pkgerrors.IsBatchFatal(err) {
				return err
			}
			continue
		}
		index.Record(inst.DedupKey)
		imported++
	}

	if imported > 0 {
		status.ImportedFiles++
	}
	return nil
}

// parse classifies the document and converts its records into
// normalized instruments.
func (o *Orchestrator) parse(pages []models.ExtractedPage, doc stagedDocument, sample *pkgerrors.Sample) []*models.FinancialInstrument {
	text := joinPages(pages)

	if isWireConfirmation(text) {
		transfer, err := o.wire.Extract(pages, doc.Name)
		if err != nil {
			sample.Add(err)
			return nil
		}
		return []*models.FinancialInstrument{instrumentFromWire(transfer)}
	}

	d := dialect.Detect(text)
	transactions := o.statement.Parse(pages, d, doc.Name)
	if len(transactions) == 0 {
		sample.Add(pkgerrors.DocumentError(pkgerrors.CodeDocumentUnreadable, doc.Name, nil))
		return nil
	}

	instruments := make([]*models.FinancialInstrument, 0, len(transactions))
	for _, tx := range transactions {
		instruments = append(instruments, instrumentFromTransaction(tx))
	}
	return instruments
}

func (o *Orchestrator) hydrateIndex(ctx context.Context) (*dedup.Index, error) {
	keys, err := o.stores.Instruments.ListDedupKeys(ctx)
	if err != nil {
		return nil, err
	}
	return dedup.NewIndexFromKeys(keys), nil
}

// wireMarkers are phrases that identify a transfer confirmation rather
// than a statement. Statements carry movement tables; confirmations
// describe a single disposition.
var wireMarkers = []string{
	"disposizione di bonifico",
	"bonifico",
	"wire transfer",
	"transfer confirmation",
}

func isWireConfirmation(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range wireMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// Both party prefixes together also identify a confirmation.
	return strings.Contains(lower, "ordinante") && strings.Contains(lower, "beneficiario")
}

func instrumentFromTransaction(tx *models.Transaction) *models.FinancialInstrument {
	return &models.FinancialInstrument{
		ID:               uuid.NewString(),
		Kind:             models.KindTransaction,
		Amount:           tx.Amount,
		Date:             tx.BookingDate,
		CounterpartyName: tx.Description,
		SourceRef:        tx.SourceFile,
		DedupKey:         tx.ComputeDedupKey(),
		CreatedAt:        time.Now().UTC(),
	}
}

func instrumentFromWire(w *models.WireTransfer) *models.FinancialInstrument {
	counterparty := w.PayeeName
	if counterparty == "" {
		counterparty = w.Description
	}
	return &models.FinancialInstrument{
		ID:               uuid.NewString(),
		Kind:             models.KindWireTransfer,
		Amount:           w.Amount,
		Date:             w.Date,
		CounterpartyName: counterparty,
		SourceRef:        w.SourceFile,
		DedupKey:         w.DedupKey,
		CreatedAt:        time.Now().UTC(),
	}
}

func joinPages(pages []models.ExtractedPage) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func emptyPages(pages []models.ExtractedPage) bool {
	for i := range pages {
		if !pages[i].IsEmpty() {
			return false
		}
	}
	return true
}
