// Package errors defines the error taxonomy shared by the document
// ingestion and reconciliation pipeline.
//
// Errors are classified along two axes: a broad category (document,
// archive, parse, dedup, reconciliation, persistence, configuration,
// internal) and a specific code within that category. Most codes are
// per-document or per-row conditions that the batch orchestrator counts
// and continues past; only persistence failures abort a batch.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryDocument       ErrorCategory = "document"
	CategoryArchive        ErrorCategory = "archive"
	CategoryParse          ErrorCategory = "parse"
	CategoryDedup          ErrorCategory = "dedup"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryPersistence    ErrorCategory = "persistence"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Document errors
	CodeDocumentUnreadable ErrorCode = "document_unreadable"
	CodeDocumentTooLarge   ErrorCode = "document_too_large"
	CodeFileNotFound       ErrorCode = "file_not_found"

	// Archive errors
	CodeMalformedArchive      ErrorCode = "malformed_archive"
	CodeMalformedArchiveEntry ErrorCode = "malformed_archive_entry"

	// Parse errors
	CodeUnparseableRow ErrorCode = "unparseable_row"
	CodeInvalidAmount  ErrorCode = "invalid_amount"
	CodeInvalidDate    ErrorCode = "invalid_date"
	CodeMissingAmount  ErrorCode = "missing_amount"
	CodeUnknownDialect ErrorCode = "unknown_dialect"

	// Dedup conditions (counted, not failures)
	CodeDuplicateInstrument ErrorCode = "duplicate_instrument"

	// Reconciliation conditions
	CodeNoMatch         ErrorCode = "no_match"
	CodeAmbiguousMatch  ErrorCode = "ambiguous_match"
	CodeInvariantBroken ErrorCode = "invariant_broken"

	// Persistence errors (batch-fatal)
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeWriteFailed      ErrorCode = "write_failed"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// PipelineError is the base error type for all application errors
type PipelineError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// IsBatchFatal reports whether the error must abort the owning batch.
// Only persistence failures qualify; every other category is a
// per-document or per-row condition that the batch records and skips.
func (e *PipelineError) IsBatchFatal() bool {
	return e.Category == CategoryPersistence
}

// WithContext adds context information to the error
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// New creates a new PipelineError
func New(category ErrorCategory, code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with PipelineError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *PipelineError {
	if err == nil {
		return nil
	}

	return &PipelineError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// DocumentError creates a per-document error
func DocumentError(code ErrorCode, file string, err error) *PipelineError {
	var message string
	switch code {
	case CodeDocumentUnreadable:
		message = fmt.Sprintf("no extractable text or tables in document: %s", file)
	case CodeDocumentTooLarge:
		message = fmt.Sprintf("document exceeds page cap: %s", file)
	case CodeFileNotFound:
		message = fmt.Sprintf("document not found: %s", file)
	default:
		message = fmt.Sprintf("document error: %s", file)
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryDocument, code, message)
	} else {
		result = New(CategoryDocument, code, message)
	}
	return result.WithContext("file", file)
}

// ArchiveError creates an archive-related error. Entry-level failures
// are scoped to the entry; siblings keep processing.
func ArchiveError(code ErrorCode, archive, entry string, err error) *PipelineError {
	var message string
	switch code {
	case CodeMalformedArchive:
		message = fmt.Sprintf("archive cannot be opened: %s", archive)
	case CodeMalformedArchiveEntry:
		message = fmt.Sprintf("corrupt entry %q in archive %s", entry, archive)
	default:
		message = fmt.Sprintf("archive error: %s", archive)
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryArchive, code, message)
	} else {
		result = New(CategoryArchive, code, message)
	}
	result = result.WithContext("archive", archive)
	if entry != "" {
		result = result.WithContext("entry", entry)
	}
	return result
}

// ParseError creates a parse error scoped to a file and row
func ParseError(code ErrorCode, file string, row int, value string, err error) *PipelineError {
	var message string
	switch code {
	case CodeUnparseableRow:
		message = fmt.Sprintf("no grammar matched row %d in %s", row, file)
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount %q at row %d in %s", value, row, file)
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date %q at row %d in %s", value, row, file)
	case CodeMissingAmount:
		message = fmt.Sprintf("transfer without resolvable amount in %s", file)
	default:
		message = fmt.Sprintf("parse error at row %d in %s", row, file)
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}
	return result.
		WithContext("file", file).
		WithContext("row", row).
		WithContext("value", value)
}

// PersistenceError creates a batch-fatal persistence error
func PersistenceError(code ErrorCode, operation string, err error) *PipelineError {
	var message string
	switch code {
	case CodeStoreUnavailable:
		message = fmt.Sprintf("store unavailable during %s", operation)
	case CodeWriteFailed:
		message = fmt.Sprintf("write failed during %s", operation)
	default:
		message = fmt.Sprintf("persistence error during %s", operation)
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryPersistence, code, message)
	} else {
		result = New(CategoryPersistence, code, message)
	}
	return result.WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}) *PipelineError {
	var message string
	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
	}

	return New(CategoryConfiguration, code, message).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *PipelineError {
	var message string
	switch code {
	case CodeInvariantBroken:
		message = fmt.Sprintf("binding invariant broken during %s", operation)
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryReconciliation, code, message)
	} else {
		result = New(CategoryReconciliation, code, message)
	}
	return result.WithContext("operation", operation)
}

// GetCategory extracts the category from any error, defaulting to internal
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryInternal
}

// GetCode extracts the code from any error, defaulting to unexpected
func GetCode(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnexpectedError
}

// IsBatchFatal reports whether err should abort the owning batch
func IsBatchFatal(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.IsBatchFatal()
	}
	return false
}

// Sample accumulates a bounded sample of per-document errors for a
// batch. Once the cap is reached further errors are counted but not
// retained, keeping the batch status record bounded regardless of
// batch size.
type Sample struct {
	cap    int
	total  int
	byCode map[ErrorCode]int
	errors []*PipelineError
}

// NewSample creates an error sample with the given retention cap
func NewSample(cap int) *Sample {
	if cap <= 0 {
		cap = 50
	}
	return &Sample{
		cap:    cap,
		byCode: make(map[ErrorCode]int),
	}
}

// Add records an error, retaining it only while under the cap
func (s *Sample) Add(err error) {
	s.total++
	s.byCode[GetCode(err)]++

	if len(s.errors) >= s.cap {
		return
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		s.errors = append(s.errors, pe)
		return
	}
	s.errors = append(s.errors, Wrap(err, CategoryInternal, CodeUnexpectedError, err.Error()))
}

// Total returns the number of errors recorded, including unretained ones
func (s *Sample) Total() int {
	return s.total
}

// CountByCode returns how many errors carried the given code
func (s *Sample) CountByCode(code ErrorCode) int {
	return s.byCode[code]
}

// Errors returns the retained sample
func (s *Sample) Errors() []*PipelineError {
	return s.errors
}

// Messages renders the retained sample as plain strings for status records
func (s *Sample) Messages() []string {
	msgs := make([]string, 0, len(s.errors))
	for _, e := range s.errors {
		msgs = append(msgs, fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message))
	}
	return msgs
}

// String summarizes the sample
func (s *Sample) String() string {
	if s.total == 0 {
		return "no errors"
	}
	parts := make([]string, 0, len(s.byCode))
	for code, n := range s.byCode {
		parts = append(parts, fmt.Sprintf("%s=%d", code, n))
	}
	return fmt.Sprintf("%d errors (%s)", s.total, strings.Join(parts, ", "))
}
