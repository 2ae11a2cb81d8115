package batch

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the orchestrator settings
type Config struct {
	// WorkDir is the root under which each batch gets its own working
	// directory for staged documents.
	WorkDir string
	// Scope names the dedup key-space and invoice pool this
	// orchestrator serializes batches against.
	Scope string
	// ExtractWorkers bounds the parallel PDF extraction pool.
	ExtractWorkers int
	// PageCap limits pages read per document.
	PageCap int
	// ProgressInterval is how many processed documents between
	// persisted progress updates.
	ProgressInterval int
	// ErrorSampleCap bounds the per-batch retained error sample.
	ErrorSampleCap int
	// MaxFilenameLen is the sanitized working-file name limit.
	MaxFilenameLen int
}

// DefaultConfig returns orchestrator settings sized for batches of up
// to ~1500 documents.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:          filepath.Join(os.TempDir(), "reconciler-batches"),
		Scope:            "default",
		ExtractWorkers:   4,
		PageCap:          50,
		ProgressInterval: 10,
		ErrorSampleCap:   50,
		MaxFilenameLen:   120,
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("work dir cannot be empty")
	}
	if c.Scope == "" {
		return fmt.Errorf("scope cannot be empty")
	}
	if c.ExtractWorkers < 1 {
		return fmt.Errorf("extract workers must be at least 1, got %d", c.ExtractWorkers)
	}
	if c.ProgressInterval < 1 {
		return fmt.Errorf("progress interval must be at least 1, got %d", c.ProgressInterval)
	}
	if c.MaxFilenameLen < 20 {
		return fmt.Errorf("max filename length must be at least 20, got %d", c.MaxFilenameLen)
	}
	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
