package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayam04/pos-scraper/internal/catalog"
)

// ValidationError carries every structural problem found in a result. A
// result that fails validation is never written: downstream consumers
// cannot safely ingest it.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("result failed validation: %s", strings.Join(e.Problems, "; "))
}

// WriteDiscovery validates and writes a discovery result. The timestamp is
// normalized to UTC second precision before validation.
func WriteDiscovery(path string, result *catalog.DiscoveryResult) error {
	result.CollectedAt = result.CollectedAt.UTC().Truncate(time.Second)

	if problems := result.Validate(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return writeJSON(path, result)
}

// WriteExtraction validates and writes an extraction result.
func WriteExtraction(path string, result *catalog.ExtractionResult) error {
	result.ScrapedAt = result.ScrapedAt.UTC().Truncate(time.Second)

	if problems := result.Validate(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return writeJSON(path, result)
}

// writeJSON lands the document atomically: marshal, write a uniquely named
// temp file next to the destination, rename. A torn or partially written
// output file is never observable, and concurrent runs targeting the same
// path cannot clobber each other's temp file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to set result permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move result into place: %w", err)
	}
	return nil
}
