package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaguanLabs/lazytl"
)

// ExportVersion is the format version written by Exporter.
const ExportVersion = "2"

// importBatchSize is the number of entries per UpsertMany during import.
const importBatchSize = 500

// ExportFormat represents the JSON structure for cache export/import.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry.
type ExportEntry struct {
	Hash   string `json:"hash"`
	Locale string `json:"locale"`
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

// Exporter provides cache export functionality.
type Exporter struct {
	store Scanner
	now   func() time.Time
}

// NewExporter creates a new cache exporter.
func NewExporter(store Scanner) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export writes the store contents to w in JSON format.
func (e *Exporter) Export(ctx context.Context, w io.Writer, metadata map[string]string) (int, error) {
	entries := []ExportEntry{}
	err := e.store.Scan(ctx, func(ce lazytl.CacheEntry) error {
		entries = append(entries, ExportEntry{
			Hash:   ce.ContentHash,
			Locale: string(ce.TargetLocale),
			Source: ce.SourceExcerpt,
			Text:   ce.TranslatedText,
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning cache entries: %w", err)
	}

	export := ExportFormat{
		Version:    ExportVersion,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return 0, fmt.Errorf("encoding JSON: %w", err)
	}

	return len(entries), nil
}

// ExportToFile exports the store to a file.
// The path is provided by the caller and is intentionally user-controlled.
func (e *Exporter) ExportToFile(ctx context.Context, path string, metadata map[string]string) (int, error) {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}

	n, err := e.Export(ctx, f, metadata)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing file: %w", cerr)
	}
	return n, err
}

// Importer provides cache import functionality.
type Importer struct {
	store Store
}

// NewImporter creates a new cache importer.
func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// ImportResult contains statistics about the import operation.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Skipped  int
	Failed   int
}

// Import reads entries from r and upserts them into the store in batches.
// Entries without hash, locale or text are skipped; a failed batch counts
// all of its entries as failed and import continues.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if export.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported export version %q", export.Version)
	}

	result := &ImportResult{
		Version:  export.Version,
		Metadata: export.Metadata,
	}

	batch := make([]lazytl.CacheEntry, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.store.UpsertMany(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.Failed += len(batch)
		} else {
			result.Imported += len(batch)
		}
		batch = batch[:0]
		return nil
	}

	for _, e := range export.Entries {
		if e.Hash == "" || e.Locale == "" || e.Text == "" {
			result.Skipped++
			continue
		}
		batch = append(batch, lazytl.CacheEntry{
			ContentHash:    e.Hash,
			TargetLocale:   lazytl.Locale(e.Locale),
			SourceExcerpt:  e.Source,
			TranslatedText: e.Text,
		})
		if len(batch) == importBatchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	return result, nil
}

// ImportFromFile imports cache entries from a file.
// The path is provided by the caller and is intentionally user-controlled.
func (i *Importer) ImportFromFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}
