package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// FileProvider reads a CSV, Parquet or JSON file through an in-memory
// DuckDB connection.
type FileProvider struct {
	path   string
	reader string
	logger *slog.Logger
}

// readers maps a file extension to the DuckDB table function reading it.
var readers = map[string]string{
	".csv":     "read_csv_auto",
	".tsv":     "read_csv_auto",
	".parquet": "read_parquet",
	".json":    "read_json_auto",
	".ndjson":  "read_json_auto",
	".jsonl":   "read_json_auto",
}

// NewFileProvider creates a provider for path. The format follows the
// extension.
func NewFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("file source requires a path")
	}
	reader, ok := readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q (want csv, parquet or json)", filepath.Ext(path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileProvider{path: abs, reader: reader, logger: logger}, nil
}

// Path returns the absolute file path.
func (p *FileProvider) Path() string { return p.path }

// FetchDataset implements Provider.
func (p *FileProvider) FetchDataset(ctx context.Context) (*dataset.Dataset, error) {
	if _, err := os.Stat(p.path); err != nil {
		return nil, fmt.Errorf("dataset file: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	query := fmt.Sprintf("SELECT * FROM %s('%s')", p.reader, strings.ReplaceAll(p.path, "'", "''")) //nolint:gosec // reader comes from a fixed table
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.path, err)
	}
	defer func() { _ = rows.Close() }()

	ds, err := scanDataset(rows)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("dataset file loaded", slog.String("path", p.path), slog.Int("rows", ds.Len()))
	return ds, nil
}
