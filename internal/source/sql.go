package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kingdombarber/insight/pkg/dataset"

	_ "github.com/jackc/pgx/v5/stdlib"  // pgx driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver (pure Go)
)

var drivers = map[string]string{
	"duckdb":     "duckdb",
	"sqlite":     "sqlite",
	"sqlite3":    "sqlite",
	"pgx":        "pgx",
	"postgres":   "pgx",
	"postgresql": "pgx",
}

// SQLProvider runs a query on a database/sql connection.
type SQLProvider struct {
	db     *sql.DB
	query  string
	logger *slog.Logger
}

// OpenSQL opens driver/dsn and pings it. An empty query reads the
// appointment view.
func OpenSQL(ctx context.Context, driver, dsn, query string, logger *slog.Logger) (*SQLProvider, error) {
	name, ok := drivers[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q (want duckdb, sqlite or pgx)", driver)
	}
	if name == "duckdb" && dsn == "" {
		dsn = ":memory:"
	}

	logger.Debug("opening dataset database", slog.String("driver", name))
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", name, err)
	}
	return NewSQLProvider(db, query, logger), nil
}

// NewSQLProvider wraps an open connection. The provider owns db.
func NewSQLProvider(db *sql.DB, query string, logger *slog.Logger) *SQLProvider {
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLProvider{db: db, query: query, logger: logger}
}

// FetchDataset implements Provider.
func (p *SQLProvider) FetchDataset(ctx context.Context) (*dataset.Dataset, error) {
	rows, err := p.db.QueryContext(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ds, err := scanDataset(rows)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("dataset loaded", slog.Int("rows", ds.Len()), slog.Int("columns", len(ds.Columns())))
	return ds, nil
}

// DB exposes the underlying connection.
func (p *SQLProvider) DB() *sql.DB { return p.db }

// Close implements Closer.
func (p *SQLProvider) Close() error { return p.db.Close() }

// scanDataset reads every row of rows into a Dataset.
func scanDataset(rows *sql.Rows) (*dataset.Dataset, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return dataset.New(columns, data)
}
