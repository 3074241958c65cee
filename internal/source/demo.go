package source

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
)

// DefaultDemoPath is where the demo database is created when no path is
// configured.
const DefaultDemoPath = ".insight/demo.db"

//go:embed migrations/*.sql
var migrations embed.FS

// CreateDemoDatabase creates (or migrates) a SQLite database at path holding
// sample sites, barbers, clients, services and appointments, and the
// vista_citas_completa view over them. It is idempotent.
func CreateDemoDatabase(ctx context.Context, path string) error {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create demo directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	defer func() { _ = db.Close() }()

	return MigrateDemo(ctx, db)
}

// MigrateDemo applies the demo migrations to an open SQLite connection.
func MigrateDemo(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
