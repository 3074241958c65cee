// Package source loads the appointment dataset from databases, files or an
// HTTP API.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// DefaultQuery reads the denormalised appointment view.
const DefaultQuery = "SELECT * FROM vista_citas_completa"

// Provider fetches the current dataset. The dataset may be empty; callers
// treat that as "no data".
type Provider interface {
	FetchDataset(ctx context.Context) (*dataset.Dataset, error)
}

// Config selects and configures a provider.
type Config struct {
	// Kind is one of sql, file, http or demo.
	Kind    string            `koanf:"kind"`
	Driver  string            `koanf:"driver"` // duckdb, sqlite or pgx
	DSN     string            `koanf:"dsn"`
	Query   string            `koanf:"query"`
	Path    string            `koanf:"path"`
	URL     string            `koanf:"url"`
	Headers map[string]string `koanf:"headers"`
	Timeout time.Duration     `koanf:"timeout"`
	Cache   bool              `koanf:"cache"`
	Watch   bool              `koanf:"watch"`
	// MaxBytes bounds the http response body.
	MaxBytes int64 `koanf:"max_bytes"`
}

// Closer is implemented by providers holding connections.
type Closer interface {
	Close() error
}

// Open builds the provider described by cfg. The returned provider may
// implement Closer.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Kind) {
	case "sql":
		p, err = OpenSQL(ctx, cfg.Driver, cfg.DSN, cfg.Query, logger)
	case "file":
		p, err = NewFileProvider(cfg.Path, logger)
	case "http":
		p, err = NewHTTPProvider(cfg.URL, cfg.Headers, cfg.Timeout, cfg.MaxBytes)
	case "demo", "":
		path := cfg.Path
		if path == "" {
			path = DefaultDemoPath
		}
		if err := CreateDemoDatabase(ctx, path); err != nil {
			return nil, err
		}
		p, err = OpenSQL(ctx, "sqlite", path, cfg.Query, logger)
	default:
		return nil, fmt.Errorf("unknown source kind %q (want sql, file, http or demo)", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Cache {
		return p, nil
	}
	cached := NewCachedProvider(p, logger)
	if cfg.Watch && strings.EqualFold(cfg.Kind, "file") {
		if err := cached.WatchFile(ctx, cfg.Path); err != nil {
			_ = cached.Close()
			return nil, err
		}
	}
	return cached, nil
}

// StaticProvider always returns the same dataset.
type StaticProvider struct {
	Dataset *dataset.Dataset
}

// FetchDataset implements Provider.
func (s StaticProvider) FetchDataset(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Dataset == nil {
		return dataset.New(nil, nil)
	}
	return s.Dataset.Clone(), nil
}
