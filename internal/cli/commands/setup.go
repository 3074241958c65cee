package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/app"
	"github.com/kingdombarber/insight/internal/cli/config"
	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/observability"
	"github.com/kingdombarber/insight/internal/prompt"
	"github.com/kingdombarber/insight/internal/query"
	"github.com/kingdombarber/insight/internal/report"
	"github.com/kingdombarber/insight/internal/source"
	starctx "github.com/kingdombarber/insight/internal/starlark"
	"github.com/kingdombarber/insight/internal/storage"
	"github.com/kingdombarber/insight/internal/storage/s3"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Service  *app.Service
	Metrics  *observability.Metrics
	Renderer *output.Renderer
}

type serviceKey struct{}

// WithService makes NewCommandContext use svc instead of building one from
// the configuration.
func WithService(ctx context.Context, svc *app.Service) context.Context {
	return context.WithValue(ctx, serviceKey{}, svc)
}

// NewCommandContext creates a CommandContext with a service and renderer.
// The cleanup function must be called, typically via defer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutService(cmd)
	if svc, ok := cmd.Context().Value(serviceKey{}).(*app.Service); ok {
		cc.Service = svc
		return cc, func() {}, nil
	}

	metrics := observability.NewMetrics()
	svc, cleanup, err := buildService(cmd.Context(), cc.Cfg, metrics, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Service = svc
	cc.Metrics = metrics
	return cc, cleanup, nil
}

// NewCommandContextWithoutService creates a CommandContext for commands that
// don't read the dataset.
func NewCommandContextWithoutService(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(cfg.OutputFormat)),
	}
}

// getConfig returns the loaded configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{OutputFormat: config.DefaultOutput}
	}
	return cfg
}

// buildService wires the source, model client, sandbox and insight features
// described by cfg.
func buildService(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*app.Service, func(), error) {
	if err := cfg.ValidateFields(); err != nil {
		return nil, nil, err
	}

	provider, err := source.Open(ctx, cfg.Source, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open data source: %w", err)
	}
	cleanup := func() {
		if c, ok := provider.(source.Closer); ok {
			_ = c.Close()
		}
	}

	builder, err := promptBuilder(cfg.Prompts.File)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if cfg.LLM.APIKey == "" && !strings.EqualFold(cfg.LLM.Provider, llm.ProviderOllama) {
		if store, err := secretStore(ctx); err == nil {
			if err := config.ResolveAPIKey(cfg, store); err != nil {
				logger.Debug("keyring lookup failed", "error", err)
			}
		} else {
			logger.Debug("keyring unavailable", "error", err)
		}
	}
	client, err := llm.New(ctx, cfg.LLM, logger)
	switch {
	case errors.Is(err, llm.ErrModelUnavailable):
		logger.Warn("language model not configured", "provider", cfg.LLM.Provider, "error", err)
		client = llm.Unavailable(err)
	case err != nil:
		cleanup()
		return nil, nil, fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
	}

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	sandbox := starctx.NewSandbox(cfg.Sandbox.Limits(), logger)
	svc := app.New(app.Options{
		Source:    provider,
		Pipeline:  query.NewPipeline(client, builder, sandbox, query.Options{Logger: logger, Metrics: metrics}),
		Analyst:   insights.NewAnalyst(client, builder, cfg.Fields, logger),
		Publisher: publisher,
		Fields:    cfg.Fields,
		Metrics:   metrics,
		Logger:    logger,
	})
	return svc, cleanup, nil
}

func promptBuilder(path string) (*prompt.Builder, error) {
	if path == "" {
		return nil, nil
	}
	catalog, err := prompt.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	return prompt.NewBuilder(catalog), nil
}

// newPublisher returns nil when storage is disabled.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*report.Publisher, error) {
	var store storage.ObjectStore
	switch strings.ToLower(cfg.Storage.Kind) {
	case "", config.StorageNone:
		return nil, nil
	case config.StorageDir:
		dir, err := storage.NewDirStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open report directory: %w", err)
		}
		store = dir
	case config.StorageS3:
		s3store, err := s3.New(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to object storage: %w", err)
		}
		store = s3store
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}
	return report.NewPublisher(store, cfg.Fields, logger), nil
}

// presentError turns a service error into one line for the terminal.
func presentError(err error) error {
	var qerr *query.Error
	switch {
	case errors.As(err, &qerr):
		return errors.New(qerr.UserMessage())
	case errors.Is(err, app.ErrSourceUnavailable):
		return fmt.Errorf("no se pudieron cargar los datos: %w", err)
	default:
		return err
	}
}
