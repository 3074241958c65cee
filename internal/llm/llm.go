// Package llm provides the language model clients used to generate analysis
// scripts and prose answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ErrModelUnavailable is matched by every client failure: missing
// credentials, transport errors, rejected requests and empty completions.
var ErrModelUnavailable = errors.New("language model unavailable")

// ErrEmptyCompletion is wrapped when the model answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Client sends a single prompt, optionally with one image, and returns the
// model's text.
type Client interface {
	Complete(ctx context.Context, prompt string, media *Media) (string, error)
}

// Media is an attachment sent along with the prompt.
type Media struct {
	MIMEType string
	Data     []byte
}

// Config selects and configures a provider.
type Config struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
}

// UnavailableError describes a failed completion.
type UnavailableError struct {
	Provider string
	Model    string
	Status   int
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s model %s unavailable (status %d): %v", e.Provider, e.Model, e.Status, e.Err)
	}
	return fmt.Sprintf("%s model %s unavailable: %v", e.Provider, e.Model, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports ErrModelUnavailable as a match.
func (e *UnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// New creates a client for cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var (
		client Client
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini, "":
		client, err = NewGemini(ctx, cfg)
	case ProviderOpenAI:
		client, err = NewOpenAI(cfg)
	case ProviderOllama:
		client, err = NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want gemini, openai or ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return &loggingClient{next: client, provider: cfg.Provider, logger: logger}, nil
}

type loggingClient struct {
	next     Client
	provider string
	logger   *slog.Logger
}

func (c *loggingClient) Complete(ctx context.Context, prompt string, media *Media) (string, error) {
	start := time.Now()
	text, err := c.next.Complete(ctx, prompt, media)
	attrs := []any{
		"provider", c.provider,
		"prompt_bytes", len(prompt),
		"media", media != nil,
		"duration", time.Since(start),
	}
	if err != nil {
		c.logger.Warn("completion failed", append(attrs, "error", err)...)
		return "", err
	}
	c.logger.Debug("completion", append(attrs, "completion_bytes", len(text))...)
	return text, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}

// Unavailable returns a client whose every call fails with err. It stands in
// for a provider that could not be configured, so that commands which never
// call the model still run.
func Unavailable(err error) Client { return unavailableClient{err: err} }

type unavailableClient struct{ err error }

func (c unavailableClient) Complete(context.Context, string, *Media) (string, error) {
	return "", c.err
}
