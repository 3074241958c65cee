// Package config provides configuration management for the insight CLI.
//
// Settings are layered the same way for every command: built-in defaults,
// then insight.yaml, then INSIGHT_* environment variables, then flags that
// were set explicitly on the command line.
package config

import (
	"time"

	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/observability"
	"github.com/kingdombarber/insight/internal/server"
	"github.com/kingdombarber/insight/internal/source"
	starctx "github.com/kingdombarber/insight/internal/starlark"
	"github.com/kingdombarber/insight/internal/storage/s3"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// Config holds all CLI configuration options.
type Config struct {
	Verbose      bool                    `koanf:"verbose"`
	OutputFormat string                  `koanf:"output"`
	Log          observability.LogConfig `koanf:"log"`
	LLM          llm.Config              `koanf:"llm"`
	Source       source.Config           `koanf:"source"`
	Sandbox      SandboxConfig           `koanf:"sandbox"`
	Prompts      PromptsConfig           `koanf:"prompts"`
	Fields       dataset.Fields          `koanf:"fields"`
	Server       server.Config           `koanf:"server"`
	Storage      StorageConfig           `koanf:"storage"`
}

// SandboxConfig bounds a single script run.
type SandboxConfig struct {
	Timeout        time.Duration `koanf:"timeout"`
	MaxSteps       uint64        `koanf:"max_steps"`
	MaxOutputBytes int           `koanf:"max_output_bytes"`
}

// Limits converts the settings into sandbox limits.
func (s SandboxConfig) Limits() starctx.Limits {
	return starctx.Limits{
		Timeout:        s.Timeout,
		MaxSteps:       s.MaxSteps,
		MaxOutputBytes: s.MaxOutputBytes,
	}
}

// PromptsConfig points at a prompt catalogue overriding the embedded one.
type PromptsConfig struct {
	File string `koanf:"file"`
}

// StorageConfig selects where published reports go.
type StorageConfig struct {
	// Kind is none, dir or s3.
	Kind string    `koanf:"kind"`
	Dir  string    `koanf:"dir"`
	S3   s3.Config `koanf:"s3"`
}

// Storage kinds.
const (
	StorageNone = "none"
	StorageDir  = "dir"
	StorageS3   = "s3"
)

// Output modes.
const (
	OutputAuto     = "auto" // TTY=text, otherwise markdown
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// Default configuration values.
const (
	DefaultConfigFile = "insight.yaml"
	DefaultOutput     = OutputAuto
	DefaultLogLevel   = "warn"
	DefaultLLMTimeout = 60 * time.Second
	DefaultReportsDir = ".insight/reports"
)

// defaults returns the flattened default values loaded before any file.
func defaults() map[string]any {
	fields := dataset.DefaultFields()
	srv := server.DefaultConfig()
	return map[string]any{
		"verbose":                  false,
		"output":                   DefaultOutput,
		"log.level":                DefaultLogLevel,
		"log.format":               "text",
		"llm.provider":             llm.ProviderGemini,
		"llm.timeout":              DefaultLLMTimeout,
		"llm.temperature":          0.2,
		"source.kind":              "demo",
		"source.timeout":           30 * time.Second,
		"source.max_bytes":         source.DefaultMaxResponseBytes,
		"sandbox.timeout":          starctx.DefaultTimeout,
		"sandbox.max_steps":        uint64(starctx.DefaultMaxSteps),
		"sandbox.max_output_bytes": starctx.DefaultMaxOutputBytes,
		"fields.site":              fields.Site,
		"fields.date":              fields.Date,
		"fields.barber":            fields.Barber,
		"fields.client":            fields.Client,
		"fields.service":           fields.Service,
		"fields.price":             fields.Price,
		"server.addr":              srv.Addr,
		"server.allowed_origins":   srv.AllowedOrigins,
		"server.request_timeout":   srv.RequestTimeout,
		"server.shutdown_timeout":  srv.ShutdownTimeout,
		"storage.kind":             StorageNone,
		"storage.dir":              DefaultReportsDir,
		"storage.s3.region":        "us-east-1",
		"storage.s3.use_ssl":       true,
	}
}
