package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/observability"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.OutputFormat) {
	case "", OutputAuto, OutputText, OutputMarkdown, "md", OutputJSON:
	default:
		errs = append(errs, fmt.Errorf("output must be auto, text, markdown or json, got %q", c.OutputFormat))
	}
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "", llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be gemini, openai or ollama, got %q", c.LLM.Provider))
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, errors.New("llm.timeout must not be negative"))
	}

	switch strings.ToLower(c.Source.Kind) {
	case "", "demo":
	case "sql":
		if c.Source.DSN == "" {
			errs = append(errs, errors.New("source.dsn is required for sql sources"))
		}
	case "file":
		if c.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for file sources"))
		}
	case "http":
		if c.Source.URL == "" {
			errs = append(errs, errors.New("source.url is required for http sources"))
		}
		if c.Source.MaxBytes < 0 {
			errs = append(errs, errors.New("source.max_bytes must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind must be demo, sql, file or http, got %q", c.Source.Kind))
	}

	if c.Sandbox.Timeout < 0 || c.Sandbox.MaxOutputBytes < 0 {
		errs = append(errs, errors.New("sandbox limits must not be negative"))
	}

	switch strings.ToLower(c.Storage.Kind) {
	case "", StorageNone:
	case StorageDir:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for dir storage"))
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.kind must be none, dir or s3, got %q", c.Storage.Kind))
	}

	return errors.Join(errs...)
}

// ValidateFields checks that every logical field is mapped to a column.
func (c *Config) ValidateFields() error {
	var missing []string
	for _, f := range []struct{ name, column string }{
		{"site", c.Fields.Site},
		{"date", c.Fields.Date},
		{"barber", c.Fields.Barber},
		{"client", c.Fields.Client},
		{"service", c.Fields.Service},
		{"price", c.Fields.Price},
	} {
		if strings.TrimSpace(f.column) == "" {
			missing = append(missing, "fields."+f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unmapped dataset fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
