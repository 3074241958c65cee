package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingdombarber/insight/internal/source"
	"github.com/kingdombarber/insight/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "insight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, OutputAuto, cfg.OutputFormat)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, DefaultLLMTimeout, cfg.LLM.Timeout)
	assert.Equal(t, "demo", cfg.Source.Kind)
	assert.Equal(t, source.DefaultMaxResponseBytes, cfg.Source.MaxBytes)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, uint64(50_000_000), cfg.Sandbox.MaxSteps)
	assert.Equal(t, 64<<10, cfg.Sandbox.MaxOutputBytes)
	assert.Equal(t, "Nombre_Sede", cfg.Fields.Site)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StorageNone, cfg.Storage.Kind)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateFields())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `
output: json
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 15s
source:
  kind: file
  path: citas.csv
sandbox:
  timeout: 2s
  max_steps: 1000
fields:
  site: Sede
server:
  allowed_origins: "http://a.test,http://b.test"
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, OutputJSON, cfg.OutputFormat)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "citas.csv", cfg.Source.Path)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Limits().Timeout)
	assert.Equal(t, uint64(1000), cfg.Sandbox.Limits().MaxSteps)
	assert.Equal(t, "Sede", cfg.Fields.Site)
	assert.Equal(t, "Fecha", cfg.Fields.Date, "unset fields keep their defaults")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "source:\n  kind: file\n  path: from_file.csv\n")

	t.Run("env overrides file", func(t *testing.T) {
		ResetConfig()
		t.Setenv("INSIGHT_SOURCE__PATH", "from_env.csv")

		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "from_env.csv", cfg.Source.Path)
	})

	t.Run("flag overrides env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("INSIGHT_SOURCE__PATH", "from_env.csv")
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("source-path", "", "")
		require.NoError(t, flags.Set("source-path", "from_flag.csv"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "from_flag.csv", cfg.Source.Path)
	})

	t.Run("unset flag falls back to env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("INSIGHT_SOURCE__PATH", "from_env.csv")
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("source-path", "default.csv", "")

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "from_env.csv", cfg.Source.Path)
	})

	t.Run("log level flag", func(t *testing.T) {
		ResetConfig()
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("log-level", "", "")
		flags.BoolP("verbose", "v", false, "")
		require.NoError(t, flags.Set("log-level", "debug"))
		require.NoError(t, flags.Set("verbose", "true"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Verbose)
	})
}

func TestLoadConfig_APIKey(t *testing.T) {
	t.Run("provider env var", func(t *testing.T) {
		ResetConfig()
		t.Setenv("GOOGLE_API_KEY", "google-key")
		cfg, err := LoadConfig("", nil)
		require.NoError(t, err)
		assert.Equal(t, "google-key", cfg.LLM.APIKey)
	})

	t.Run("expanded from config", func(t *testing.T) {
		ResetConfig()
		t.Setenv("MY_OPENAI", "sk-test")
		path := writeConfig(t, "llm:\n  provider: openai\n  api_key: ${MY_OPENAI}\n")
		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single variable", "${TEST_VAR_ONE}", "value_one"},
		{"multiple variables", "${TEST_VAR_ONE}/${TEST_VAR_TWO}", "value_one/value_two"},
		{"variable in dsn", "postgres://u:${TEST_VAR_ONE}@db/kb", "postgres://u:value_one@db/kb"},
		{"unset variable stays as-is", "${UNSET_VARIABLE}", "${UNSET_VARIABLE}"},
		{"no variables", "plain string", "plain string"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			OutputFormat: OutputAuto,
			Source:       source.Config{Kind: "demo"},
			Storage:      StorageConfig{Kind: StorageNone},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad output", func(c *Config) { c.OutputFormat = "yaml" }, "output must be"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "claude" }, "llm.provider"},
		{"sql without dsn", func(c *Config) { c.Source.Kind = "sql" }, "source.dsn"},
		{"file without path", func(c *Config) { c.Source.Kind = "file" }, "source.path"},
		{"http without url", func(c *Config) { c.Source.Kind = "http" }, "source.url"},
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }, "source.kind"},
		{"negative http limit", func(c *Config) { c.Source.Kind, c.Source.URL, c.Source.MaxBytes = "http", "http://x.test", -1 }, "source.max_bytes"},
		{"negative sandbox", func(c *Config) { c.Sandbox.Timeout = -time.Second }, "sandbox limits"},
		{"s3 without bucket", func(c *Config) { c.Storage.Kind = StorageS3 }, "storage.s3.bucket"},
		{"dir without path", func(c *Config) { c.Storage.Kind = StorageDir }, "storage.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errSubstr)
		})
	}
}

func TestConfig_ValidateFields(t *testing.T) {
	cfg := Config{}
	cfg.Fields.Site = "Nombre_Sede"
	err := cfg.ValidateFields()
	assert.EqualError(t, err, "unmapped dataset fields: fields.date, fields.barber, fields.client, fields.service, fields.price")
}

func TestKeyringStore(t *testing.T) {
	store := NewKeyringStore(keyring.NewArrayKeyring(nil))

	_, err := store.Get(APIKeyName("gemini"))
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, store.Set(APIKeyName("gemini"), "g-123"))
	got, err := store.Get("gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "g-123", got)

	require.NoError(t, store.Delete("gemini_api_key"))
	require.NoError(t, store.Delete("gemini_api_key"))
	_, err = store.Get("gemini_api_key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestResolveAPIKey(t *testing.T) {
	store := NewKeyringStore(keyring.NewArrayKeyring([]keyring.Item{
		{Key: "openai_api_key", Data: []byte("sk-ring")},
	}))

	cfg := &Config{}
	cfg.LLM.Provider = "openai"
	require.NoError(t, ResolveAPIKey(cfg, store))
	assert.Equal(t, "sk-ring", cfg.LLM.APIKey)

	cfg.LLM.APIKey = "sk-config"
	require.NoError(t, ResolveAPIKey(cfg, store))
	assert.Equal(t, "sk-config", cfg.LLM.APIKey, "an explicit key wins")

	cfg = &Config{}
	cfg.LLM.Provider = "gemini"
	require.NoError(t, ResolveAPIKey(cfg, store))
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := testutil.NewTestLogger(t)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.Equal(t, loggerKey{}, LoggerKey())
}
