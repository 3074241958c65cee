package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kingdombarber/insight/internal/cli/config"
)

type secretStoreKey struct{}

// WithSecretStore makes commands use store instead of the OS keyring.
func WithSecretStore(ctx context.Context, store config.SecretStore) context.Context {
	return context.WithValue(ctx, secretStoreKey{}, store)
}

// secretStore returns the injected store or opens the OS keyring.
func secretStore(ctx context.Context) (config.SecretStore, error) {
	if store, ok := ctx.Value(secretStoreKey{}).(config.SecretStore); ok {
		return store, nil
	}
	return config.OpenKeyring()
}

// NewSecretsCommand creates the secrets command group.
func NewSecretsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage model API keys in the OS keyring",
		Long: `Store, check and remove language model API keys in the operating system
keyring, so they don't have to live in insight.yaml or the environment.

A key in the configuration or the environment takes precedence over the
keyring.`,
	}
	cmd.AddCommand(newSecretsSetCommand(), newSecretsStatusCommand(), newSecretsDeleteCommand())
	return cmd
}

func providerArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return getConfig().LLM.Provider
}

func newSecretsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set [provider]",
		Short: "Store the API key of a provider",
		Long: `Store the API key of a provider (default: the configured one).
On a terminal the key is prompted for without echo; otherwise it is read
from stdin.`,
		Example: `  insight secrets set
  echo "$OPENAI_API_KEY" | insight secrets set openai`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := providerArg(args)
			value, err := readSecret(cmd, provider)
			if err != nil {
				return err
			}
			if value == "" {
				return errors.New("empty API key")
			}
			store, err := secretStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Set(config.APIKeyName(provider), value); err != nil {
				return fmt.Errorf("failed to store API key: %w", err)
			}
			NewCommandContextWithoutService(cmd).Renderer.Success("Stored API key for " + provider)
			return nil
		},
	}
}

func newSecretsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [provider]",
		Short: "Report whether an API key is stored",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := providerArg(args)
			store, err := secretStore(cmd.Context())
			if err != nil {
				return err
			}
			r := NewCommandContextWithoutService(cmd).Renderer
			_, err = store.Get(config.APIKeyName(provider))
			switch {
			case errors.Is(err, config.ErrSecretNotFound):
				r.Status(statusWarn, "no API key stored for "+provider)
				return nil
			case err != nil:
				return err
			}
			r.Status(statusPass, "API key stored for "+provider)
			return nil
		},
	}
}

func newSecretsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [provider]",
		Aliases: []string{"rm"},
		Short:   "Remove the stored API key of a provider",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := providerArg(args)
			store, err := secretStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Delete(config.APIKeyName(provider)); err != nil {
				return fmt.Errorf("failed to delete API key: %w", err)
			}
			NewCommandContextWithoutService(cmd).Renderer.Success("Removed API key for " + provider)
			return nil
		},
	}
}

func readSecret(cmd *cobra.Command, provider string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "API key for %s: ", provider)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
