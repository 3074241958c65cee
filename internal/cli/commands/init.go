package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/cli/config"
	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/source"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Force   bool
	Prompts bool
	NoDemo  bool
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a configuration and a demo database",
		Long: `Create insight.yaml with commented defaults and a SQLite demo database
with sample sites, barbers, clients, services and appointments.

Use --prompts to also write the built-in prompt catalogue to prompts.yaml
so its wording can be edited.`,
		Example: `  # Initialize in the current directory
  insight init

  # Initialize in a new directory, with editable prompts
  insight init kingdom --prompts

  # Force overwrite existing files
  insight init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(cfg.OutputFormat))
			return runInit(cmd, r, dir, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&opts.Prompts, "prompts", false, "Also write the prompt catalogue to prompts.yaml")
	cmd.Flags().BoolVar(&opts.NoDemo, "no-demo", false, "Don't create the demo database")

	return cmd
}

func runInit(cmd *cobra.Command, r *output.Renderer, dir string, opts *InitOptions) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	}

	written, err := writeScaffold(dir, scaffoldFiles(opts.Prompts), opts.Force)
	if err != nil {
		return err
	}
	for _, name := range written {
		r.Success(name)
	}

	if !opts.NoDemo {
		dbPath := filepath.Join(dir, source.DefaultDemoPath)
		if err := source.CreateDemoDatabase(cmd.Context(), dbPath); err != nil {
			return err
		}
		r.Success(source.DefaultDemoPath)
	}

	_, _ = fmt.Fprintln(r.Out())
	r.Success("insight initialized")
	_, _ = fmt.Fprintln(r.Out())
	_, _ = fmt.Fprintln(r.Out(), "Next steps:")
	_, _ = fmt.Fprintln(r.Out(), "  1. Store your API key:   insight secrets set")
	_, _ = fmt.Fprintln(r.Out(), "  2. Look at the data:     insight schema")
	_, _ = fmt.Fprintln(r.Out(), "  3. Ask a question:       insight ask")
	return nil
}
