// Package cli provides the command-line interface for insight.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/cli/commands"
	"github.com/kingdombarber/insight/internal/cli/config"
	"github.com/kingdombarber/insight/internal/observability"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// unvalidated commands run with a configuration that may not be complete
// yet: they create it, report on it, or don't read it.
var unvalidated = []string{"help", "completion", "__complete", "version", "init", "doctor", "secrets", "set", "status", "delete"}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "insight",
		Short: "insight - ask questions about Kingdom Barber appointments",
		Long: `insight answers natural-language questions about barbershop appointment
data. A language model writes a short analysis script, the script runs in a
sandbox over the filtered data, and the model explains the result.

It also writes business reports, marketing campaign drafts, opportunity
findings and haircut advice, from the terminal or over HTTP.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Verbose && !cmd.Flags().Changed("log-level") {
				cfg.Log.Level = "debug"
			}
			if !slices.Contains(unvalidated, cmd.Name()) {
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration:\n%w", err)
				}
			}

			logger, err := observability.NewLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					logger.Info("using config file", "path", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (%s, %s)\n", GitCommit, BuildDate))

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./insight.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-format", "", "Log format (text|json)")
	pf.String("source-kind", "", "Data source kind (demo|sql|file|http)")
	pf.String("source-path", "", "Demo database or data file path")
	pf.String("source-dsn", "", "Database connection string for the sql source")
	pf.String("source-driver", "", "Database driver for the sql source (sqlite|duckdb|pgx)")
	pf.String("source-url", "", "URL of the http source")
	pf.String("provider", "", "Language model provider (gemini|openai|ollama)")
	pf.String("model", "", "Language model name")

	complete := func(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		}
	}
	_ = rootCmd.RegisterFlagCompletionFunc("output", complete("auto", "text", "markdown", "json"))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", complete("debug", "info", "warn", "error"))
	_ = rootCmd.RegisterFlagCompletionFunc("source-kind", complete("demo", "sql", "file", "http"))
	_ = rootCmd.RegisterFlagCompletionFunc("source-driver", complete("sqlite", "duckdb", "pgx"))
	_ = rootCmd.RegisterFlagCompletionFunc("provider", complete("gemini", "openai", "ollama"))

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewSecretsCommand())
	rootCmd.AddCommand(commands.NewSchemaCommand())
	rootCmd.AddCommand(commands.NewAskCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewCampaignCommand())
	rootCmd.AddCommand(commands.NewOpportunitiesCommand())
	rootCmd.AddCommand(commands.NewStyleCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for insight.

To load completions:

Bash:
  $ source <(insight completion bash)

Zsh:
  $ insight completion zsh > "${fpath[1]}/_insight"

Fish:
  $ insight completion fish | source

PowerShell:
  PS> insight completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
