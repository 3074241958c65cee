package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/cli/config"
	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/prompt"
	"github.com/kingdombarber/insight/internal/source"
)

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, data source and model access",
		Long: `Check that insight is ready to answer questions:
- the configuration is valid and every dataset field is mapped
- the data source loads and has the mapped columns
- the prompt catalogue parses
- the language model has credentials

The model itself is not called.`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile string        `json:"config_file,omitempty"`
	Checks     []HealthCheck `json:"checks"`
	Healthy    bool          `json:"healthy"`
}

// HealthCheck is a single check result.
type HealthCheck struct {
	Group   string   `json:"group"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Details []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContextWithoutService(cmd)
	out := diagnose(cmd.Context(), cc)

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		renderDoctor(r, out)
	}
	if !out.Healthy {
		return errors.New("doctor found problems")
	}
	return nil
}

func diagnose(ctx context.Context, cc *CommandContext) *DoctorOutput {
	cfg := cc.Cfg
	out := &DoctorOutput{ConfigFile: config.GetConfigFileUsed()}
	add := func(group, name, status string, details ...string) {
		out.Checks = append(out.Checks, HealthCheck{Group: group, Name: name, Status: status, Details: details})
	}

	if err := cfg.Validate(); err != nil {
		add("configuration", "settings", statusError, splitJoined(err)...)
	} else {
		add("configuration", "settings", statusPass)
	}
	if err := cfg.ValidateFields(); err != nil {
		add("configuration", "field mapping", statusError, err.Error())
	} else {
		add("configuration", "field mapping", statusPass)
	}

	provider, err := source.Open(ctx, cfg.Source, cc.Logger)
	if err != nil {
		add("data", "source "+cfg.Source.Kind, statusError, err.Error())
	} else {
		if c, ok := provider.(source.Closer); ok {
			defer func() { _ = c.Close() }()
		}
		ds, err := provider.FetchDataset(ctx)
		switch {
		case err != nil:
			add("data", "source "+cfg.Source.Kind, statusError, err.Error())
		case ds.Empty():
			add("data", "source "+cfg.Source.Kind, statusWarn, "the source returned no rows")
		default:
			var missing []string
			for _, col := range cfg.Fields.Columns() {
				if !ds.HasColumn(col) {
					missing = append(missing, "missing column "+col)
				}
			}
			status := statusPass
			if len(missing) > 0 {
				status = statusError
			}
			add("data", fmt.Sprintf("source %s (%d rows)", cfg.Source.Kind, ds.Len()), status, missing...)
		}
	}

	if _, err := prompt.LoadCatalog(cfg.Prompts.File); err != nil {
		add("model", "prompt catalogue", statusError, err.Error())
	} else {
		name := "embedded prompt catalogue"
		if cfg.Prompts.File != "" {
			name = "prompt catalogue " + cfg.Prompts.File
		}
		add("model", name, statusPass)
	}

	add("model", "credentials for "+cfg.LLM.Provider, credentialStatus(ctx, cfg))

	out.Healthy = true
	for _, c := range out.Checks {
		if c.Status == statusError {
			out.Healthy = false
		}
	}
	return out
}

func credentialStatus(ctx context.Context, cfg *config.Config) string {
	if strings.EqualFold(cfg.LLM.Provider, llm.ProviderOllama) || cfg.LLM.APIKey != "" {
		return statusPass
	}
	store, err := secretStore(ctx)
	if err != nil {
		return statusWarn
	}
	probe := *cfg
	if err := config.ResolveAPIKey(&probe, store); err != nil || probe.LLM.APIKey == "" {
		return statusWarn
	}
	return statusPass
}

// splitJoined unpacks an errors.Join result into its messages.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint // inspecting the join itself
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

func renderDoctor(r *output.Renderer, out *DoctorOutput) {
	r.Header("insight doctor")
	if out.ConfigFile != "" {
		r.Muted("config: " + out.ConfigFile)
	} else {
		r.Muted("config: built-in defaults")
	}
	_, _ = fmt.Fprintln(r.Out())

	titleCaser := cases.Title(language.English)
	group := ""
	for _, c := range out.Checks {
		if c.Group != group {
			group = c.Group
			r.Header(titleCaser.String(group))
		}
		r.Status(c.Status, c.Name)
		for _, d := range c.Details {
			r.Muted("    - " + d)
		}
	}
	_, _ = fmt.Fprintln(r.Out())

	if out.Healthy {
		r.Success("Ready")
	}
}
