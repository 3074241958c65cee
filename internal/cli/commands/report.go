package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/app"
	"github.com/kingdombarber/insight/internal/cli/output"
)

// ReportOptions holds options for the report command.
type ReportOptions struct {
	FilterOptions
	Out     string
	Publish bool
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	opts := &ReportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a business report for the selected data",
		Long: `Generate a markdown business report: the filters it covers, key
indicators and an executive analysis written by the language model.

With --publish the report and a Parquet snapshot of its data are uploaded
to the configured storage (storage.kind dir or s3).`,
		Example: `  # Report for one site in May, written to a file
  insight report --site Centro --from 2024-05-01 --to 2024-05-31 --out mayo.md

  # Publish to object storage
  insight report --publish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}

	addFilterFlags(cmd, &opts.FilterOptions)
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Upload the report and a data snapshot")

	return cmd
}

func runReport(cmd *cobra.Command, opts *ReportOptions) error {
	f, err := opts.Filter()
	if err != nil {
		return err
	}
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	stop := r.Spinner("Generando informe...")
	rep, err := cc.Service.Report(cmd.Context(), f, opts.Publish)
	if err != nil {
		stop(false, "No se pudo generar el informe")
		if errors.Is(err, app.ErrPublishingDisabled) {
			return fmt.Errorf("%w: set storage.kind to dir or s3", err)
		}
		return presentError(err)
	}
	stop(true, "")

	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, rep.Document, 0o600); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		r.Success(fmt.Sprintf("Report written to %s", opts.Out))
	}
	if rep.Published != nil {
		r.Success(fmt.Sprintf("Published %s and %s", rep.Published.Report.Key, rep.Published.Data.Key))
	}
	if opts.Out != "" {
		return nil
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			*app.Report
			Markdown string `json:"markdown"`
		}{rep, string(rep.Document)})
	}
	return r.Markdown(string(rep.Document))
}
