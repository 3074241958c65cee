package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/report"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	FilterOptions
	Format string
	Out    string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered data",
		Long: `Write the filtered appointment data as CSV, JSON or Parquet.
Parquet output needs --out.`,
		Example: `  insight export --site Norte --format csv > norte.csv
  insight export --format parquet --out citas.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts)
		},
	}

	addFilterFlags(cmd, &opts.FilterOptions)
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "csv", "Output format: csv, json, parquet")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write to this file instead of stdout")
	_ = cmd.RegisterFlagCompletionFunc("format", fixedCompletions([]string{"csv", "json", "parquet"}))

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	format := strings.ToLower(opts.Format)
	if format == "parquet" && opts.Out == "" {
		return fmt.Errorf("parquet export needs --out")
	}
	f, err := opts.Filter()
	if err != nil {
		return err
	}
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ds, err := cc.Service.Dataset(cmd.Context(), f)
	if err != nil {
		return presentError(err)
	}
	data, err := encodeExport(ds, cc.Service.Fields(), format)
	if err != nil {
		return err
	}

	if opts.Out == "" {
		_, err = io.Copy(cmd.OutOrStdout(), bytes.NewReader(data))
		return err
	}
	if err := os.WriteFile(opts.Out, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Out, err)
	}
	cc.Renderer.Success(fmt.Sprintf("Exported %d rows to %s", ds.Len(), opts.Out))
	return nil
}

func encodeExport(ds *dataset.Dataset, fields dataset.Fields, format string) ([]byte, error) {
	switch format {
	case "csv":
		return []byte(dataset.RenderCSV(ds) + "\n"), nil
	case "json":
		data, err := json.MarshalIndent(ds.Records(), "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "parquet":
		res, err := report.EncodeParquet(ds, fields)
		if err != nil {
			return nil, err
		}
		return res.Data, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want csv, json or parquet)", format)
	}
}
