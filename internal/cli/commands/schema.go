package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// SchemaOptions holds options for the schema command.
type SchemaOptions struct {
	FilterOptions
	Preview int
	Format  string
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	opts := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the columns and filter choices of the data",
		Long: `Show the columns of the appointment data with their inferred types,
the number of rows after filtering, and the sites, barbers and services
that can be used as filters.`,
		Example: `  # Columns and filter choices
  insight schema

  # First rows of one site as CSV
  insight schema --site Centro --preview 5 --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchema(cmd, opts)
		},
	}

	addFilterFlags(cmd, &opts.FilterOptions)
	cmd.Flags().IntVarP(&opts.Preview, "preview", "n", 0, "Also print the first N rows")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Preview format: table, json, csv, md")

	return cmd
}

type schemaJSON struct {
	Columns []dataset.Column `json:"columns"`
	Rows    int              `json:"rows"`
	Options dataset.Options  `json:"options"`
	Preview []dataset.Record `json:"preview,omitempty"`
}

func runSchema(cmd *cobra.Command, opts *SchemaOptions) error {
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
	choices := dataset.FilterOptions(ds, cc.Service.Fields())
	r := cc.Renderer

	if r.EffectiveMode() == output.ModeJSON && opts.Format == "" {
		doc := schemaJSON{Columns: ds.Columns(), Rows: ds.Len(), Options: choices}
		if opts.Preview > 0 {
			doc.Preview = ds.Head(opts.Preview).Records()
		}
		return r.JSON(doc)
	}

	r.Header("Columnas")
	_, _ = fmt.Fprintln(r.Out(), ds.Schema())
	_, _ = fmt.Fprintf(r.Out(), "\n%d filas\n\n", ds.Len())

	r.Header("Filtros")
	printChoices(r, "Sedes", choices.Sites)
	printChoices(r, "Barberos", choices.Barbers)
	printChoices(r, "Servicios", choices.Services)
	if !choices.MinDate.IsZero() {
		_, _ = fmt.Fprintf(r.Out(), "Fechas: %s a %s\n", formatDay(choices.MinDate), formatDay(choices.MaxDate))
	}

	if opts.Preview > 0 {
		_, _ = fmt.Fprintln(r.Out())
		r.Header("Vista previa")
		return r.Dataset(ds.Head(opts.Preview), opts.Format)
	}
	return nil
}

func printChoices(r *output.Renderer, label string, values []string) {
	if len(values) == 0 {
		r.Muted(label + ": -")
		return
	}
	_, _ = fmt.Fprintf(r.Out(), "%s: %v\n", label, values)
}
