package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/insights"
)

// OpportunitiesOptions holds options for the opportunities command.
type OpportunitiesOptions struct {
	FilterOptions
	Areas []string
}

// NewOpportunitiesCommand creates the opportunities command.
func NewOpportunitiesCommand() *cobra.Command {
	opts := &OpportunitiesOptions{}

	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"opps"},
		Short:   "Look for business opportunities in the data",
		Long: fmt.Sprintf(`Look for actionable findings in one or more areas of interest, such as
clients who stopped coming or services that sell poorly.

Areas: %s`, strings.Join(insights.OpportunityAreas, ", ")),
		Example: `  insight opportunities --area "Clientes en Riesgo de Abandono" --area "Optimización de Servicios"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOpportunities(cmd, opts)
		},
	}

	addFilterFlags(cmd, &opts.FilterOptions)
	cmd.Flags().StringArrayVar(&opts.Areas, "area", nil, "Area of interest (repeatable, default all)")
	_ = cmd.RegisterFlagCompletionFunc("area", fixedCompletions(insights.OpportunityAreas))

	return cmd
}

func runOpportunities(cmd *cobra.Command, opts *OpportunitiesOptions) error {
	f, err := opts.Filter()
	if err != nil {
		return err
	}
	areas := opts.Areas
	if len(areas) == 0 {
		areas = insights.OpportunityAreas
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	stop := r.Spinner("Buscando oportunidades...")
	o, err := cc.Service.Opportunities(cmd.Context(), f, areas)
	if err != nil {
		stop(false, "No se pudieron encontrar oportunidades")
		return presentError(err)
	}
	stop(true, "")

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(o)
	}
	for _, line := range o.KeyData {
		r.Muted(line)
	}
	_, _ = fmt.Fprintln(r.Out())
	return r.Markdown(o.Text)
}
