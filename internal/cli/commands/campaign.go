package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/insights"
)

// CampaignOptions holds options for the campaign command.
type CampaignOptions struct {
	FilterOptions
	Goal    string
	Channel string
}

// NewCampaignCommand creates the campaign command.
func NewCampaignCommand() *cobra.Command {
	opts := &CampaignOptions{}

	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Draft a marketing campaign",
		Long: fmt.Sprintf(`Draft a marketing campaign aimed at the least booked service and the
slowest weekday of the selected data.

Goals:    %s
Channels: %s`, strings.Join(insights.CampaignGoals, ", "), strings.Join(insights.Channels, ", ")),
		Example: `  insight campaign --goal "Aumentar citas en días flojos" --channel WhatsApp`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCampaign(cmd, opts)
		},
	}

	addFilterFlags(cmd, &opts.FilterOptions)
	cmd.Flags().StringVar(&opts.Goal, "goal", insights.CampaignGoals[0], "Campaign goal")
	cmd.Flags().StringVar(&opts.Channel, "channel", insights.Channels[0], "Channel the campaign runs on")
	_ = cmd.RegisterFlagCompletionFunc("goal", fixedCompletions(insights.CampaignGoals))
	_ = cmd.RegisterFlagCompletionFunc("channel", fixedCompletions(insights.Channels))

	return cmd
}

func runCampaign(cmd *cobra.Command, opts *CampaignOptions) error {
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
	stop := r.Spinner("Creando campaña...")
	c, err := cc.Service.Campaign(cmd.Context(), f, insights.CampaignRequest{Goal: opts.Goal, Channel: opts.Channel})
	if err != nil {
		stop(false, "No se pudo crear la campaña")
		return presentError(err)
	}
	stop(true, "")

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(c)
	}
	r.Muted(fmt.Sprintf("%s · %s · servicio: %s · día: %s", c.Goal, c.Channel, c.WeakService, c.WeakDay))
	_, _ = fmt.Fprintln(r.Out())
	return r.Markdown(c.Text)
}

func fixedCompletions(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
