package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// FilterOptions holds the dataset filter flags shared by data commands.
type FilterOptions struct {
	Site    string
	Barber  string
	Service string
	From    string
	To      string
}

// addFilterFlags registers --site, --barber, --service, --from and --to.
func addFilterFlags(cmd *cobra.Command, opts *FilterOptions) {
	cmd.Flags().StringVar(&opts.Site, "site", "", "Only this site (Todas for all)")
	cmd.Flags().StringVar(&opts.Barber, "barber", "", "Only this barber (Todos for all)")
	cmd.Flags().StringVar(&opts.Service, "service", "", "Only this service (Todos for all)")
	cmd.Flags().StringVar(&opts.From, "from", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Last day to include (YYYY-MM-DD)")
}

// Filter converts the flags into a dataset filter.
func (o FilterOptions) Filter() (dataset.Filter, error) {
	f := dataset.Filter{Site: o.Site, Barber: o.Barber, Service: o.Service}
	var err error
	if f.From, err = parseDay(o.From); err != nil {
		return dataset.Filter{}, fmt.Errorf("invalid --from: %w", err)
	}
	if f.To, err = parseDay(o.To); err != nil {
		return dataset.Filter{}, fmt.Errorf("invalid --to: %w", err)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return dataset.Filter{}, fmt.Errorf("--to %s is before --from %s", o.To, o.From)
	}
	return f, nil
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dataset.DateLayout, s)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dataset.DateLayout)
}
