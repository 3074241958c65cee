package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// Context keys, as exchanged with report templates and API clients.
const (
	KeySiteName       = "site-name"
	KeyDateRangeStart = "date-range-start"
	KeyDateRangeEnd   = "date-range-end"
	KeyBarberName     = "barber-name"
	KeyServiceName    = "service-name"
)

// DateLayout is the display format of report dates.
const DateLayout = "02/01/2006"

// Labels shown for unrestricted selectors.
const (
	AllSites = "Todas"
	AllOther = "Todos"
)

// Context describes the filters a report was produced under.
type Context struct {
	Site    string
	Barber  string
	Service string
	From    time.Time
	To      time.Time
}

// ContextFromFilter describes f. Open date bounds are closed with the date
// span of ds.
func ContextFromFilter(f dataset.Filter, ds *dataset.Dataset, fields dataset.Fields) Context {
	c := Context{Site: f.Site, Barber: f.Barber, Service: f.Service, From: f.From, To: f.To}
	if c.From.IsZero() || c.To.IsZero() {
		lo, hi := dataset.DateSpan(ds, fields.Date)
		if c.From.IsZero() {
			c.From = lo
		}
		if c.To.IsZero() {
			c.To = hi
		}
	}
	return c
}

// ContextFromMap parses the keyed form of a Context. Dates may be given as
// 02/01/2006 or 2006-01-02; unknown keys are an error.
func ContextFromMap(m map[string]string) (Context, error) {
	var c Context
	for k, v := range m {
		v = strings.TrimSpace(v)
		var err error
		switch k {
		case KeySiteName:
			c.Site = v
		case KeyBarberName:
			c.Barber = v
		case KeyServiceName:
			c.Service = v
		case KeyDateRangeStart:
			c.From, err = parseDate(v)
		case KeyDateRangeEnd:
			c.To, err = parseDate(v)
		default:
			err = fmt.Errorf("unknown key")
		}
		if err != nil {
			return Context{}, fmt.Errorf("report context %s: %w", k, err)
		}
	}
	if !c.From.IsZero() && !c.To.IsZero() && c.To.Before(c.From) {
		return Context{}, fmt.Errorf("report context: %s is before %s", KeyDateRangeEnd, KeyDateRangeStart)
	}
	return c, nil
}

// Map returns the keyed, display-formatted form of c.
func (c Context) Map() map[string]string {
	return map[string]string{
		KeySiteName:       label(c.Site, AllSites),
		KeyBarberName:     label(c.Barber, AllOther),
		KeyServiceName:    label(c.Service, AllOther),
		KeyDateRangeStart: formatDate(c.From),
		KeyDateRangeEnd:   formatDate(c.To),
	}
}

// Filter converts c back into a dataset filter.
func (c Context) Filter() dataset.Filter {
	return dataset.Filter{Site: c.Site, Barber: c.Barber, Service: c.Service, From: c.From, To: c.To}
}

func label(v, all string) string {
	if dataset.IsAll(v) {
		return all
	}
	return v
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{DateLayout, dataset.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}
