package dataset

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Default column names of the appointment view.
const (
	DefaultSiteColumn    = "Nombre_Sede"
	DefaultDateColumn    = "Fecha"
	DefaultBarberColumn  = "Nombre_Completo_Barbero"
	DefaultClientColumn  = "Nombre_Completo_Cliente"
	DefaultServiceColumn = "Nombre_Servicio"
	DefaultPriceColumn   = "Precio"
)

// Fields maps the logical appointment fields onto dataset columns.
type Fields struct {
	Site    string `koanf:"site" json:"site"`
	Date    string `koanf:"date" json:"date"`
	Barber  string `koanf:"barber" json:"barber"`
	Client  string `koanf:"client" json:"client"`
	Service string `koanf:"service" json:"service"`
	Price   string `koanf:"price" json:"price"`
}

// DefaultFields returns the column mapping of the appointment view.
func DefaultFields() Fields {
	return Fields{
		Site:    DefaultSiteColumn,
		Date:    DefaultDateColumn,
		Barber:  DefaultBarberColumn,
		Client:  DefaultClientColumn,
		Service: DefaultServiceColumn,
		Price:   DefaultPriceColumn,
	}
}

// Columns returns the mapped column names, skipping unset fields.
func (f Fields) Columns() []string {
	var out []string
	for _, c := range []string{f.Site, f.Date, f.Barber, f.Client, f.Service, f.Price} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// allValues are selector values meaning "no restriction".
var allValues = map[string]bool{
	"":      true,
	"*":     true,
	"all":   true,
	"todas": true,
	"todos": true,
}

// IsAll reports whether a selector value means "no restriction".
func IsAll(v string) bool {
	return allValues[strings.ToLower(strings.TrimSpace(v))]
}

// Filter narrows a dataset to one site, barber, service and date range.
// Zero values leave the corresponding dimension unrestricted.
type Filter struct {
	Site    string    `json:"site,omitempty"`
	Barber  string    `json:"barber,omitempty"`
	Service string    `json:"service,omitempty"`
	From    time.Time `json:"from,omitzero"`
	To      time.Time `json:"to,omitzero"`
}

// IsZero reports whether the filter restricts nothing.
func (f Filter) IsZero() bool {
	return IsAll(f.Site) && IsAll(f.Barber) && IsAll(f.Service) && f.From.IsZero() && f.To.IsZero()
}

// Apply returns the rows of d that match the filter.
// Text selectors compare case-insensitively. A date bound drops rows without
// a date; To is inclusive of the whole day.
func (f Filter) Apply(d *Dataset, fields Fields) *Dataset {
	if f.IsZero() {
		return d.Clone()
	}

	folder := cases.Fold()
	match := func(rec Record, column, want string) bool {
		if IsAll(want) || column == "" {
			return true
		}
		got := FormatValue(rec[column])
		return folder.String(strings.TrimSpace(got)) == folder.String(strings.TrimSpace(want))
	}

	var upper time.Time
	if !f.To.IsZero() {
		upper = startOfDay(f.To).AddDate(0, 0, 1)
	}
	lower := startOfDay(f.From)

	return d.Filter(func(rec Record) bool {
		if !match(rec, fields.Site, f.Site) ||
			!match(rec, fields.Barber, f.Barber) ||
			!match(rec, fields.Service, f.Service) {
			return false
		}
		if f.From.IsZero() && f.To.IsZero() {
			return true
		}
		t, ok := AsTime(rec[fields.Date])
		if !ok {
			return false
		}
		if !f.From.IsZero() && t.Before(lower) {
			return false
		}
		if !upper.IsZero() && !t.Before(upper) {
			return false
		}
		return true
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Options lists the values a caller can filter by.
type Options struct {
	Sites    []string  `json:"sites"`
	Barbers  []string  `json:"barbers"`
	Services []string  `json:"services"`
	MinDate  time.Time `json:"min_date,omitzero"`
	MaxDate  time.Time `json:"max_date,omitzero"`
}

// FilterOptions collects distinct selector values and the date span of d.
// Columns missing from d yield empty lists.
func FilterOptions(d *Dataset, fields Fields) Options {
	var opts Options
	opts.Sites, _ = d.Unique(fields.Site)
	opts.Barbers, _ = d.Unique(fields.Barber)
	opts.Services, _ = d.Unique(fields.Service)
	opts.MinDate, opts.MaxDate = DateSpan(d, fields.Date)
	return opts
}

// DateSpan returns the earliest and latest dates of a column.
func DateSpan(d *Dataset, column string) (minDate, maxDate time.Time) {
	values, err := d.ColumnValues(column)
	if err != nil {
		return minDate, maxDate
	}
	for _, v := range values {
		t, ok := AsTime(v)
		if !ok {
			continue
		}
		if minDate.IsZero() || t.Before(minDate) {
			minDate = t
		}
		if maxDate.IsZero() || t.After(maxDate) {
			maxDate = t
		}
	}
	return minDate, maxDate
}
