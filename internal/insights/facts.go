package insights

import (
	"sort"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// CampaignGoals are the supported campaign objectives.
var CampaignGoals = []string{
	"Atraer nuevos clientes",
	"Fidelizar clientes existentes",
	"Promocionar un servicio poco popular",
	"Aumentar citas en días flojos",
}

// Channels are the supported campaign channels.
var Channels = []string{"WhatsApp", "Email", "Redes Sociales"}

// OpportunityAreas are the areas an opportunity report can cover.
var OpportunityAreas = []string{
	"Clientes en Riesgo de Abandono",
	"Oportunidades de Venta Cruzada (Cross-selling)",
	"Optimización de Servicios",
	"Rendimiento de Barberos",
	"Mejorar Días de Baja Demanda",
}

// ExampleQuestions are shown to users who don't know what to ask.
var ExampleQuestions = []string{
	"¿Cuál es el servicio que generó menos ingresos?",
	"¿Qué barbero atendió más citas este mes?",
	"¿Cuál es el ingreso promedio por cita en cada sede?",
	"¿Qué día de la semana tiene más citas?",
}

// LeastPopular returns the least frequent value of column, or NotAvailable.
// Ties go to the smallest value.
func LeastPopular(ds *dataset.Dataset, column string) string {
	values, err := ds.ColumnValues(column)
	if err != nil {
		return NotAvailable
	}
	return leastFrequent(values)
}

// SlowestWeekday returns the weekday with the fewest appointments among the
// weekdays that have any, or NotAvailable.
func SlowestWeekday(ds *dataset.Dataset, dateColumn string) string {
	values, err := ds.ColumnValues(dateColumn)
	if err != nil {
		return NotAvailable
	}
	days := make([]any, 0, len(values))
	for _, v := range values {
		if t, ok := dataset.AsTime(v); ok {
			days = append(days, dataset.WeekdayName(t.Weekday()))
		}
	}
	return leastFrequent(days)
}

func leastFrequent(values []any) string {
	counts := dataset.ValueCounts(values)
	if len(counts) == 0 {
		return NotAvailable
	}
	least := counts[0]
	for _, c := range counts[1:] {
		if c.N < least.N || (c.N == least.N && dataset.Compare(c.Value, least.Value) < 0) {
			least = c
		}
	}
	return dataset.FormatValue(least.Value)
}

// AtRiskClients lists, sorted, the clients of ds with no appointment within
// window before the latest appointment date. It is empty when the client or
// date column is missing or has no values.
func AtRiskClients(ds *dataset.Dataset, fields dataset.Fields, window time.Duration) []string {
	clients, err := ds.ColumnValues(fields.Client)
	if err != nil {
		return nil
	}
	dates, err := ds.ColumnValues(fields.Date)
	if err != nil {
		return nil
	}
	_, latest := dataset.DateSpan(ds, fields.Date)
	if latest.IsZero() {
		return nil
	}
	cutoff := latest.Add(-window)

	seen := make(map[string]bool)
	recent := make(map[string]bool)
	for i, c := range clients {
		name := dataset.FormatValue(c)
		if c == nil || name == "" {
			continue
		}
		seen[name] = true
		if t, ok := dataset.AsTime(dates[i]); ok && t.After(cutoff) {
			recent[name] = true
		}
	}

	var out []string
	for name := range seen {
		if !recent[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
