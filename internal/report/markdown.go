// Package report renders and publishes business reports: a markdown
// document with the filter summary, KPIs, the model's analysis and a data
// table, plus a Parquet snapshot of the rows it was built from.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Renderer turns a filtered dataset and its analysis into a document.
type Renderer interface {
	Render(ds *dataset.Dataset, analysis string, ctx Context) ([]byte, error)
}

// DefaultMaxRows bounds the data table of a markdown report.
const DefaultMaxRows = 20

// MarkdownRenderer renders reports as GitHub-flavoured markdown.
type MarkdownRenderer struct {
	Title   string
	Fields  dataset.Fields
	MaxRows int
	Now     func() time.Time
}

// NewMarkdownRenderer returns a renderer with the default title and row
// limit.
func NewMarkdownRenderer(fields dataset.Fields) *MarkdownRenderer {
	return &MarkdownRenderer{
		Title:   "Reporte de Negocio: Kingdom Barber",
		Fields:  fields,
		MaxRows: DefaultMaxRows,
		Now:     time.Now,
	}
}

// KPIs are the headline numbers of a report.
type KPIs struct {
	Appointments int     `json:"appointments"`
	Revenue      float64 `json:"revenue"`
	Clients      int     `json:"clients"`
}

// ComputeKPIs counts appointments, sums prices and counts distinct clients.
// Missing columns count as zero.
func ComputeKPIs(ds *dataset.Dataset, fields dataset.Fields) KPIs {
	k := KPIs{Appointments: ds.Len()}
	if prices, err := ds.ColumnValues(fields.Price); err == nil {
		k.Revenue = dataset.Sum(prices)
	}
	if clients, err := ds.Unique(fields.Client); err == nil {
		k.Clients = len(clients)
	}
	return k
}

// Render implements Renderer.
func (r *MarkdownRenderer) Render(ds *dataset.Dataset, analysis string, ctx Context) ([]byte, error) {
	if ds == nil {
		return nil, fmt.Errorf("render report: nil dataset")
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	p := message.NewPrinter(language.Spanish)
	m := ctx.Map()
	k := ComputeKPIs(ds, r.Fields)

	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "_Generado el %s_\n\n", now().Format(DateLayout+" 15:04"))

	b.WriteString("## Filtros aplicados\n\n")
	fmt.Fprintf(&b, "- **Sede:** %s\n", m[KeySiteName])
	fmt.Fprintf(&b, "- **Periodo:** %s\n", period(m[KeyDateRangeStart], m[KeyDateRangeEnd]))
	fmt.Fprintf(&b, "- **Barbero:** %s\n", m[KeyBarberName])
	fmt.Fprintf(&b, "- **Servicio:** %s\n\n", m[KeyServiceName])

	b.WriteString("## Indicadores\n\n")
	p.Fprintf(&b, "- **Citas:** %d\n", k.Appointments)
	p.Fprintf(&b, "- **Ingresos:** $%.0f\n", k.Revenue)
	p.Fprintf(&b, "- **Clientes únicos:** %d\n\n", k.Clients)

	b.WriteString("## Análisis\n\n")
	if analysis == "" {
		b.WriteString("_Sin análisis._\n\n")
	} else {
		b.WriteString(analysis)
		b.WriteString("\n\n")
	}

	maxRows := r.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if ds.Len() > maxRows {
		fmt.Fprintf(&b, "## Datos (primeras %d de %d filas)\n\n", maxRows, ds.Len())
	} else {
		b.WriteString("## Datos\n\n")
	}
	if ds.Empty() {
		b.WriteString("_No hay datos para los filtros seleccionados._\n")
	} else {
		b.WriteString(dataset.RenderMarkdown(ds.Head(maxRows)))
		b.WriteString("\n")
	}
	return b.Bytes(), nil
}

func period(from, to string) string {
	switch {
	case from == "" && to == "":
		return "Todo el historial"
	case from == "":
		return "hasta " + to
	case to == "":
		return "desde " + from
	}
	return from + " al " + to
}
