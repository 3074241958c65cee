package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingdombarber/insight/internal/storage"
	"github.com/kingdombarber/insight/internal/testutil"
	"github.com/kingdombarber/insight/pkg/dataset"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func appointments(t testing.TB) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]string{"Nombre_Sede", "Fecha", "Nombre_Completo_Barbero", "Nombre_Completo_Cliente", "Nombre_Servicio", "Precio"},
		[][]any{
			{"Centro", "2024-05-01", "Ana Gómez", "Juan Díaz", "Corte", 25000},
			{"Centro", "2024-05-02", "Luis Pardo", "Juan Díaz", "Barba", 15000},
			{"Norte", "2024-05-08", "Luis Pardo", "Carla Mora", "Corte", 50000},
		},
	)
	require.NoError(t, err)
	return ds
}

func TestContext_Map(t *testing.T) {
	c := Context{Site: "Centro", Barber: "todos", From: day(2024, 5, 1), To: day(2024, 5, 31)}

	assert.Equal(t, map[string]string{
		KeySiteName:       "Centro",
		KeyBarberName:     "Todos",
		KeyServiceName:    "Todos",
		KeyDateRangeStart: "01/05/2024",
		KeyDateRangeEnd:   "31/05/2024",
	}, c.Map())
	assert.Equal(t, AllSites, Context{}.Map()[KeySiteName])
	assert.Empty(t, Context{}.Map()[KeyDateRangeStart])
}

func TestContextFromMap(t *testing.T) {
	c, err := ContextFromMap(map[string]string{
		KeySiteName:       "Norte",
		KeyDateRangeStart: "01/05/2024",
		KeyDateRangeEnd:   "2024-05-31",
		KeyServiceName:    " Corte ",
	})
	require.NoError(t, err)
	assert.Equal(t, Context{Site: "Norte", Service: "Corte", From: day(2024, 5, 1), To: day(2024, 5, 31)}, c)

	round, err := ContextFromMap(c.Map())
	require.NoError(t, err)
	assert.Equal(t, c.From, round.From)
	assert.Equal(t, c.To, round.To)
}

func TestContextFromMap_Errors(t *testing.T) {
	tests := []map[string]string{
		{"city": "Bogotá"},
		{KeyDateRangeStart: "mayo"},
		{KeyDateRangeStart: "31/05/2024", KeyDateRangeEnd: "01/05/2024"},
	}
	for _, m := range tests {
		_, err := ContextFromMap(m)
		assert.Error(t, err, "%v", m)
	}
}

func TestContextFromFilter(t *testing.T) {
	ds := appointments(t)
	c := ContextFromFilter(dataset.Filter{Site: "Centro", To: day(2024, 5, 2)}, ds, dataset.DefaultFields())

	assert.Equal(t, "Centro", c.Site)
	assert.Equal(t, day(2024, 5, 1), c.From.UTC())
	assert.Equal(t, day(2024, 5, 2), c.To)
	assert.Equal(t, dataset.Filter{Site: "Centro", From: c.From, To: c.To}, c.Filter())
}

func TestComputeKPIs(t *testing.T) {
	k := ComputeKPIs(appointments(t), dataset.DefaultFields())
	assert.Equal(t, KPIs{Appointments: 3, Revenue: 90000, Clients: 2}, k)

	empty, err := dataset.New([]string{"x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, KPIs{}, ComputeKPIs(empty, dataset.DefaultFields()))
}

func TestMarkdownRenderer(t *testing.T) {
	r := NewMarkdownRenderer(dataset.DefaultFields())
	r.MaxRows = 2
	r.Now = func() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) }

	out, err := r.Render(appointments(t), "Las barbas crecen.", Context{Site: "Centro", From: day(2024, 5, 1), To: day(2024, 5, 8)})
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, "# Reporte de Negocio: Kingdom Barber\n"))
	assert.Contains(t, doc, "_Generado el 01/06/2024 09:30_")
	assert.Contains(t, doc, "- **Sede:** Centro")
	assert.Contains(t, doc, "- **Periodo:** 01/05/2024 al 08/05/2024")
	assert.Contains(t, doc, "- **Barbero:** Todos")
	assert.Contains(t, doc, "- **Citas:** 3")
	assert.Regexp(t, `Ingresos:\*\* \$90[.,\x{a0}]?000`, doc)
	assert.Contains(t, doc, "- **Clientes únicos:** 2")
	assert.Contains(t, doc, "Las barbas crecen.")
	assert.Contains(t, doc, "## Datos (primeras 2 de 3 filas)")
	assert.Contains(t, doc, "Luis Pardo")
	assert.NotContains(t, doc, "Carla Mora")
}

func TestMarkdownRenderer_Empty(t *testing.T) {
	empty, err := dataset.New([]string{"Nombre_Sede"}, nil)
	require.NoError(t, err)

	out, err := NewMarkdownRenderer(dataset.DefaultFields()).Render(empty, "", Context{})
	require.NoError(t, err)
	doc := string(out)
	assert.Contains(t, doc, "Todo el historial")
	assert.Contains(t, doc, "_Sin análisis._")
	assert.Contains(t, doc, "_No hay datos para los filtros seleccionados._")

	_, err = NewMarkdownRenderer(dataset.DefaultFields()).Render(nil, "", Context{})
	assert.Error(t, err)
}

func TestEncodeParquet(t *testing.T) {
	res, err := EncodeParquet(appointments(t), dataset.DefaultFields())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RecordCount)
	require.NotEmpty(t, res.Data)

	reader := parquet.NewGenericReader[parquetAppointment](bytes.NewReader(res.Data))
	defer func() { _ = reader.Close() }()
	rows := make([]parquetAppointment, 3)
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		require.NoError(t, err)
	}
	require.Equal(t, 3, n)

	assert.Equal(t, "Centro", rows[0].Site)
	assert.Equal(t, "2024-05-01", rows[0].Date)
	assert.Equal(t, "Carla Mora", rows[2].Client)
	require.NotNil(t, rows[2].Price)
	assert.InDelta(t, 50000, *rows[2].Price, 0)
	assert.Contains(t, rows[1].RecordJSON, `"Nombre_Servicio":"Barba"`)
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewDirStore(t.TempDir())
	require.NoError(t, err)
	p := NewPublisher(store, dataset.DefaultFields(), testutil.NewTestLogger(t))

	pub, err := p.Publish(ctx, "r-1", []byte("# informe"), appointments(t))
	require.NoError(t, err)
	assert.Equal(t, "reports/r-1/report.md", pub.Report.Key)
	assert.Equal(t, "reports/r-1/data.parquet", pub.Data.Key)
	assert.Equal(t, int64(len("# informe")), pub.Report.Size)

	info, err := store.Stat(ctx, "reports/r-1/data.parquet")
	require.NoError(t, err)
	assert.Positive(t, info.Size)

	_, err = p.Publish(ctx, "../etc", nil, appointments(t))
	assert.Error(t, err)
}
