package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/internal/llm/llmtest"
	"github.com/kingdombarber/insight/internal/query"
	"github.com/kingdombarber/insight/internal/report"
	"github.com/kingdombarber/insight/internal/source"
	"github.com/kingdombarber/insight/internal/starlark"
	"github.com/kingdombarber/insight/internal/storage"
	"github.com/kingdombarber/insight/internal/testutil"
	"github.com/kingdombarber/insight/pkg/dataset"
)

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

type fixture struct {
	svc  *Service
	stub *llmtest.Stub
}

func newFixture(t *testing.T, provider source.Provider, publisher bool) fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	fields := dataset.DefaultFields()
	stub := llmtest.NewStub()

	opts := Options{
		Source:   provider,
		Pipeline: query.NewPipeline(stub, nil, starlark.NewSandbox(starlark.DefaultLimits(), logger), query.Options{Logger: logger}),
		Analyst:  insights.NewAnalyst(stub, nil, fields, logger),
		Fields:   fields,
		Logger:   logger,
	}
	if publisher {
		store, err := storage.NewDirStore(t.TempDir())
		require.NoError(t, err)
		opts.Publisher = report.NewPublisher(store, fields, logger)
	}
	return fixture{svc: New(opts), stub: stub}
}

func TestService_Dataset(t *testing.T) {
	f := newFixture(t, source.StaticProvider{Dataset: appointments(t)}, false)

	ds, err := f.svc.Dataset(context.Background(), dataset.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	ds, err = f.svc.Dataset(context.Background(), dataset.Filter{Site: "centro", Service: "Todos"})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

type failingProvider struct{}

func (failingProvider) FetchDataset(context.Context) (*dataset.Dataset, error) {
	return nil, errors.New("connection refused")
}

func TestService_DatasetError(t *testing.T) {
	f := newFixture(t, failingProvider{}, false)
	_, err := f.svc.Ask(context.Background(), "¿cuántas citas?", dataset.Filter{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorContains(t, err, "connection refused")
	assert.Zero(t, f.stub.CallCount())
}

func TestService_Overview(t *testing.T) {
	f := newFixture(t, source.StaticProvider{Dataset: appointments(t)}, false)

	o, err := f.svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, o.Rows)
	assert.Len(t, o.Columns, 6)
	assert.Equal(t, []string{"Centro", "Norte"}, o.Options.Sites)
	assert.Equal(t, time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC), o.Options.MaxDate.UTC())
}

func TestService_Ask(t *testing.T) {
	f := newFixture(t, source.StaticProvider{Dataset: appointments(t)}, false)
	f.stub.Then(llmtest.Reply{Text: "```python\nprint(len(df))\n```"}).Then(llmtest.Reply{Text: "Hay 2 citas en Centro."})

	answer, err := f.svc.Ask(context.Background(), "¿Cuántas citas hubo?", dataset.Filter{Site: "Centro"})
	require.NoError(t, err)
	assert.Equal(t, "2", answer.Output)
	assert.Equal(t, "Hay 2 citas en Centro.", answer.Text)
}

func TestService_AskNoDataAfterFilter(t *testing.T) {
	f := newFixture(t, source.StaticProvider{Dataset: appointments(t)}, false)

	_, err := f.svc.Ask(context.Background(), "¿Cuántas citas hubo?", dataset.Filter{Site: "Sur"})
	var qerr *query.Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, query.KindNoData, qerr.Kind)
	assert.Zero(t, f.stub.CallCount())
}

func TestService_Report(t *testing.T) {
	f := newFixture(t, source.StaticProvider{Dataset: appointments(t)}, true)
	f.stub.Then(llmtest.Reply{Text: "Resumen ejecutivo."})

	r, err := f.svc.Report(context.Background(), dataset.Filter{Barber: "Luis Pardo"}, true)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Resumen ejecutivo.", r.Analysis)
	assert.Equal(t, report.KPIs{Appointments: 2, Revenue: 65000, Clients: 2}, r.KPIs)
	assert.Equal(t, "Luis Pardo", r.Context[report.KeyBarberName])
	assert.Equal(t, "02/05/2024", r.Context[report.KeyDateRangeStart])
	assert.Contains(t, string(r.Document), "Resumen ejecutivo.")
	require.NotNil(t, r.Published)
	assert.Equal(t, "reports/"+r.ID+"/report.md", r.Published.Report.Key)
}

func TestService_ReportPublishingDisabled(t *testing.T) {
	f := newFixture(t, source.StaticProvider{Dataset: appointments(t)}, false)
	assert.False(t, f.svc.CanPublish())

	_, err := f.svc.Report(context.Background(), dataset.Filter{}, true)
	assert.ErrorIs(t, err, ErrPublishingDisabled)
	assert.Zero(t, f.stub.CallCount())
}

func TestService_CampaignAndOpportunities(t *testing.T) {
	f := newFixture(t, source.StaticProvider{Dataset: appointments(t)}, false)
	f.stub.Then(llmtest.Reply{Text: "campaña"}).Then(llmtest.Reply{Text: "oportunidades"})

	c, err := f.svc.Campaign(context.Background(), dataset.Filter{}, insights.CampaignRequest{Goal: insights.CampaignGoals[1], Channel: "Email"})
	require.NoError(t, err)
	assert.Equal(t, "Barba", c.WeakService)

	o, err := f.svc.Opportunities(context.Background(), dataset.Filter{Site: "Norte"}, []string{insights.OpportunityAreas[3]})
	require.NoError(t, err)
	assert.Equal(t, "oportunidades", o.Text)
	assert.Contains(t, f.stub.Calls()[1].Prompt, "Citas analizadas: 1.")
}
