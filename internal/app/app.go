// Package app wires the data source, the query pipeline and the insight
// features into one service shared by the CLI and the HTTP API.
//
// Every call fetches the dataset, applies the caller's filter and then runs
// its own pipeline or insight invocation; nothing produced by one call is
// visible to another.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/observability"
	"github.com/kingdombarber/insight/internal/query"
	"github.com/kingdombarber/insight/internal/report"
	"github.com/kingdombarber/insight/internal/source"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// ErrPublishingDisabled is returned when a report is to be published but no
// object store is configured.
var ErrPublishingDisabled = errors.New("report publishing is not configured")

// ErrSourceUnavailable wraps failures to fetch the dataset.
var ErrSourceUnavailable = errors.New("dataset source unavailable")

// Options holds the collaborators of a Service. Source, Pipeline and Analyst
// are required.
type Options struct {
	Source    source.Provider
	Pipeline  *query.Pipeline
	Analyst   *insights.Analyst
	Renderer  report.Renderer
	Publisher *report.Publisher
	Fields    dataset.Fields
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Service answers questions and produces insights over filtered data.
type Service struct {
	source    source.Provider
	pipeline  *query.Pipeline
	analyst   *insights.Analyst
	renderer  report.Renderer
	publisher *report.Publisher
	fields    dataset.Fields
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates a Service. A nil Renderer means markdown.
func New(opts Options) *Service {
	if opts.Renderer == nil {
		opts.Renderer = report.NewMarkdownRenderer(opts.Fields)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		source:    opts.Source,
		pipeline:  opts.Pipeline,
		analyst:   opts.Analyst,
		renderer:  opts.Renderer,
		publisher: opts.Publisher,
		fields:    opts.Fields,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Fields returns the column mapping in use.
func (s *Service) Fields() dataset.Fields { return s.fields }

// CanPublish reports whether reports can be published.
func (s *Service) CanPublish() bool { return s.publisher != nil }

// Dataset fetches the dataset and applies f.
func (s *Service) Dataset(ctx context.Context, f dataset.Filter) (*dataset.Dataset, error) {
	ds, err := s.source.FetchDataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	s.metrics.SetDatasetRows(ds.Len())
	if f.IsZero() {
		return ds, nil
	}
	filtered := f.Apply(ds, s.fields)
	s.logger.Debug("dataset filtered", "rows", ds.Len(), "kept", filtered.Len())
	return filtered, nil
}

// Overview describes the unfiltered dataset.
type Overview struct {
	Columns []dataset.Column `json:"columns"`
	Rows    int              `json:"rows"`
	Options dataset.Options  `json:"options"`
}

// Overview returns the schema, row count and filter choices of the dataset.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	ds, err := s.Dataset(ctx, dataset.Filter{})
	if err != nil {
		return nil, err
	}
	return &Overview{
		Columns: ds.Columns(),
		Rows:    ds.Len(),
		Options: dataset.FilterOptions(ds, s.fields),
	}, nil
}

// Ask answers a question over the filtered dataset. Pipeline failures are
// *query.Error values.
func (s *Service) Ask(ctx context.Context, question string, f dataset.Filter) (*query.Answer, error) {
	ds, err := s.Dataset(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ask(ctx, query.Request{Question: question, Dataset: ds})
}

// Report is a rendered business report.
type Report struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Context     map[string]string `json:"context"`
	KPIs        report.KPIs       `json:"kpis"`
	Analysis    string            `json:"analysis"`
	Document    []byte            `json:"-"`
	Published   *report.Published `json:"published,omitempty"`
	Dataset     *dataset.Dataset  `json:"-"`
}

// Report analyses the filtered dataset and renders the report document.
// With publish set the document and a data snapshot are uploaded.
func (s *Service) Report(ctx context.Context, f dataset.Filter, publish bool) (*Report, error) {
	if publish && s.publisher == nil {
		return nil, ErrPublishingDisabled
	}
	ds, err := s.Dataset(ctx, f)
	if err != nil {
		return nil, err
	}
	analysis, err := s.analyst.ReportAnalysis(ctx, ds)
	if err != nil {
		return nil, err
	}

	rctx := report.ContextFromFilter(f, ds, s.fields)
	doc, err := s.renderer.Render(ds, analysis, rctx)
	if err != nil {
		return nil, err
	}
	r := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Context:     rctx.Map(),
		KPIs:        report.ComputeKPIs(ds, s.fields),
		Analysis:    analysis,
		Document:    doc,
		Dataset:     ds,
	}
	if publish {
		if r.Published, err = s.publisher.Publish(ctx, r.ID, doc, ds); err != nil {
			return nil, err
		}
	}
	s.logger.Info("report generated", "id", r.ID, "rows", ds.Len(), "published", publish)
	return r, nil
}

// Campaign drafts a marketing campaign from the filtered dataset.
func (s *Service) Campaign(ctx context.Context, f dataset.Filter, req insights.CampaignRequest) (*insights.Campaign, error) {
	ds, err := s.Dataset(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.analyst.Campaign(ctx, ds, req)
}

// Opportunities looks for findings in the given areas of the filtered
// dataset.
func (s *Service) Opportunities(ctx context.Context, f dataset.Filter, areas []string) (*insights.Opportunities, error) {
	ds, err := s.Dataset(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.analyst.Opportunities(ctx, ds, areas)
}

// StyleAdvice recommends haircuts for a photo. It does not read the dataset.
func (s *Service) StyleAdvice(ctx context.Context, image llm.Media) (string, error) {
	return s.analyst.StyleAdvice(ctx, image)
}
