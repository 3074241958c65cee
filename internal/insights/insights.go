// Package insights produces the model-written business texts that sit next
// to the question answering: the executive analysis of a report, marketing
// campaign drafts, opportunity findings and image-based style advice.
//
// Each operation derives a few facts from the filtered dataset, renders a
// prompt from the catalogue and makes exactly one model call.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/prompt"
	"github.com/kingdombarber/insight/pkg/dataset"
)

var (
	// ErrNoData is returned when the filtered dataset has no rows.
	ErrNoData = errors.New("no data for the selected filters")
	// ErrInvalidRequest is returned for unknown goals, channels, areas or
	// unsupported images.
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	// ReportSampleRows is how many rows the report analysis sees.
	ReportSampleRows = 50
	// RiskWindow is how long a client may go without a visit before being
	// counted as at risk.
	RiskWindow = 90 * 24 * time.Hour
	// MaxImageBytes bounds style advice uploads.
	MaxImageBytes = 10 << 20
	// NotAvailable stands in for a fact that could not be derived.
	NotAvailable = "N/A"
)

// Analyst runs the insight operations against one language model.
type Analyst struct {
	client  llm.Client
	builder *prompt.Builder
	fields  dataset.Fields
	logger  *slog.Logger
}

// NewAnalyst creates an Analyst. A nil builder uses the embedded prompts.
func NewAnalyst(client llm.Client, builder *prompt.Builder, fields dataset.Fields, logger *slog.Logger) *Analyst {
	if builder == nil {
		builder = prompt.NewBuilder(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyst{client: client, builder: builder, fields: fields, logger: logger}
}

// ReportAnalysis writes the executive analysis section of a report from the
// first ReportSampleRows rows of ds.
func (a *Analyst) ReportAnalysis(ctx context.Context, ds *dataset.Dataset) (string, error) {
	if ds.Empty() {
		return "", ErrNoData
	}
	text, err := a.builder.BuildReportAnalysisPrompt(dataset.RenderText(ds.Head(ReportSampleRows)), ds.Len())
	if err != nil {
		return "", err
	}
	return a.complete(ctx, "report analysis", text, nil)
}

// CampaignRequest selects what a campaign is for and where it runs.
type CampaignRequest struct {
	Goal    string `json:"goal"`
	Channel string `json:"channel"`
}

// Campaign is a generated marketing draft and the facts it was based on.
type Campaign struct {
	Goal        string `json:"goal"`
	Channel     string `json:"channel"`
	WeakService string `json:"weak_service"`
	WeakDay     string `json:"weak_day"`
	Text        string `json:"text"`
}

// Campaign drafts a marketing campaign. It points the model at the least
// booked service and the weekday with the fewest appointments.
func (a *Analyst) Campaign(ctx context.Context, ds *dataset.Dataset, req CampaignRequest) (*Campaign, error) {
	goal, ok := canonical(CampaignGoals, req.Goal)
	if !ok {
		return nil, fmt.Errorf("%w: unknown campaign goal %q", ErrInvalidRequest, req.Goal)
	}
	channel, ok := canonical(Channels, req.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidRequest, req.Channel)
	}
	if ds.Empty() {
		return nil, ErrNoData
	}

	c := &Campaign{
		Goal:        goal,
		Channel:     channel,
		WeakService: LeastPopular(ds, a.fields.Service),
		WeakDay:     SlowestWeekday(ds, a.fields.Date),
	}
	text, err := a.builder.BuildCampaignPrompt(c.Goal, c.Channel, c.WeakService, c.WeakDay)
	if err != nil {
		return nil, err
	}
	if c.Text, err = a.complete(ctx, "campaign", text, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// Opportunities is a generated opportunity report.
type Opportunities struct {
	Areas         []string `json:"areas"`
	AtRiskClients []string `json:"at_risk_clients"`
	KeyData       []string `json:"key_data"`
	Text          string   `json:"text"`
}

// Opportunities looks for actionable findings in each area of interest.
func (a *Analyst) Opportunities(ctx context.Context, ds *dataset.Dataset, areas []string) (*Opportunities, error) {
	if len(areas) == 0 {
		return nil, fmt.Errorf("%w: select at least one area", ErrInvalidRequest)
	}
	out := &Opportunities{Areas: make([]string, 0, len(areas))}
	for _, area := range areas {
		c, ok := canonical(OpportunityAreas, area)
		if !ok {
			return nil, fmt.Errorf("%w: unknown area %q", ErrInvalidRequest, area)
		}
		out.Areas = append(out.Areas, c)
	}
	if ds.Empty() {
		return nil, ErrNoData
	}

	out.AtRiskClients = AtRiskClients(ds, a.fields, RiskWindow)
	out.KeyData = append(out.KeyData,
		fmt.Sprintf("Clientes en Riesgo (no visitan en 90 días): %d.", len(out.AtRiskClients)),
		fmt.Sprintf("Citas analizadas: %d.", ds.Len()),
		fmt.Sprintf("Servicio menos solicitado: %s.", LeastPopular(ds, a.fields.Service)),
		fmt.Sprintf("Día con menos citas: %s.", SlowestWeekday(ds, a.fields.Date)),
	)

	text, err := a.builder.BuildOpportunitiesPrompt(out.Areas, out.KeyData)
	if err != nil {
		return nil, err
	}
	if out.Text, err = a.complete(ctx, "opportunities", text, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// StyleAdvice recommends haircuts for the face in a JPEG or PNG photo.
// An empty MIME type is sniffed from the data.
func (a *Analyst) StyleAdvice(ctx context.Context, image llm.Media) (string, error) {
	if len(image.Data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrInvalidRequest)
	}
	if len(image.Data) > MaxImageBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", ErrInvalidRequest, MaxImageBytes)
	}
	if image.MIMEType == "" {
		image.MIMEType = http.DetectContentType(image.Data)
	}
	switch strings.ToLower(image.MIMEType) {
	case "image/jpeg", "image/jpg":
		image.MIMEType = "image/jpeg"
	case "image/png":
		image.MIMEType = "image/png"
	default:
		return "", fmt.Errorf("%w: unsupported image type %q", ErrInvalidRequest, image.MIMEType)
	}

	text, err := a.builder.BuildStyleAdvicePrompt()
	if err != nil {
		return "", err
	}
	return a.complete(ctx, "style advice", text, &image)
}

func (a *Analyst) complete(ctx context.Context, op, text string, media *llm.Media) (string, error) {
	start := time.Now()
	out, err := a.client.Complete(ctx, text, media)
	if err != nil {
		a.logger.Warn("insight failed", "op", op, "error", err)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: %w", op, llm.ErrEmptyCompletion)
	}
	a.logger.Info("insight generated", "op", op, "duration", time.Since(start))
	return out, nil
}

func canonical(choices []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, c := range choices {
		if strings.EqualFold(c, v) {
			return c, true
		}
	}
	return "", false
}
