package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

// Builder renders the prompts used by the query pipeline and the insight
// features. It is pure: the same inputs always produce the same text.
type Builder struct {
	catalog  *Catalog
	bindings Bindings
}

// Bindings are the script-visible names advertised in the analysis prompt.
type Bindings struct {
	Dataset string
	Tabular string
}

// DefaultBindings matches the sandbox's predeclared names.
var DefaultBindings = Bindings{Dataset: "df", Tabular: "tab"}

// NewBuilder creates a Builder. A nil catalogue means the embedded one.
func NewBuilder(catalog *Catalog) *Builder {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Builder{catalog: catalog, bindings: DefaultBindings}
}

// WithBindings returns a copy of b that advertises other binding names.
func (b *Builder) WithBindings(bindings Bindings) *Builder {
	nb := *b
	nb.bindings = bindings
	return &nb
}

// Catalog returns the catalogue backing b.
func (b *Builder) Catalog() *Catalog { return b.catalog }

// BuildAnalysisPrompt asks for a script answering question over a dataset
// with the given schema. columnNames and columnTypes are parallel.
func (b *Builder) BuildAnalysisPrompt(question string, columnNames, columnTypes []string) (string, error) {
	if len(columnNames) != len(columnTypes) {
		return "", fmt.Errorf("schema mismatch: %d column names, %d column types", len(columnNames), len(columnTypes))
	}
	return b.catalog.Render(AnalysisScript, map[string]string{
		"question": question,
		"columns":  quoteList(columnNames),
		"types":    typeLines(columnNames, columnTypes),
		"binding":  b.bindings.Dataset,
		"tabular":  b.bindings.Tabular,
	})
}

// BuildInterpretationPrompt asks for a conversational answer to question
// based on the raw script output.
func (b *Builder) BuildInterpretationPrompt(question, rawOutput string) (string, error) {
	return b.catalog.Render(Interpretation, map[string]string{
		"question": question,
		"result":   rawOutput,
	})
}

// BuildReportAnalysisPrompt asks for the executive analysis of a report.
// data is a text rendering of (a sample of) the filtered rows.
func (b *Builder) BuildReportAnalysisPrompt(data string, rowCount int) (string, error) {
	return b.catalog.Render(ReportAnalysis, map[string]string{
		"data":      data,
		"row_count": strconv.Itoa(rowCount),
	})
}

// BuildCampaignPrompt asks for a marketing campaign draft.
func (b *Builder) BuildCampaignPrompt(goal, channel, weakService, weakDay string) (string, error) {
	return b.catalog.Render(Campaign, map[string]string{
		"goal":         goal,
		"channel":      channel,
		"weak_service": weakService,
		"weak_day":     weakDay,
	})
}

// BuildOpportunitiesPrompt asks for findings on each area of interest.
func (b *Builder) BuildOpportunitiesPrompt(areas, keyData []string) (string, error) {
	lines := make([]string, len(keyData))
	for i, d := range keyData {
		lines[i] = "- " + d
	}
	return b.catalog.Render(Opportunities, map[string]string{
		"areas":    strings.Join(areas, ", "),
		"key_data": strings.Join(lines, "\n"),
	})
}

// BuildStyleAdvicePrompt returns the instruction sent along with a photo.
func (b *Builder) BuildStyleAdvicePrompt() (string, error) {
	return b.catalog.Render(StyleAdvice, nil)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func typeLines(names, types []string) string {
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = fmt.Sprintf("  %-*s %s", width, n, types[i])
	}
	return strings.Join(lines, "\n")
}
