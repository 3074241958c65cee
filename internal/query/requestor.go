package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/prompt"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// ScriptRequestor asks the model for an analysis script.
type ScriptRequestor struct {
	builder *prompt.Builder
	client  llm.Client
}

// NewScriptRequestor creates a ScriptRequestor.
func NewScriptRequestor(builder *prompt.Builder, client llm.Client) *ScriptRequestor {
	return &ScriptRequestor{builder: builder, client: client}
}

// RequestScript builds the analysis prompt for ds's schema and returns the
// model's script with any code fences removed. The result may be empty.
func (r *ScriptRequestor) RequestScript(ctx context.Context, question string, ds *dataset.Dataset) (string, error) {
	p, err := r.builder.BuildAnalysisPrompt(question, ds.ColumnNames(), ds.ColumnTypes())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPromptBuild, err)
	}
	text, err := r.client.Complete(ctx, p, nil)
	if err != nil {
		return "", err
	}
	return StripCodeFence(text), nil
}

// StripCodeFence returns the body of the first fenced code block in text,
// or the trimmed text when there is no fence.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	open := strings.Index(text, "```")
	if open < 0 {
		return text
	}
	body := text[open+3:]
	end := strings.Index(body, "```")
	if end >= 0 && !strings.Contains(body[:end], "\n") {
		return strings.TrimSpace(body[:end])
	}
	// Drop the info string (```python, ```starlark, ...).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isInfoString(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isInfoString(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '+', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
