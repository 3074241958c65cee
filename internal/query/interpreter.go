package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/prompt"
)

// Interpreter turns raw script output into a conversational answer.
type Interpreter struct {
	builder *prompt.Builder
	client  llm.Client
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(builder *prompt.Builder, client llm.Client) *Interpreter {
	return &Interpreter{builder: builder, client: client}
}

// Interpret asks the model to answer question from rawOutput. An empty
// completion is an error.
func (i *Interpreter) Interpret(ctx context.Context, question, rawOutput string) (string, error) {
	p, err := i.builder.BuildInterpretationPrompt(question, rawOutput)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPromptBuild, err)
	}
	text, err := i.client.Complete(ctx, p, nil)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}
	return text, nil
}
