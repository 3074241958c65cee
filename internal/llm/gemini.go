package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini calls Google's Gemini API through the GenAI SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature *float32
}

// NewGemini creates a Gemini client. An API key is required.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	model := orDefault(cfg.Model, DefaultGeminiModel)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &UnavailableError{Provider: ProviderGemini, Model: model, Err: errors.New("api key is required")}
	}

	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	g := &Gemini{client: client, model: model}
	if cfg.Temperature > 0 {
		g.temperature = genai.Ptr(float32(cfg.Temperature))
	}
	return g, nil
}

// Complete implements Client.
func (g *Gemini) Complete(ctx context.Context, prompt string, media *Media) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if media != nil {
		parts = append(parts, genai.NewPartFromBytes(media.Data, media.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var config *genai.GenerateContentConfig
	if g.temperature != nil {
		config = &genai.GenerateContentConfig{Temperature: g.temperature}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		ue := &UnavailableError{Provider: ProviderGemini, Model: g.model, Err: err}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			ue.Status = apiErr.Code
		}
		return "", ue
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &UnavailableError{Provider: ProviderGemini, Model: g.model, Err: ErrEmptyCompletion}
	}
	return text, nil
}
