package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	model := orDefault(cfg.Model, DefaultOpenAIModel)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &UnavailableError{Provider: ProviderOpenAI, Model: model, Err: errors.New("api key is required")}
	}
	return &OpenAI{
		baseURL:     strings.TrimRight(orDefault(cfg.BaseURL, "https://api.openai.com"), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// Complete implements Client.
func (o *OpenAI) Complete(ctx context.Context, prompt string, media *Media) (string, error) {
	msg := chatMessage{Role: "user", Content: prompt}
	if media != nil {
		msg.Content = []chatPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &chatImageURL{
				URL: "data:" + media.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(media.Data),
			}},
		}
	}
	body, err := json.Marshal(chatRequest{Model: o.model, Messages: []chatMessage{msg}, Temperature: o.temperature})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", o.unavailable(0, fmt.Errorf("request chat completion: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", o.unavailable(resp.StatusCode, fmt.Errorf("read chat response body: %w", err))
	}
	if resp.StatusCode >= 400 {
		return "", o.unavailable(resp.StatusCode, fmt.Errorf("chat completion failed: %s", strings.TrimSpace(string(raw))))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", o.unavailable(resp.StatusCode, fmt.Errorf("decode chat completion response: %w", err))
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", o.unavailable(resp.StatusCode, ErrEmptyCompletion)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (o *OpenAI) unavailable(status int, err error) error {
	return &UnavailableError{Provider: ProviderOpenAI, Model: o.model, Status: status, Err: err}
}
