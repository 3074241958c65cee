package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "qwen3-vl:2b"

// Ollama calls a local Ollama server's generate endpoint.
type Ollama struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllama creates an Ollama client. No credentials are needed.
func NewOllama(cfg Config) (*Ollama, error) {
	return &Ollama{
		baseURL:     strings.TrimRight(orDefault(cfg.BaseURL, "http://localhost:11434"), "/"),
		model:       orDefault(cfg.Model, DefaultOllamaModel),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Images  []string        `json:"images,omitempty"`
	Options *generateOption `json:"options,omitempty"`
}

type generateOption struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Complete implements Client.
func (o *Ollama) Complete(ctx context.Context, prompt string, media *Media) (string, error) {
	reqBody := generateRequest{Model: o.model, Prompt: prompt}
	if media != nil {
		reqBody.Images = []string{base64.StdEncoding.EncodeToString(media.Data)}
	}
	if o.temperature > 0 {
		reqBody.Options = &generateOption{Temperature: o.temperature}
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", o.unavailable(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", o.unavailable(resp.StatusCode, err)
	}

	var gen generateResponse
	_ = json.Unmarshal(body, &gen)
	if resp.StatusCode != http.StatusOK {
		msg := gen.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", o.unavailable(resp.StatusCode, fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, msg))
	}
	if strings.TrimSpace(gen.Response) == "" {
		return "", o.unavailable(resp.StatusCode, ErrEmptyCompletion)
	}
	return gen.Response, nil
}

func (o *Ollama) unavailable(status int, err error) error {
	return &UnavailableError{Provider: ProviderOllama, Model: o.model, Status: status, Err: err}
}
