package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// DefaultMaxResponseBytes bounds an HTTP dataset response.
const DefaultMaxResponseBytes int64 = 64 << 20

// HTTPProvider fetches a JSON array of records from an API.
type HTTPProvider struct {
	url      string
	headers  map[string]string
	client   *http.Client
	maxBytes int64
}

// NewHTTPProvider creates a provider for url. Responses larger than
// maxBytes are rejected; zero means DefaultMaxResponseBytes.
func NewHTTPProvider(url string, headers map[string]string, timeout time.Duration, maxBytes int64) (*HTTPProvider, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("http source requires a url")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	return &HTTPProvider{url: url, headers: headers, client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}, nil
}

// FetchDataset implements Provider. The body must be a JSON array of
// objects, or an object whose "data" field is one.
func (p *HTTPProvider) FetchDataset(ctx context.Context) (*dataset.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request dataset: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset response body: %w", err)
	}
	if int64(len(body)) > p.maxBytes {
		return nil, fmt.Errorf("dataset response exceeds %d bytes", p.maxBytes)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("dataset API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}
	return dataset.FromRecords(records), nil
}

func decodeRecords(body []byte) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode dataset response: %w", err)
		}
		if len(envelope.Data) == 0 {
			return nil, fmt.Errorf("decode dataset response: object has no data field")
		}
		body = envelope.Data
	}

	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode dataset response: %w", err)
	}
	return records, nil
}
