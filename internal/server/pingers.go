package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OllamaPinger probes a local Ollama server's version endpoint. It is a
// zero-cost readiness check — no model inference is performed.
type OllamaPinger struct {
	// baseURL is the Ollama server address (e.g. "http://localhost:11434").
	baseURL string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewOllamaPinger constructs an OllamaPinger for the given server address.
func NewOllamaPinger(baseURL string) *OllamaPinger {
	return &OllamaPinger{
		baseURL: baseURL,
		client:  &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *OllamaPinger) Name() string { return "ollama" }

// Ping issues GET /api/version against the Ollama server.
func (p *OllamaPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// HTTPPinger probes an arbitrary HTTP endpoint for a 2xx response. Used for
// remote API backends where a dedicated health RPC is not available.
type HTTPPinger struct {
	// name identifies the dependency in readiness responses.
	name string
	// url is the endpoint probed with a GET request.
	url string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for the given label and URL.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues a GET request and accepts any 2xx status as healthy.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
