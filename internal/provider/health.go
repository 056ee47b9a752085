package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HealthCheckConfig is a zero-token readiness probe for a chat backend.
type HealthCheckConfig interface {
	// HealthCheck returns nil when the backend answers an inexpensive
	// metadata request (model listing) successfully.
	HealthCheck(ctx context.Context) error
}

// httpHealthCheck probes a backend with a single authenticated GET.
type httpHealthCheck struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// HealthCheck issues the GET and treats any 2xx status as healthy.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// HealthChecker returns a model-listing probe for cfg's backend, or nil when
// the backend exposes no cheap metadata endpoint (ark). Callers fall back to
// a one-token Generate in that case.
func HealthChecker(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}
	trim := func(s string) string { return strings.TrimRight(s, "/") }

	switch cfg.Backend {
	case BackendOllama:
		return &httpHealthCheck{url: trim(cfg.Ollama.Host) + "/api/tags", client: client}

	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:     trim(base) + "/models",
			headers: map[string]string{"Authorization": "Bearer " + cfg.OpenAI.APIKey},
			client:  client,
		}

	case BackendGroq:
		return &httpHealthCheck{
			url:     trim(cfg.Groq.BaseURL) + "/models",
			headers: map[string]string{"Authorization": "Bearer " + cfg.Groq.APIKey},
			client:  client,
		}

	case BackendAzure:
		return &httpHealthCheck{
			url: trim(cfg.AzureOpenAI.Endpoint) + "/openai/models?api-version=" +
				url.QueryEscape(cfg.AzureOpenAI.APIVersion),
			headers: map[string]string{"api-key": cfg.AzureOpenAI.APIKey},
			client:  client,
		}

	case BackendGemini:
		return &httpHealthCheck{
			url:     "https://generativelanguage.googleapis.com/v1beta/models",
			headers: map[string]string{"x-goog-api-key": cfg.Gemini.APIKey},
			client:  client,
		}
	}
	return nil
}
