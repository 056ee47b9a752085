// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. Ollama and OpenAI-compatible
// backends are called over plain HTTP; Gemini goes through the genai client.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// postJSON marshals body, POSTs it to url with the given headers and decodes
// the response into out. The decoded value is returned even on a non-2xx
// status so callers can surface the backend's own error message.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

func ok(status int) bool { return status >= 200 && status < 300 }

// embedFunc embeds one request-sized batch.
type embedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// embedBatches splits texts into batches of at most size, embeds them in
// order and checks every vector has want dimensions (0 skips the check).
func embedBatches(ctx context.Context, texts []string, size, want int, embed embedFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			if len(texts) > size {
				return nil, fmt.Errorf("batch %d-%d of %d: %w", start, end, len(texts), err)
			}
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(vecs))
		}
		for i, v := range vecs {
			if len(v) == 0 {
				return nil, fmt.Errorf("empty embedding for input %d", start+i)
			}
			if want > 0 && len(v) != want {
				return nil, &DimensionError{Got: len(v), Want: want}
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// DimensionError reports vectors whose length differs from the size the index
// was created with, usually after switching EMBEDDING_MODEL without updating
// EMBEDDING_DIMENSIONS.
type DimensionError struct {
	Got, Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("model returned %d-dimensional vectors, index expects %d (set EMBEDDING_DIMENSIONS)", e.Got, e.Want)
}
