package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultOllamaBatch keeps one /api/embed call well under Ollama's request
// timeout on CPU-only hosts.
const defaultOllamaBatch = 64

// OllamaEmbedder implements rag.Embedder using the Ollama /api/embed endpoint.
// It is safe for concurrent use. No API key is required.
type OllamaEmbedder struct {
	host       string
	model      string
	dimensions int
	batchSize  int
	keepAlive  string
	client     *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Dimensions is the expected vector length. 0 skips the check.
	Dimensions int
	// BatchSize caps the inputs per request (default 64).
	BatchSize int
	// KeepAlive is how long Ollama keeps the model loaded after a request
	// (e.g. "10m"). Empty uses the server default.
	KeepAlive string
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultOllamaBatch
	}
	return &OllamaEmbedder{
		host:       strings.TrimRight(cfg.Host, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batch,
		keepAlive:  cfg.KeepAlive,
		client:     &http.Client{Timeout: 2 * time.Minute},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
	// Truncate lets the server cut inputs longer than the model context
	// instead of failing the whole batch.
	Truncate  bool   `json:"truncate"`
	KeepAlive string `json:"keep_alive,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts texts into embeddings, parallel to the input, in batches of
// at most BatchSize.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := embedBatches(ctx, texts, e.batchSize, e.dimensions, e.embedBatch)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return vecs, nil
}

// embedBatch performs one /api/embed call.
func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result ollamaEmbedResponse
	status, err := postJSON(ctx, e.client, e.host+"/api/embed", nil, ollamaEmbedRequest{
		Model:     e.model,
		Input:     texts,
		Truncate:  true,
		KeepAlive: e.keepAlive,
	}, &result)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		if result.Error != "" {
			return nil, errors.New(result.Error)
		}
		return nil, fmt.Errorf("HTTP %d", status)
	}
	return result.Embeddings, nil
}
