package rerank

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"

	"github.com/54b3r/ragdesk/internal/rag"
)

const defaultCohereModel = "rerank-english-v3.0"

// CohereConfig holds the settings for constructing a CohereReranker.
type CohereConfig struct {
	// APIKey is the Cohere API key.
	APIKey string
	// Model is the rerank model (default: rerank-english-v3.0).
	Model string
	// BaseURL overrides the API host (default: https://api.cohere.com).
	BaseURL string
}

// CohereReranker implements Reranker with the Cohere v2 rerank API.
// It is safe for concurrent use.
type CohereReranker struct {
	// client is the Cohere SDK client.
	client *cohereclient.Client
	// model is the rerank model name.
	model string
}

// NewCohereReranker constructs a CohereReranker, applying defaults for
// empty fields.
func NewCohereReranker(cfg *CohereConfig) *CohereReranker {
	model := cfg.Model
	if model == "" {
		model = defaultCohereModel
	}
	opts := []option.RequestOption{
		option.WithToken(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &CohereReranker{
		client: cohereclient.NewClient(opts...),
		model:  model,
	}
}

// Name implements Reranker.
func (c *CohereReranker) Name() string { return "cohere" }

// Rerank sends the candidate texts to Cohere and maps the returned indices
// back onto the input documents.
func (c *CohereReranker) Rerank(ctx context.Context, query string, docs []rag.Document, topN int) ([]rag.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	resp, err := c.client.V2.Rerank(ctx, &cohere.V2RerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: texts,
		TopN:      &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere rerank: %w", err)
	}

	out := make([]rag.Document, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil {
			continue
		}
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, fmt.Errorf("cohere rerank: index %d out of range [0, %d)", r.Index, len(docs))
		}
		d := docs[r.Index]
		d.RerankScore = float32(r.RelevanceScore)
		out = append(out, d)
	}
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}
