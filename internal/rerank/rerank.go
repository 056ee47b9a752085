// Package rerank reorders retrieved chunks by relevance to the query.
//
// CohereReranker calls the Cohere v2 rerank API through the official SDK.
// ScoreReranker makes no external call and keeps the vector-search order; it
// is selected with RERANK_PROVIDER=none for offline or cost-sensitive
// deployments.
package rerank

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/54b3r/ragdesk/internal/rag"
)

// DefaultTopN is the number of chunks kept after reranking.
const DefaultTopN = 3

// Reranker reorders candidate documents by relevance to query.
// Implementations must be safe to call from multiple goroutines.
type Reranker interface {
	// Rerank returns at most topN documents, best first, each with
	// RerankScore set. The input slice is not modified.
	Rerank(ctx context.Context, query string, docs []rag.Document, topN int) ([]rag.Document, error)

	// Name identifies the reranker in logs and readiness checks.
	Name() string
}

// ScoreReranker orders documents by their retrieval Score and copies that
// score into RerankScore.
type ScoreReranker struct{}

// Name implements Reranker.
func (ScoreReranker) Name() string { return "none" }

// Rerank implements Reranker.
func (ScoreReranker) Rerank(_ context.Context, _ string, docs []rag.Document, topN int) ([]rag.Document, error) {
	out := make([]rag.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		out[i].RerankScore = out[i].Score
	}
	return out, nil
}

// NewFromEnv constructs a Reranker from environment variables.
//
//	RERANK_PROVIDER = cohere | none (default: cohere when COHERE_API_KEY is set, else none)
//	COHERE_API_KEY, RERANK_MODEL (default: rerank-english-v3.0), COHERE_BASE_URL
func NewFromEnv() (Reranker, error) {
	provider := os.Getenv("RERANK_PROVIDER")
	if provider == "" {
		provider = "none"
		if os.Getenv("COHERE_API_KEY") != "" {
			provider = "cohere"
		}
	}

	switch provider {
	case "none":
		return ScoreReranker{}, nil
	case "cohere":
		key := os.Getenv("COHERE_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("rerank: COHERE_API_KEY is required for cohere reranker")
		}
		return NewCohereReranker(&CohereConfig{
			APIKey:  key,
			Model:   os.Getenv("RERANK_MODEL"),
			BaseURL: os.Getenv("COHERE_BASE_URL"),
		}), nil
	default:
		return nil, fmt.Errorf("rerank: unknown provider %q (valid values: cohere, none)", provider)
	}
}
