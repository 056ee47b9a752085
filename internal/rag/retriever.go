package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopK is the number of candidates retrieved per query before reranking.
const DefaultTopK = 10

// dedupeOverfetch is how many extra candidates are requested so that
// dropping duplicates still leaves topK results.
const dedupeOverfetch = 2

// RetrieverConfig configures a DefaultRetriever.
type RetrieverConfig struct {
	// Embedder converts query text to a dense vector. Required.
	Embedder Embedder
	// Store performs the similarity search. Required.
	Store VectorStore
	// TopK is used when Retrieve is called with topK <= 0 (default DefaultTopK).
	TopK int
	// MinScore drops candidates whose similarity is below it. Zero keeps all.
	MinScore float32
}

// DefaultRetriever implements Retriever by embedding the query and delegating
// similarity search to a VectorStore. Re-ingesting a file stores its chunks
// again under new IDs, so results are de-duplicated on (source, chunk index,
// content), keeping the best-scoring copy.
type DefaultRetriever struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
	minScore    float32
}

// NewRetriever constructs a DefaultRetriever from cfg.
func NewRetriever(cfg *RetrieverConfig) (*DefaultRetriever, error) {
	if cfg == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.MinScore < -1 || cfg.MinScore > 1 {
		return nil, fmt.Errorf("rag: min score %v outside [-1, 1]", cfg.MinScore)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &DefaultRetriever{
		embedder:    cfg.Embedder,
		store:       cfg.Store,
		defaultTopK: topK,
		minScore:    cfg.MinScore,
	}, nil
}

// Retrieve embeds the query and returns up to topK distinct documents, best
// first. If topK is 0 the configured default is used.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("rag: query must not be empty")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	candidates, err := r.store.Search(ctx, embeddings[0], topK*dedupeOverfetch)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	return r.filter(candidates, topK), nil
}

// chunkKey identifies a chunk independently of its point ID.
type chunkKey struct {
	source  string
	index   int
	content string
}

// filter applies the score floor and drops duplicates from candidates, which
// the store returns best first, then truncates to topK.
func (r *DefaultRetriever) filter(candidates []Document, topK int) []Document {
	seen := make(map[chunkKey]struct{}, len(candidates))
	out := make([]Document, 0, min(topK, len(candidates)))
	for _, d := range candidates {
		if r.minScore != 0 && d.Score < r.minScore {
			continue
		}
		key := chunkKey{source: d.Source, index: d.ChunkIndex, content: d.Content}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
		if len(out) == topK {
			break
		}
	}
	return out
}
