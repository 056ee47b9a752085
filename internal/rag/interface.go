// Package rag defines the collaborator interfaces the query orchestrator and
// the ingestion pipeline depend on: embedding, vector storage, and retrieval.
// Concrete backends (Qdrant, in-memory) satisfy these interfaces so the
// orchestration layer never depends on a specific service.
package rag

import (
	"context"
)

// Document is one stored chunk together with its retrieval scores.
type Document struct {
	// ID is the unique point identifier (a random UUID assigned at ingest).
	ID string

	// Content is the chunk text.
	Content string

	// Source is the name of the document the chunk was cut from
	// (an uploaded filename, a CLI path, or "user_input").
	Source string

	// ChunkIndex is the 0-based position of the chunk within its source.
	ChunkIndex int

	// TotalChunks is the number of chunks produced for the source.
	TotalChunks int

	// Size is the chunk length measured in Unit.
	Size int

	// Unit is the chunking unit Size is expressed in ("characters" or "tokens").
	Unit string

	// Tokens is the estimated LLM token count of Content.
	Tokens int

	// Metadata holds additional string attributes (file type, etc.).
	Metadata map[string]string

	// Score is the vector similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32

	// RerankScore is the relevance score assigned by a Reranker.
	RerankScore float32
}

// Stats describes the contents of a vector store.
type Stats struct {
	// Collection is the backing collection or index name.
	Collection string `json:"collection"`
	// Points is the number of stored chunks.
	Points uint64 `json:"points"`
	// VectorSize is the configured embedding dimensionality.
	VectorSize uint64 `json:"vector_size"`
	// Status is a backend-specific health label (e.g. "green").
	Status string `json:"status"`
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs: embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search performs a semantic similarity search and returns the top-k
	// most relevant documents for the given query embedding, best first.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// DeleteSource removes every chunk whose Source equals source.
	DeleteSource(ctx context.Context, source string) error

	// DeleteAll removes every stored chunk.
	DeleteAll(ctx context.Context) error

	// Stats reports the store's size and status.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the chunks most relevant to a query. It combines
// embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
