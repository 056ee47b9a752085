package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a process-local VectorStore that scores every stored
// vector by cosine similarity. It backs VECTOR_STORE=memory for local runs
// and tests; contents are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []memoryEntry
	dim     int
}

type memoryEntry struct {
	doc Document
	vec []float32
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert inserts docs, replacing any existing entry with the same ID.
// All vectors in the store must share one dimensionality.
func (m *MemoryStore) Upsert(_ context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("memory store: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole batch first so a bad vector leaves the store untouched.
	dim := m.dim
	for i, vec := range embeddings {
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return fmt.Errorf("memory store: vector %d has dimension %d, want %d", i, len(vec), dim)
		}
	}
	if len(embeddings) > 0 {
		m.dim = dim
	}

	for i, doc := range docs {
		vec := embeddings[i]
		entry := memoryEntry{doc: doc, vec: append([]float32(nil), vec...)}
		replaced := false
		for j := range m.entries {
			if m.entries[j].doc.ID == doc.ID {
				m.entries[j] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			m.entries = append(m.entries, entry)
		}
	}
	return nil
}

// Search returns the topK entries with the highest cosine similarity.
func (m *MemoryStore) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dim != 0 && len(queryEmbedding) != m.dim {
		return nil, fmt.Errorf("memory store: query has dimension %d, want %d", len(queryEmbedding), m.dim)
	}

	scored := make([]Document, 0, len(m.entries))
	for _, e := range m.entries {
		doc := e.doc
		doc.Score = cosine(queryEmbedding, e.vec)
		scored = append(scored, doc)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// DeleteSource removes every entry whose Source equals source.
func (m *MemoryStore) DeleteSource(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.doc.Source != source {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// DeleteAll empties the store.
func (m *MemoryStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.dim = 0
	return nil
}

// Stats reports the number of stored entries.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Collection: "memory",
		Points:     uint64(len(m.entries)),
		VectorSize: uint64(m.dim),
		Status:     "green",
	}, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
