//go:build integration

package embedder

import (
	"context"
	"math"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration embeds a small corpus against a running
// Ollama and checks that related passages land closer together than
// unrelated ones.
//
//	ollama pull nomic-embed-text
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
func TestOllamaEmbedder_Integration(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_BATCH_SIZE", "2")
	cfg := ConfigFromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	emb, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	texts := []string{
		"Invoices are payable within thirty days of receipt.",
		"Payment is due one month after the invoice date.",
		"The warehouse in Rotterdam ships orders every weekday.",
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed: %v (is Ollama running with %q pulled?)", err, cfg.Model)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}

	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	t.Logf("model=%s dim=%d related=%.3f unrelated=%.3f", cfg.Model, len(vecs[0]), related, unrelated)
	if related <= unrelated {
		t.Errorf("related similarity %.3f not above unrelated %.3f", related, unrelated)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
