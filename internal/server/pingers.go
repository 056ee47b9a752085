package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/provider"
	"github.com/54b3r/ragdesk/internal/rag"
	"github.com/54b3r/ragdesk/internal/store"
)

// LLMPinger probes a chat backend. It satisfies the Pinger interface and is
// used by GET /api/ready.
type LLMPinger struct {
	// model is the chat model probed when no healthCheck is available.
	model model.BaseChatModel
	// healthCheck is a zero-token probe; nil for backends without one.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "groq").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, hc provider.HealthCheckConfig, name string) *LLMPinger {
	return &LLMPinger{model: m, healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the backend. The zero-token healthCheck is preferred; the
// one-token Generate fallback consumes quota.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck != nil {
		if err := p.healthCheck.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}

	logging.FromContext(ctx).Debug("pinger: using generate probe", slog.String("backend", p.name))
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// EmbedderPinger probes the embedding backend with a one-text request.
type EmbedderPinger struct {
	embedder rag.Embedder
	name     string
}

// NewEmbedderPinger constructs an EmbedderPinger labelled name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single short string.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

// LedgerPinger probes the SQLite ledger with a totals query.
type LedgerPinger struct {
	ledger store.Ledger
}

// NewLedgerPinger constructs a LedgerPinger.
func NewLedgerPinger(l store.Ledger) *LedgerPinger { return &LedgerPinger{ledger: l} }

// Name returns the dependency label used in readiness responses.
func (p *LedgerPinger) Name() string { return "ledger" }

// Ping reads the ledger totals.
func (p *LedgerPinger) Ping(ctx context.Context) error {
	if _, err := p.ledger.Totals(ctx); err != nil {
		return fmt.Errorf("totals failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
