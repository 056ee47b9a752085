package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/ragdesk/internal/answer"
	"github.com/54b3r/ragdesk/internal/chunker"
	"github.com/54b3r/ragdesk/internal/embedder"
	"github.com/54b3r/ragdesk/internal/ingestion"
	"github.com/54b3r/ragdesk/internal/provider"
	"github.com/54b3r/ragdesk/internal/query"
	"github.com/54b3r/ragdesk/internal/rag"
	"github.com/54b3r/ragdesk/internal/rerank"
	"github.com/54b3r/ragdesk/internal/server"
	"github.com/54b3r/ragdesk/internal/store"
)

// Vector store backends selectable with VECTOR_STORE.
const (
	vectorStoreQdrant = "qdrant"
	vectorStoreMemory = "memory"
)

// storage bundles the index and ledger shared by every command.
type storage struct {
	// vectors is the chunk index.
	vectors rag.VectorStore
	// qdrant is set when vectors is a Qdrant store, for readiness probes.
	qdrant *rag.QdrantStore
	// ledger records sources and queries. May be nil.
	ledger store.Ledger
}

// Close releases the index and the ledger.
func (s *storage) Close() {
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
	if s.vectors != nil {
		_ = s.vectors.Close()
	}
}

// openStorage connects the vector store sized for dims and opens the ledger.
func openStorage(ctx context.Context, log *slog.Logger, dims int) (*storage, error) {
	st := &storage{}

	switch backend := getEnvOrDefault("VECTOR_STORE", vectorStoreQdrant); backend {
	case vectorStoreMemory:
		log.Warn("vector store: using in-memory index, contents are lost on exit")
		st.vectors = rag.NewMemoryStore()

	case vectorStoreQdrant:
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		collection := getEnvOrDefault("QDRANT_COLLECTION", "ragdesk")
		qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: uint64(dims), //nolint:gosec // validated positive by embedder.Preflight
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		st.vectors, st.qdrant = qs, qs
		log.Info("qdrant store ready",
			slog.String("host", host),
			slog.Int("port", port),
			slog.String("collection", collection),
		)

	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE %q (valid values: qdrant, memory)", backend)
	}

	st.ledger = openLedger(log)
	return st, nil
}

// openLedger opens the SQLite ledger. RAGDESK_LEDGER_DB overrides the
// default path (~/.ragdesk/ledger.db); "disabled" turns the ledger off.
// A ledger that cannot be opened is logged and skipped.
func openLedger(log *slog.Logger) store.Ledger {
	dbPath := os.Getenv("RAGDESK_LEDGER_DB")
	if dbPath == "disabled" {
		log.Info("ledger: disabled via RAGDESK_LEDGER_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("ledger: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	l, err := store.Open(dbPath)
	if err != nil {
		log.Warn("ledger: failed to open, disabling", slog.String("path", dbPath), slog.Any("error", err))
		return nil
	}
	log.Info("ledger: opened", slog.String("path", dbPath))
	return l
}

// buildEmbedder resolves and preflights the embedding backend.
func buildEmbedder(ctx context.Context, log *slog.Logger) (rag.Embedder, embedder.Config, error) {
	cfg := embedder.ConfigFromEnv()
	if err := embedder.Preflight(log, cfg); err != nil {
		return nil, cfg, err
	}
	emb, err := embedder.New(ctx, cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	return emb, cfg, nil
}

// chunkPolicyFromEnv resolves the chunking policy from CHUNK_UNIT,
// CHUNK_SIZE and CHUNK_OVERLAP. Size and overlap default per unit.
func chunkPolicyFromEnv() (chunker.Policy, error) {
	unit, err := chunker.ParseUnit(os.Getenv("CHUNK_UNIT"))
	if err != nil {
		return chunker.Policy{}, err
	}
	policy := chunker.DefaultPolicy(unit)
	policy.ChunkSize = getEnvInt("CHUNK_SIZE", policy.ChunkSize)
	policy.Overlap = getEnvInt("CHUNK_OVERLAP", policy.Overlap)
	if err := policy.Validate(); err != nil {
		return chunker.Policy{}, err
	}
	return policy, nil
}

// pricingFromEnv resolves PRICE_PROMPT_PER_1K and PRICE_COMPLETION_PER_1K.
func pricingFromEnv() answer.Pricing {
	p := answer.DefaultPricing()
	p.PromptPer1K = getEnvFloat("PRICE_PROMPT_PER_1K", p.PromptPer1K)
	p.CompletionPer1K = getEnvFloat("PRICE_COMPLETION_PER_1K", p.CompletionPer1K)
	return p
}

// buildPipeline wires the ingestion pipeline over st.
func buildPipeline(emb rag.Embedder, st *storage) (*ingestion.Pipeline, error) {
	policy, err := chunkPolicyFromEnv()
	if err != nil {
		return nil, err
	}
	proc, err := ingestion.NewProcessor(policy)
	if err != nil {
		return nil, err
	}
	return ingestion.NewPipeline(proc, emb, st.vectors, st.ledger, nil)
}

// buildQueryService wires retrieval, reranking and generation over st.
func buildQueryService(ctx context.Context, log *slog.Logger, emb rag.Embedder, st *storage) (*query.Service, model.BaseChatModel, *provider.Config, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	retrieveK := getEnvInt("RETRIEVE_TOP_K", rag.DefaultTopK)
	retriever, err := rag.NewRetriever(&rag.RetrieverConfig{
		Embedder: emb,
		Store:    st.vectors,
		TopK:     retrieveK,
		MinScore: float32(getEnvFloat("RETRIEVE_MIN_SCORE", 0)),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	reranker, err := rerank.NewFromEnv()
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("reranker initialised", slog.String("reranker", reranker.Name()))

	gen, err := answer.New(&answer.Config{
		ChatModel:        chatModel,
		MaxContextTokens: getEnvInt("MODEL_CONTEXT_TOKENS", 0),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	pricing := pricingFromEnv()
	svc, err := query.New(&query.Config{
		Retriever:    retriever,
		Reranker:     reranker,
		Generator:    gen,
		Pricing:      &pricing,
		RetrieveTopK: retrieveK,
		RerankTopN:   getEnvInt("RERANK_TOP_K", rerank.DefaultTopN),
		Ledger:       st.ledger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, chatModel, providerCfg, nil
}

// buildPingers assembles the readiness probes for GET /api/ready.
func buildPingers(chatModel model.BaseChatModel, providerCfg *provider.Config, emb rag.Embedder, embCfg embedder.Config, st *storage) []server.Pinger {
	pingers := []server.Pinger{
		server.NewLLMPinger(chatModel, provider.HealthChecker(providerCfg), string(providerCfg.Backend)),
		server.NewEmbedderPinger(emb, "embedder-"+embCfg.Backend),
	}
	if st.qdrant != nil {
		pingers = append(pingers, server.NewQdrantPinger(st.qdrant.Client()))
	}
	if st.ledger != nil {
		pingers = append(pingers, server.NewLedgerPinger(st.ledger))
	}
	return pingers
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback when it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses the named environment variable as an int, returning
// fallback when it is unset or malformed.
func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed integer env var", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return n
}

// getEnvFloat parses the named environment variable as a float64, returning
// fallback when it is unset or malformed.
func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring malformed float env var", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return f
}
