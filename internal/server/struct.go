package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragdesk/internal/answer"
	"github.com/54b3r/ragdesk/internal/chunker"
	"github.com/54b3r/ragdesk/internal/ingestion"
	"github.com/54b3r/ragdesk/internal/query"
	"github.com/54b3r/ragdesk/internal/rag"
	"github.com/54b3r/ragdesk/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds one /api/query request end to end (default: 2m).
	QueryTimeout time.Duration
	// UploadTimeout bounds one /api/upload request end to end (default: 5m).
	UploadTimeout time.Duration
	// MaxUploadBytes caps the multipart request body (default: 16 MiB).
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// QueryRate is the per-IP budget for POST /api/query (default 2 rps, burst 5).
	QueryRate RateBudget
	// UploadRate is the per-IP budget for POST /api/upload (default 1 rps, burst 10).
	UploadRate RateBudget
	// APIKey is required on every /api route except health and readiness,
	// as a Bearer token or X-API-Key header. Empty disables authentication.
	APIKey string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Asker answers one question. *query.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string) (*query.Result, error)
}

// Ingester stores uploaded files and raw text. *ingestion.Pipeline satisfies it.
type Ingester interface {
	IngestFile(ctx context.Context, name string, payload []byte, policy *chunker.Policy) (*ingestion.Result, error)
	IngestText(ctx context.Context, text string, policy *chunker.Policy) (*ingestion.Result, error)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	// Asker answers /api/query. Required.
	Asker Asker
	// Ingester handles /api/upload. Required.
	Ingester Ingester
	// Vectors backs /api/stats, /api/clear, and source deletion. Required.
	Vectors rag.VectorStore
	// Ledger backs /api/sources and the stats totals. Optional.
	Ledger store.Ledger
}

// Server is the HTTP server exposing ingestion and question answering.
type Server struct {
	// asker answers questions.
	asker Asker
	// ingester stores uploads.
	ingester Ingester
	// vectors is the chunk index.
	vectors rag.VectorStore
	// ledger records sources and queries. May be nil.
	ledger store.Ledger
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// limiter holds the per-client token buckets.
	limiter *rateLimiter
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
}

// sourceView is one cited chunk in a query response.
type sourceView struct {
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	ChunkID     int     `json:"chunk_id"`
	TotalChunks int     `json:"total_chunks"`
	Score       float32 `json:"score"`
	RerankScore float32 `json:"rerank_score"`
}

// QueryResponse is the JSON response for POST /api/query. Durations are
// rendered as seconds with two decimals ("1.23s").
type QueryResponse struct {
	Answer        string        `json:"answer"`
	Sources       []sourceView  `json:"sources"`
	Citations     []int         `json:"citations"`
	Time          string        `json:"time"`
	RetrievalTime string        `json:"retrieval_time"`
	RerankTime    string        `json:"rerank_time"`
	LLMTime       string        `json:"llm_time"`
	Tokens        *answer.Usage `json:"tokens,omitempty"`
	Cost          *answer.Cost  `json:"cost,omitempty"`
	// TokensEstimated is set when the backend did not report usage.
	TokensEstimated bool `json:"tokens_estimated,omitempty"`
}

// uploadResponse is the JSON response for POST /api/upload.
type uploadResponse struct {
	Success     bool               `json:"success"`
	ChunksAdded int                `json:"chunks_added"`
	Time        string             `json:"time"`
	Message     string             `json:"message"`
	Sources     []ingestion.Result `json:"sources"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	TotalVectors uint64        `json:"total_vectors"`
	Dimension    uint64        `json:"dimension"`
	Collection   string        `json:"collection"`
	Status       string        `json:"status"`
	Ledger       *store.Totals `json:"ledger,omitempty"`
}

// sourcesResponse is the JSON response for GET /api/sources.
type sourcesResponse struct {
	Sources []store.Source `json:"sources"`
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// messageResponse is the JSON body of successful mutations.
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
