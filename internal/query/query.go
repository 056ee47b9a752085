// Package query sequences one question through retrieval, reranking and
// answer generation, timing each stage and pricing the result.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/ragdesk/internal/answer"
	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/rag"
	"github.com/54b3r/ragdesk/internal/rerank"
	"github.com/54b3r/ragdesk/internal/store"
)

// NoDocumentsAnswer is returned when retrieval finds nothing to answer from.
const NoDocumentsAnswer = "No relevant documents found in the database. Please upload documents first."

// ErrEmptyQuery is returned by Ask when the question is empty or whitespace.
var ErrEmptyQuery = errors.New("query: question must not be empty")

// Generator produces a cited answer from ranked sources. *answer.Generator
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, query string, sources []rag.Document) (answer.Answer, error)
}

// Timings holds the wall-clock duration of each stage.
type Timings struct {
	Total      time.Duration
	Retrieval  time.Duration
	Rerank     time.Duration
	Generation time.Duration
}

// Result is the outcome of one Ask.
type Result struct {
	// Answer is the generated text, or NoDocumentsAnswer.
	Answer string
	// Sources are the chunks given to the model, best first. Citation [n]
	// refers to Sources[n-1].
	Sources []rag.Document
	// Citations lists the source numbers the answer actually cites.
	Citations []int
	// Timings are the per-stage durations. Rerank and Generation are zero
	// when retrieval found nothing.
	Timings Timings
	// Usage and Cost are zero when no generation happened.
	Usage answer.Usage
	Cost  answer.Cost
	// UsageEstimated is true when the backend did not report token usage.
	UsageEstimated bool
	// Generated is false for the no-documents short circuit.
	Generated bool
}

// Config holds the dependencies for a Service.
type Config struct {
	// Retriever finds candidate chunks. Required.
	Retriever rag.Retriever
	// Reranker narrows candidates. Defaults to rerank.ScoreReranker.
	Reranker rerank.Reranker
	// Generator writes the answer. Required.
	Generator Generator
	// Pricing prices token usage. Defaults to answer.DefaultPricing.
	Pricing *answer.Pricing
	// RetrieveTopK is the candidate count (default rag.DefaultTopK).
	RetrieveTopK int
	// RerankTopN is the number of chunks kept for generation (default rerank.DefaultTopN).
	RerankTopN int
	// Ledger optionally records each answered query.
	Ledger store.Ledger
}

// Service answers questions. It holds no per-request state and is safe for
// concurrent use when its collaborators are.
type Service struct {
	retriever rag.Retriever
	reranker  rerank.Reranker
	generator Generator
	pricing   answer.Pricing
	retrieveK int
	rerankN   int
	ledger    store.Ledger
}

// New constructs a Service from cfg.
func New(cfg *Config) (*Service, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("query: Retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("query: Generator must not be nil")
	}
	s := &Service{
		retriever: cfg.Retriever,
		reranker:  cfg.Reranker,
		generator: cfg.Generator,
		pricing:   answer.DefaultPricing(),
		retrieveK: cfg.RetrieveTopK,
		rerankN:   cfg.RerankTopN,
		ledger:    cfg.Ledger,
	}
	if s.reranker == nil {
		s.reranker = rerank.ScoreReranker{}
	}
	if cfg.Pricing != nil {
		s.pricing = *cfg.Pricing
	}
	if s.retrieveK <= 0 {
		s.retrieveK = rag.DefaultTopK
	}
	if s.rerankN <= 0 {
		s.rerankN = rerank.DefaultTopN
	}
	return s, nil
}

// Ask answers question: retrieve → rerank → generate. Stage errors are
// returned wrapped; nothing is retried.
func (s *Service) Ask(ctx context.Context, question string) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuery
	}
	log := logging.FromContext(ctx)
	start := time.Now()
	res := &Result{}

	stage := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, question, s.retrieveK)
	if err != nil {
		return nil, fmt.Errorf("query: retrieval: %w", err)
	}
	res.Timings.Retrieval = time.Since(stage)

	if len(candidates) == 0 {
		res.Answer = NoDocumentsAnswer
		res.Sources = []rag.Document{}
		res.Timings.Total = time.Since(start)
		log.Info("query: no documents retrieved", slog.Duration("retrieval", res.Timings.Retrieval))
		return res, nil
	}

	stage = time.Now()
	ranked, err := s.reranker.Rerank(ctx, question, candidates, s.rerankN)
	if err != nil {
		return nil, fmt.Errorf("query: rerank (%s): %w", s.reranker.Name(), err)
	}
	res.Timings.Rerank = time.Since(stage)

	stage = time.Now()
	ans, err := s.generator.Generate(ctx, question, ranked)
	if err != nil {
		return nil, fmt.Errorf("query: generation: %w", err)
	}
	res.Timings.Generation = time.Since(stage)

	used := ranked
	if ans.SourcesUsed > 0 && ans.SourcesUsed < len(ranked) {
		used = ranked[:ans.SourcesUsed]
	}
	res.Answer = ans.Text
	res.Sources = used
	res.Citations = answer.Citations(ans.Text, len(used))
	res.Usage = ans.Usage
	res.UsageEstimated = ans.Estimated
	res.Cost = answer.EstimateCost(ans.Usage, s.pricing)
	res.Generated = true
	res.Timings.Total = time.Since(start)

	log.Info("query: answered",
		slog.Int("candidates", len(candidates)),
		slog.Int("sources", len(used)),
		slog.Int("citations", len(res.Citations)),
		slog.Int("total_tokens", res.Usage.TotalTokens),
		slog.Duration("retrieval", res.Timings.Retrieval),
		slog.Duration("rerank", res.Timings.Rerank),
		slog.Duration("generation", res.Timings.Generation),
	)

	if s.ledger != nil {
		rec := store.QueryRecord{
			Question:         question,
			Sources:          len(used),
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			Cost:             res.Cost.TotalCost,
			Duration:         res.Timings.Total,
		}
		if err := s.ledger.RecordQuery(ctx, rec); err != nil {
			log.Warn("ledger: failed to record query", slog.Any("error", err))
		}
	}
	return res, nil
}
