// Package ingestion turns documents into stored, searchable chunks.
// The Processor runs extract → clean → chunk; the Pipeline adds the
// embed → upsert stages and records each source in the ledger. The HTTP
// upload handler and the `ragdesk ingest` CLI command both drive the Pipeline.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragdesk/internal/chunker"
	"github.com/54b3r/ragdesk/internal/extract"
	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/rag"
	"github.com/54b3r/ragdesk/internal/store"
)

const (
	// DefaultEmbedBatchSize is the number of chunk texts sent per Embed call.
	DefaultEmbedBatchSize = 64
	// DefaultUpsertBatchSize is the number of points written per Upsert call.
	DefaultUpsertBatchSize = 100
	// DefaultMaxBytes caps a single document (16 MiB).
	DefaultMaxBytes = 16 << 20
)

// ErrTooLarge is returned when a fetched or read document exceeds MaxBytes.
var ErrTooLarge = errors.New("ingestion: document exceeds size limit")

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// EmbedBatchSize defaults to DefaultEmbedBatchSize if zero.
	EmbedBatchSize int

	// UpsertBatchSize defaults to DefaultUpsertBatchSize if zero.
	UpsertBatchSize int

	// MaxBytes limits local files and URL fetches. Defaults to DefaultMaxBytes.
	MaxBytes int64

	// HTTPTimeout is the timeout for each URL fetch.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Result summarises one ingested source.
type Result struct {
	// Source is the name stored on every chunk.
	Source string `json:"source"`
	// FileType is the extraction format used.
	FileType extract.FileType `json:"file_type"`
	// Chunks is the number of chunks stored.
	Chunks int `json:"chunks"`
	// Bytes is the payload size.
	Bytes int `json:"bytes"`
}

// Pipeline orchestrates the process → embed → upsert flow.
type Pipeline struct {
	// processor extracts, cleans, and chunks payloads.
	processor *Processor

	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// vectors persists the embedded chunks.
	vectors rag.VectorStore

	// ledger optionally records ingested sources. May be nil.
	ledger store.Ledger

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching URL sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// ledger may be nil.
func NewPipeline(processor *Processor, embedder rag.Embedder, vectors rag.VectorStore, ledger store.Ledger, cfg *Config) (*Pipeline, error) {
	if processor == nil {
		return nil, fmt.Errorf("ingestion: processor must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if vectors == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	if resolved.EmbedBatchSize <= 0 {
		resolved.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if resolved.UpsertBatchSize <= 0 {
		resolved.UpsertBatchSize = DefaultUpsertBatchSize
	}
	if resolved.MaxBytes <= 0 {
		resolved.MaxBytes = DefaultMaxBytes
	}
	if resolved.HTTPTimeout <= 0 {
		resolved.HTTPTimeout = 30 * time.Second
	}
	if resolved.UserAgent == "" {
		resolved.UserAgent = "ragdesk/1.0 (document ingestion)"
	}

	return &Pipeline{
		processor: processor,
		embedder:  embedder,
		vectors:   vectors,
		ledger:    ledger,
		cfg:       &resolved,
		httpClient: &http.Client{
			Timeout: resolved.HTTPTimeout,
		},
	}, nil
}

// Processor returns the pipeline's document processor.
func (p *Pipeline) Processor() *Processor { return p.processor }

// IngestFile processes an uploaded payload and stores its chunks. The format
// is resolved with extract.Detect. A nil policy selects the processor default.
func (p *Pipeline) IngestFile(ctx context.Context, name string, payload []byte, policy *chunker.Policy) (*Result, error) {
	ft, err := extract.Detect(name, payload)
	if err != nil {
		return nil, err
	}
	return p.ingestPayload(ctx, UploadMetadata(name, ft), payload, ft, policy)
}

// IngestText chunks raw text under the "user_input" source name. Blank text
// stores nothing and returns a zero-chunk result.
func (p *Pipeline) IngestText(ctx context.Context, text string, policy *chunker.Policy) (*Result, error) {
	meta := TextMetadata()
	if strings.TrimSpace(text) == "" {
		return &Result{Source: meta.Name, FileType: extract.TXT}, nil
	}
	chunks, err := p.processor.ProcessText(text, meta.Name, policy)
	if err != nil {
		return nil, err
	}
	return p.persist(ctx, meta, chunks, len(text))
}

// IngestPaths reads local files or fetches http(s) URLs and ingests each.
// Sources are processed sequentially; the first error stops the run and the
// results gathered so far are returned with it. Progress is reported via the
// optional progress callback.
func (p *Pipeline) IngestPaths(ctx context.Context, refs []string, policy *chunker.Policy, progress func(msg string)) ([]Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	results := make([]Result, 0, len(refs))
	for _, ref := range refs {
		meta := InferMetadata(ref)

		var payload []byte
		var err error
		if meta.Origin == OriginURL {
			progress(fmt.Sprintf("fetching %s", ref))
			payload, err = p.fetch(ctx, ref)
		} else {
			progress(fmt.Sprintf("reading %s", ref))
			payload, err = p.readFile(ref)
		}
		if err != nil {
			return results, fmt.Errorf("ingestion: load %s: %w", ref, err)
		}

		ft := meta.FileType
		if ft == "" {
			if ft, err = extract.Detect(meta.Name, payload); err != nil {
				return results, fmt.Errorf("ingestion: %s: %w", ref, err)
			}
			meta.FileType = ft
		}

		res, err := p.ingestPayload(ctx, meta, payload, ft, policy)
		if err != nil {
			return results, fmt.Errorf("ingestion: %s: %w", ref, err)
		}
		results = append(results, *res)
		progress(fmt.Sprintf("ingested %d chunks from %s", res.Chunks, ref))
	}
	return results, nil
}

// ingestPayload runs the processor on payload and stores the chunks.
func (p *Pipeline) ingestPayload(ctx context.Context, meta SourceMetadata, payload []byte, ft extract.FileType, policy *chunker.Policy) (*Result, error) {
	chunks, err := p.processor.ProcessDocument(payload, meta.Name, ft, policy)
	if err != nil {
		return nil, err
	}
	return p.persist(ctx, meta, chunks, len(payload))
}

// persist embeds chunks in batches, upserts them in batches, and records the
// source in the ledger.
func (p *Pipeline) persist(ctx context.Context, meta SourceMetadata, chunks []Chunk, size int) (*Result, error) {
	log := logging.FromContext(ctx)
	res := &Result{Source: meta.Name, FileType: meta.FileType, Bytes: size}
	if len(chunks) == 0 {
		log.Info("ingestion: source produced no chunks", slog.String("source", meta.Name))
		return res, nil
	}

	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := min(start+p.cfg.EmbedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingestion: embedding failed for %s: %w", meta.Name, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("ingestion: embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		embeddings = append(embeddings, vecs...)
	}

	metadata := meta.Map()
	docs := make([]rag.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = rag.Document{
			ID:          uuid.NewString(),
			Content:     c.Text,
			Source:      c.SourceName,
			ChunkIndex:  c.ChunkIndex,
			TotalChunks: c.TotalChunks,
			Size:        c.Size,
			Unit:        string(c.Unit),
			Tokens:      c.EstimatedTokens,
			Metadata:    metadata,
		}
	}

	for start := 0; start < len(docs); start += p.cfg.UpsertBatchSize {
		end := min(start+p.cfg.UpsertBatchSize, len(docs))
		if err := p.vectors.Upsert(ctx, docs[start:end], embeddings[start:end]); err != nil {
			return nil, fmt.Errorf("ingestion: upsert failed for %s: %w", meta.Name, err)
		}
	}
	res.Chunks = len(docs)

	if p.ledger != nil {
		src := store.Source{
			Name:     meta.Name,
			FileType: string(meta.FileType),
			Chunks:   len(docs),
			Bytes:    int64(size),
		}
		if err := p.ledger.RecordSource(ctx, src); err != nil {
			log.Warn("ledger: failed to record source", slog.String("source", meta.Name), slog.Any("error", err))
		}
	}

	log.Info("ingestion: stored source",
		slog.String("source", meta.Name),
		slog.String("file_type", string(meta.FileType)),
		slog.Int("chunks", res.Chunks),
		slog.Int("bytes", size),
	)
	return res, nil
}

// readFile reads a local file, refusing anything over MaxBytes.
func (p *Pipeline) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > p.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	return os.ReadFile(path)
}

// fetch retrieves the raw bytes of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > p.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}
