package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/54b3r/ragdesk/internal/extract"
	"github.com/54b3r/ragdesk/internal/ingestion"
	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/query"
	"github.com/54b3r/ragdesk/internal/store"
)

// multipartMemory is the in-memory threshold for parsed multipart parts;
// larger parts spill to temporary files.
const multipartMemory = 8 << 20

// handleUpload handles POST /api/upload. The multipart form may carry a
// "file" part, a "text" field, or both; each is ingested separately.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.UploadTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	// Plain urlencoded forms carry only "text"; anything else must be multipart.
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.metrics.uploadRequestsTotal.WithLabelValues(uploadOutcome(err)).Inc()
		s.writeError(w, r, statusFor(err), fmt.Errorf("invalid upload: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	var results []ingestion.Result

	if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
		res, err := s.ingestFilePart(ctx, r)
		if err != nil {
			s.metrics.uploadRequestsTotal.WithLabelValues(uploadOutcome(err)).Inc()
			log.Warn("upload: ingest failed", slog.Any("error", err))
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.metrics.ingestedChunksTotal.WithLabelValues(string(res.FileType)).Add(float64(res.Chunks))
		results = append(results, *res)
	}

	if text := r.FormValue("text"); strings.TrimSpace(text) != "" {
		res, err := s.ingester.IngestText(ctx, text, nil)
		if err != nil {
			s.metrics.uploadRequestsTotal.WithLabelValues(uploadOutcome(err)).Inc()
			log.Warn("upload: text ingest failed", slog.Any("error", err))
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.metrics.ingestedChunksTotal.WithLabelValues(string(res.FileType)).Add(float64(res.Chunks))
		results = append(results, *res)
	}

	if len(results) == 0 {
		s.metrics.uploadRequestsTotal.WithLabelValues("empty").Inc()
		s.writeError(w, r, http.StatusBadRequest, errors.New("no file or text provided"))
		return
	}

	total := 0
	for _, res := range results {
		total += res.Chunks
	}
	s.metrics.uploadRequestsTotal.WithLabelValues("ok").Inc()
	s.writeJSON(w, r, http.StatusOK, uploadResponse{
		Success:     true,
		ChunksAdded: total,
		Time:        seconds(time.Since(start)),
		Message:     fmt.Sprintf("Successfully added %d chunks to database", total),
		Sources:     results,
	})
}

// handleQuery handles POST /api/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues("invalid").Inc()
		s.writeError(w, r, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	res, err := s.asker.Ask(ctx, req.Query)
	if err != nil {
		status := statusFor(err)
		outcome := "error"
		switch {
		case errors.Is(err, query.ErrEmptyQuery):
			outcome = "invalid"
			err = errors.New("query cannot be empty")
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		}
		s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
		logging.FromContext(r.Context()).Warn("query failed", slog.Any("error", err))
		s.writeError(w, r, status, err)
		return
	}

	s.observeQuery(res)
	s.writeJSON(w, r, http.StatusOK, NewQueryResponse(res))
}

// ingestFilePart reads the "file" part of a parsed multipart form and
// ingests it under its base filename.
func (s *Server) ingestFilePart(ctx context.Context, r *http.Request) (*ingestion.Result, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("invalid file part: %w", err)
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return s.ingester.IngestFile(ctx, filepath.Base(header.Filename), payload, nil)
}

// NewQueryResponse renders a query.Result in the POST /api/query wire shape.
func NewQueryResponse(res *query.Result) QueryResponse {
	out := QueryResponse{
		Answer:        res.Answer,
		Sources:       make([]sourceView, 0, len(res.Sources)),
		Citations:     res.Citations,
		Time:          seconds(res.Timings.Total),
		RetrievalTime: seconds(res.Timings.Retrieval),
		RerankTime:    seconds(res.Timings.Rerank),
		LLMTime:       seconds(res.Timings.Generation),
	}
	if out.Citations == nil {
		out.Citations = []int{}
	}
	for _, d := range res.Sources {
		out.Sources = append(out.Sources, sourceView{
			Text:        d.Content,
			Source:      d.Source,
			ChunkID:     d.ChunkIndex,
			TotalChunks: d.TotalChunks,
			Score:       d.Score,
			RerankScore: d.RerankScore,
		})
	}
	if res.Generated {
		usage, cost := res.Usage, res.Cost
		out.Tokens = &usage
		out.Cost = &cost
		out.TokensEstimated = res.UsageEstimated
	}
	return out
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.vectors.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	resp := statsResponse{
		TotalVectors: st.Points,
		Dimension:    st.VectorSize,
		Collection:   st.Collection,
		Status:       st.Status,
	}
	if s.ledger != nil {
		totals, err := s.ledger.Totals(r.Context())
		if err != nil {
			logging.FromContext(r.Context()).Warn("ledger: totals failed", slog.Any("error", err))
		} else {
			resp.Ledger = &totals
		}
	}
	s.metrics.indexedVectors.Set(float64(st.Points))
	s.writeJSON(w, r, http.StatusOK, resp)
}

// handleClear handles POST /api/clear: every vector and every ledger source
// record is removed. Query history is kept.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.vectors.DeleteAll(r.Context()); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if s.ledger != nil {
		if err := s.ledger.ResetSources(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("ledger: reset failed", slog.Any("error", err))
		}
	}
	s.metrics.indexedVectors.Set(0)
	logging.FromContext(r.Context()).Info("index cleared")
	s.writeJSON(w, r, http.StatusOK, messageResponse{Success: true, Message: "Database cleared"})
}

// handleSources handles GET /api/sources.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("source ledger is not configured"))
		return
	}
	srcs, err := s.ledger.Sources(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if srcs == nil {
		srcs = []store.Source{}
	}
	s.writeJSON(w, r, http.StatusOK, sourcesResponse{Sources: srcs})
}

// handleDeleteSource handles DELETE /api/sources?name=<source>, removing
// every chunk of one source from the index and the ledger. A name the ledger
// does not know is a 404.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if err := s.vectors.DeleteSource(r.Context(), name); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if s.ledger != nil {
		found, err := s.ledger.DeleteSource(r.Context(), name)
		switch {
		case err != nil:
			logging.FromContext(r.Context()).Warn("ledger: delete source failed", slog.String("source", name), slog.Any("error", err))
		case !found:
			s.writeError(w, r, http.StatusNotFound, fmt.Errorf("source %q not found", name))
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, messageResponse{Success: true, Message: fmt.Sprintf("Deleted source %s", name)})
}

// statusFor maps an ingestion or query error to an HTTP status code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	var decodeErr *extract.DecodeError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, ingestion.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, query.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	// Invalid chunking policy is a server misconfiguration, not a client error.
	return http.StatusInternalServerError
}

// uploadOutcome labels an upload failure for metrics.
func uploadOutcome(err error) string {
	switch statusFor(err) {
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported"
	case http.StatusUnprocessableEntity:
		return "decode_error"
	case http.StatusGatewayTimeout:
		return "timeout"
	}
	return "error"
}

// seconds renders d as "%.2fs".
func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// writeJSON encodes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError writes the standard error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeJSON(w, r, status, errorResponse{Success: false, Error: err.Error()})
}
