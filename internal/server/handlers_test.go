package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragdesk/internal/answer"
	"github.com/54b3r/ragdesk/internal/chunker"
	"github.com/54b3r/ragdesk/internal/extract"
	"github.com/54b3r/ragdesk/internal/ingestion"
	"github.com/54b3r/ragdesk/internal/query"
	"github.com/54b3r/ragdesk/internal/rag"
	"github.com/54b3r/ragdesk/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeAsker struct {
	mu   sync.Mutex
	res  *query.Result
	err  error
	seen []string
}

func (a *fakeAsker) Ask(_ context.Context, question string) (*query.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, question)
	if a.err != nil {
		return nil, a.err
	}
	if strings.TrimSpace(question) == "" {
		return nil, query.ErrEmptyQuery
	}
	return a.res, nil
}

type fakeIngester struct {
	mu    sync.Mutex
	err   error
	files map[string]string
	texts []string
}

func (f *fakeIngester) IngestFile(_ context.Context, name string, payload []byte, _ *chunker.Policy) (*ingestion.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.files == nil {
		f.files = make(map[string]string)
	}
	f.files[name] = string(payload)
	return &ingestion.Result{Source: name, FileType: extract.TXT, Chunks: 3, Bytes: len(payload)}, nil
}

func (f *fakeIngester) IngestText(_ context.Context, text string, _ *chunker.Policy) (*ingestion.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	return &ingestion.Result{Source: ingestion.TextSourceName, FileType: extract.TXT, Chunks: 2, Bytes: len(text)}, nil
}

type testEnv struct {
	srv      *Server
	asker    *fakeAsker
	ingester *fakeIngester
	vectors  *rag.MemoryStore
	ledger   *store.SQLiteLedger
	reg      *prometheus.Registry
}

// newTestEnv builds a server over fakes, a MemoryStore and an in-memory
// ledger. mutate may adjust the config before construction.
func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	ledger, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	reg := prometheus.NewRegistry()
	cfg := &Config{MetricsRegistry: reg, MetricsGatherer: reg}
	if mutate != nil {
		mutate(cfg)
	}
	env := &testEnv{
		asker:    &fakeAsker{res: sampleResult()},
		ingester: &fakeIngester{},
		vectors:  rag.NewMemoryStore(),
		ledger:   ledger,
		reg:      reg,
	}
	env.srv, err = New(&Deps{
		Asker:    env.asker,
		Ingester: env.ingester,
		Vectors:  env.vectors,
		Ledger:   ledger,
	}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(env.srv.stopRL)
	return env
}

// newTestServer returns a server for handler tests that do not inspect
// collaborators.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestEnv(t, nil).srv
}

func sampleResult() *query.Result {
	return &query.Result{
		Answer: "Go was announced in 2009 [1].",
		Sources: []rag.Document{
			{Content: "Go was announced in November 2009.", Source: "go.txt", ChunkIndex: 0, TotalChunks: 2, Score: 0.9, RerankScore: 0.8},
		},
		Citations: []int{1},
		Timings: query.Timings{
			Total:      1500 * time.Millisecond,
			Retrieval:  200 * time.Millisecond,
			Rerank:     50 * time.Millisecond,
			Generation: 1250 * time.Millisecond,
		},
		Usage:     answer.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		Cost:      answer.EstimateCost(answer.Usage{PromptTokens: 100, CompletionTokens: 20}, answer.DefaultPricing()),
		Generated: true,
	}
}

// multipartBody builds a multipart form with an optional file part and an
// optional text field.
func multipartBody(t *testing.T, filename, content, text string) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if text != "" {
		if err := mw.WriteField("text", text); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

// ---------------------------------------------------------------------------
// POST /api/upload
// ---------------------------------------------------------------------------

func TestHandleUpload_File(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	body, ct := multipartBody(t, "../../docs/notes.txt", "hello world", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	env.srv.handleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[uploadResponse](t, w)
	if !resp.Success || resp.ChunksAdded != 3 || resp.Message != "Successfully added 3 chunks to database" {
		t.Errorf("response = %+v", resp)
	}
	if !strings.HasSuffix(resp.Time, "s") {
		t.Errorf("time = %q, want seconds suffix", resp.Time)
	}
	if got := env.ingester.files["notes.txt"]; got != "hello world" {
		t.Errorf("ingested files = %v, want notes.txt stored under its base name", env.ingester.files)
	}
}

func TestHandleUpload_FileAndText(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	body, ct := multipartBody(t, "a.txt", "file body", "pasted text")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	env.srv.handleUpload(w, req)

	resp := decode[uploadResponse](t, w)
	if resp.ChunksAdded != 5 || len(resp.Sources) != 2 {
		t.Errorf("response = %+v, want 5 chunks from 2 sources", resp)
	}
	if len(env.ingester.texts) != 1 || env.ingester.texts[0] != "pasted text" {
		t.Errorf("texts = %v", env.ingester.texts)
	}
}

func TestHandleUpload_URLEncodedText(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	form := url.Values{"text": {"plain form text"}}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	env.srv.handleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.ingester.texts) != 1 || env.ingester.texts[0] != "plain form text" {
		t.Errorf("texts = %v", env.ingester.texts)
	}
}

func TestHandleUpload_NothingProvided(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	body, ct := multipartBody(t, "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	env.srv.handleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Success || resp.Error == "" {
		t.Errorf("error body = %+v", resp)
	}
}

func TestHandleUpload_ErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported", &extract.UnsupportedFormatError{Format: "exe"}, http.StatusUnsupportedMediaType},
		{"decode", &extract.DecodeError{Format: extract.PDF, Err: errors.New("bad xref")}, http.StatusUnprocessableEntity},
		{"too large", fmt.Errorf("read: %w", ingestion.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{"timeout", fmt.Errorf("embed: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"backend", errors.New("qdrant unavailable"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil)
			env.ingester.err = tc.err

			body, ct := multipartBody(t, "x.bin", "payload", "")
			req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()

			env.srv.handleUpload(w, req)

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestHandleUpload_BodyOverLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *Config) { c.MaxUploadBytes = 64 })

	body, ct := multipartBody(t, "big.txt", strings.Repeat("x", 4096), "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	env.srv.handleUpload(w, req)

	if w.Code == http.StatusOK {
		t.Fatalf("expected failure for oversized body, got 200")
	}
	if len(env.ingester.files) != 0 {
		t.Error("oversized upload reached the ingester")
	}
}

// ---------------------------------------------------------------------------
// POST /api/query
// ---------------------------------------------------------------------------

func TestHandleQuery_OK(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"when was Go announced?"}`))
	w := httptest.NewRecorder()

	env.srv.handleQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[QueryResponse](t, w)
	if resp.Answer != "Go was announced in 2009 [1]." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Time != "1.50s" || resp.RetrievalTime != "0.20s" || resp.RerankTime != "0.05s" || resp.LLMTime != "1.25s" {
		t.Errorf("timings = %q %q %q %q", resp.Time, resp.RetrievalTime, resp.RerankTime, resp.LLMTime)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Source != "go.txt" || resp.Sources[0].TotalChunks != 2 {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if len(resp.Citations) != 1 || resp.Citations[0] != 1 {
		t.Errorf("citations = %v", resp.Citations)
	}
	if resp.Tokens == nil || resp.Tokens.TotalTokens != 120 {
		t.Errorf("tokens = %+v", resp.Tokens)
	}
	if resp.Cost == nil || resp.Cost.TotalCost <= 0 {
		t.Errorf("cost = %+v", resp.Cost)
	}
	if got := env.asker.seen; len(got) != 1 || got[0] != "when was Go announced?" {
		t.Errorf("asker saw %v", got)
	}
}

func TestHandleQuery_NoDocuments(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.asker.res = &query.Result{Answer: query.NoDocumentsAnswer, Sources: []rag.Document{}}

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"anything"}`))
	w := httptest.NewRecorder()

	env.srv.handleQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["tokens"]; ok {
		t.Error("tokens present without generation")
	}
	if string(raw["sources"]) != "[]" || string(raw["citations"]) != "[]" {
		t.Errorf("sources=%s citations=%s, want empty arrays", raw["sources"], raw["citations"])
	}
	var answerText string
	_ = json.Unmarshal(raw["answer"], &answerText)
	if answerText != query.NoDocumentsAnswer {
		t.Errorf("answer = %q", answerText)
	}
}

func TestHandleQuery_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		askErr  error
		want    int
		wantMsg string
	}{
		{"invalid json", `{"query":`, nil, http.StatusBadRequest, "invalid request body"},
		{"empty query", `{"query":"   "}`, nil, http.StatusBadRequest, "query cannot be empty"},
		{"timeout", `{"query":"q"}`, fmt.Errorf("generate: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ""},
		{"backend", `{"query":"q"}`, errors.New("llm down"), http.StatusInternalServerError, "llm down"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil)
			env.asker.err = tc.askErr

			req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(tc.body))
			w := httptest.NewRecorder()

			env.srv.handleQuery(w, req)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			resp := decode[errorResponse](t, w)
			if resp.Success {
				t.Error("success = true on error")
			}
			if tc.wantMsg != "" && resp.Error != tc.wantMsg {
				t.Errorf("error = %q, want %q", resp.Error, tc.wantMsg)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Stats, clear, sources
// ---------------------------------------------------------------------------

func seed(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	docs := []rag.Document{
		{ID: "a", Content: "alpha", Source: "a.txt", TotalChunks: 1},
		{ID: "b", Content: "beta", Source: "b.txt", TotalChunks: 1},
	}
	if err := env.vectors.Upsert(ctx, docs, [][]float32{{1, 0, 0}, {0, 1, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	for _, d := range docs {
		if err := env.ledger.RecordSource(ctx, store.Source{Name: d.Source, FileType: "txt", Chunks: 1}); err != nil {
			t.Fatalf("RecordSource: %v", err)
		}
	}
}

func TestHandleStats(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	seed(t, env)

	w := httptest.NewRecorder()
	env.srv.handleStats(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[statsResponse](t, w)
	if resp.TotalVectors != 2 || resp.Dimension != 3 || resp.Collection != "memory" || resp.Status != "green" {
		t.Errorf("stats = %+v", resp)
	}
	if resp.Ledger == nil || resp.Ledger.Sources != 2 || resp.Ledger.Chunks != 2 {
		t.Errorf("ledger totals = %+v", resp.Ledger)
	}
}

func TestHandleClear(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	seed(t, env)

	w := httptest.NewRecorder()
	env.srv.handleClear(w, httptest.NewRequest(http.MethodPost, "/api/clear", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decode[messageResponse](t, w); !resp.Success || resp.Message != "Database cleared" {
		t.Errorf("response = %+v", resp)
	}
	st, _ := env.vectors.Stats(context.Background())
	if st.Points != 0 {
		t.Errorf("points after clear = %d", st.Points)
	}
	srcs, _ := env.ledger.Sources(context.Background())
	if len(srcs) != 0 {
		t.Errorf("ledger sources after clear = %v", srcs)
	}
}

func TestHandleSources(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.srv.handleSources(w, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"sources":[]}` {
		t.Errorf("empty sources body = %s", got)
	}

	seed(t, env)
	w = httptest.NewRecorder()
	env.srv.handleSources(w, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	if resp := decode[sourcesResponse](t, w); len(resp.Sources) != 2 {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestHandleSources_NoLedger(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.srv.ledger = nil

	w := httptest.NewRecorder()
	env.srv.handleSources(w, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHandleDeleteSource(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	seed(t, env)

	w := httptest.NewRecorder()
	env.srv.handleDeleteSource(w, httptest.NewRequest(http.MethodDelete, "/api/sources", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	env.srv.handleDeleteSource(w, httptest.NewRequest(http.MethodDelete, "/api/sources?name=a.txt", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	st, _ := env.vectors.Stats(context.Background())
	if st.Points != 1 {
		t.Errorf("points = %d, want 1", st.Points)
	}
	srcs, _ := env.ledger.Sources(context.Background())
	if len(srcs) != 1 || srcs[0].Name != "b.txt" {
		t.Errorf("ledger sources = %+v", srcs)
	}

	for _, name := range []string{"nope.txt", "a.txt"} {
		w = httptest.NewRecorder()
		env.srv.handleDeleteSource(w, httptest.NewRequest(http.MethodDelete, "/api/sources?name="+name, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", name, w.Code)
		}
		var body errorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Success || !strings.Contains(body.Error, name) {
			t.Errorf("%s: body = %+v (%v)", name, body, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

func TestRoutes_AuthAndOpenEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *Config) { c.APIKey = "secret" })
	h := env.srv.Handler()

	tests := []struct {
		method, path, auth string
		want               int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodGet, "/api/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/stats", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/stats", "Bearer secret", http.StatusOK},
		{http.MethodPost, "/api/clear", "Bearer wrong", http.StatusUnauthorized},
		{http.MethodGet, "/api/query", "Bearer secret", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s %s (auth %q) = %d, want %d", tc.method, tc.path, tc.auth, w.Code, tc.want)
		}
	}
}

func TestRoutes_QueryEndToEnd(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"q"}`))
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	cfg := func() *Config { return &Config{MetricsRegistry: reg, MetricsGatherer: reg} }

	if _, err := New(nil, cfg()); err == nil {
		t.Error("nil deps: want error")
	}
	if _, err := New(&Deps{Asker: &fakeAsker{}, Vectors: rag.NewMemoryStore()}, cfg()); err == nil {
		t.Error("nil ingester: want error")
	}
	if _, err := New(&Deps{Asker: &fakeAsker{}, Ingester: &fakeIngester{}}, cfg()); err == nil {
		t.Error("nil vectors: want error")
	}
}
