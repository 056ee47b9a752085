package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/ragdesk/internal/rag"
)

func candidates() []rag.Document {
	return []rag.Document{
		{ID: "0", Content: "cats purr", Score: 0.40},
		{ID: "1", Content: "dogs bark", Score: 0.90},
		{ID: "2", Content: "birds sing", Score: 0.65},
		{ID: "3", Content: "fish swim", Score: 0.10},
	}
}

// ── ScoreReranker ────────────────────────────────────────────────────────────

func TestScoreReranker(t *testing.T) {
	t.Parallel()
	in := candidates()
	got, err := ScoreReranker{}.Rerank(context.Background(), "q", in, 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("Rerank = %+v, want [1 2]", got)
	}
	if got[0].RerankScore != got[0].Score {
		t.Errorf("RerankScore = %v, want copy of Score %v", got[0].RerankScore, got[0].Score)
	}
	if in[0].ID != "0" {
		t.Error("Rerank modified its input slice")
	}
}

// ── CohereReranker ───────────────────────────────────────────────────────────

func TestCohereReranker_MapsIndices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/rerank" {
			t.Errorf("path = %q, want /v2/rerank", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer co-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req struct {
			Model     string   `json:"model"`
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
			TopN      int      `json:"top_n"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "rerank-english-v3.0" || req.Query != "what swims?" || req.TopN != 2 || len(req.Documents) != 4 {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r1","results":[{"index":3,"relevance_score":0.97},{"index":0,"relevance_score":0.51}]}`))
	}))
	defer srv.Close()

	rr := NewCohereReranker(&CohereConfig{APIKey: "co-key", BaseURL: srv.URL})
	got, err := rr.Rerank(context.Background(), "what swims?", candidates(), 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "0" {
		t.Fatalf("Rerank = %+v, want [3 0]", got)
	}
	if got[0].RerankScore < 0.96 || got[0].Score != 0.10 {
		t.Errorf("scores = rerank %v / retrieval %v", got[0].RerankScore, got[0].Score)
	}
}

func TestCohereReranker_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusUnauthorized, `{"message":"invalid api token"}`, "cohere rerank"},
		{"bad index", http.StatusOK, `{"id":"r1","results":[{"index":9,"relevance_score":0.5}]}`, "out of range"},
		{"not json", http.StatusOK, `<html>`, "cohere rerank"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			rr := NewCohereReranker(&CohereConfig{APIKey: "k", BaseURL: srv.URL})
			_, err := rr.Rerank(context.Background(), "q", candidates(), 3)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestCohereReranker_EmptyInputSkipsCall(t *testing.T) {
	t.Parallel()
	rr := NewCohereReranker(&CohereConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	got, err := rr.Rerank(context.Background(), "q", nil, 3)
	if err != nil || len(got) != 0 {
		t.Errorf("Rerank(nil) = %v, %v; want empty, nil", got, err)
	}
}

// ── NewFromEnv ───────────────────────────────────────────────────────────────

func TestNewFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantName string
		wantErr  bool
	}{
		{"default without key", "", "", "none", false},
		{"default with key", "", "co-key", "cohere", false},
		{"explicit none", "none", "co-key", "none", false},
		{"cohere without key", "cohere", "", "", true},
		{"unknown", "jina", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("RERANK_PROVIDER", tc.provider)
			t.Setenv("COHERE_API_KEY", tc.key)
			rr, err := NewFromEnv()
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewFromEnv() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && rr.Name() != tc.wantName {
				t.Errorf("Name() = %q, want %q", rr.Name(), tc.wantName)
			}
		})
	}
}
