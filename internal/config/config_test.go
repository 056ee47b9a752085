package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Files(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		content  *string
		wantPath bool
		wantErr  string
	}{
		{name: "missing file", content: nil},
		{name: "empty file", content: ptr(""), wantPath: true},
		{name: "comments only", content: ptr("# nothing set\n"), wantPath: true},
		{name: "malformed", content: ptr("{{invalid yaml"), wantErr: "failed to parse"},
		{name: "unknown key", content: ptr("chunking:\n  sise: 400\n"), wantErr: "sise"},
		{name: "wrong type", content: ptr("qdrant:\n  port: six\n"), wantErr: "failed to parse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			if tc.content != nil {
				if err := os.WriteFile(cfgPath, []byte(*tc.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			got, err := Load(cfgPath, slog.New(slog.DiscardHandler))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if (got != "") != tc.wantPath {
				t.Errorf("loaded path = %q, wantPath %v", got, tc.wantPath)
			}
		})
	}
}

func ptr(s string) *string { return &s }

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 8192
  temperature: 0.3
  context_tokens: 6000
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: ollama
  model: nomic-embed-text
  batch_size: 32
  keep_alive: 10m
vector_store: qdrant
qdrant:
  host: qdrant.internal
  port: 6334
  collection: my-docs
chunking:
  unit: tokens
  size: 1000
  overlap: 150
retrieval:
  top_k: 12
  rerank_top_k: 4
pricing:
  prompt_per_1k: 0.00015
ledger:
  db_path: disabled
server:
  query_rate:
    rps: 0.5
    burst: 3
logging:
  level: debug
  format: text
  source: true
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE", "MODEL_CONTEXT_TOKENS",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_BATCH_SIZE", "OLLAMA_KEEP_ALIVE",
		"RAGDESK_QUERY_RPS", "RAGDESK_QUERY_BURST", "RAGDESK_UPLOAD_RPS", "LOG_SOURCE",
		"VECTOR_STORE", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CHUNK_UNIT", "CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVE_TOP_K", "RERANK_TOP_K",
		"PRICE_PROMPT_PER_1K", "PRICE_COMPLETION_PER_1K", "RAGDESK_LEDGER_DB",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "8192",
		"MODEL_CONTEXT_TOKENS":     "6000",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"EMBEDDING_BATCH_SIZE":     "32",
		"OLLAMA_KEEP_ALIVE":        "10m",
		"RAGDESK_QUERY_RPS":        "0.5",
		"RAGDESK_QUERY_BURST":      "3",
		"RAGDESK_UPLOAD_RPS":       "",
		"LOG_SOURCE":               "true",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION":        "my-docs",
		"VECTOR_STORE":             "qdrant",
		"CHUNK_UNIT":               "tokens",
		"CHUNK_SIZE":               "1000",
		"CHUNK_OVERLAP":            "150",
		"RETRIEVE_TOP_K":           "12",
		"RERANK_TOP_K":             "4",
		"PRICE_PROMPT_PER_1K":      "0.00015",
		"PRICE_COMPLETION_PER_1K":  "",
		"RAGDESK_LEDGER_DB":        "disabled",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestEnvMapping_UniqueKeys(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool, len(envMapping))
	for _, m := range envMapping {
		if seen[m.envKey] {
			t.Errorf("duplicate env key %s", m.envKey)
		}
		seen[m.envKey] = true
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("rerank:\n  provider: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGDESK_CONFIG", cfgPath)
	t.Setenv("RERANK_PROVIDER", "")
	os.Unsetenv("RERANK_PROVIDER")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("RERANK_PROVIDER"); got != "none" {
		t.Errorf("RERANK_PROVIDER = %q, want none", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GROQ_MODEL=from-dotenv\nRAGDESK_PORT=9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGDESK_PORT", "7000")
	t.Setenv("GROQ_MODEL", "")
	os.Unsetenv("GROQ_MODEL")

	if err := LoadDotEnv(envPath, slog.Default()); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("GROQ_MODEL"); got != "from-dotenv" {
		t.Errorf("GROQ_MODEL = %q, want from-dotenv", got)
	}
	if got := os.Getenv("RAGDESK_PORT"); got != "7000" {
		t.Errorf("RAGDESK_PORT = %q, want existing value 7000", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), slog.Default()); err != nil {
		t.Errorf("missing file: %v", err)
	}
}

func TestFloat64Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0, ""},
		{0.0001, "0.0001"},
		{0.00015, "0.00015"},
		{2, "2"},
	}
	for _, tt := range tests {
		if got := float64Str(tt.in); got != tt.want {
			t.Errorf("float64Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
