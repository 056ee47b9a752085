// Package config provides layered configuration for ragdesk.
// Precedence, lowest first: built-in defaults, YAML file, .env file, real
// environment variables. Every layer is expressed as environment variables,
// so the rest of the code base reads configuration from os.Getenv only.
//
// YAML file search order:
//  1. --config CLI flag (explicit path)
//  2. RAGDESK_CONFIG environment variable
//  3. ~/.ragdesk/config.yaml
//  4. ./ragdesk.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// VectorStore selects the chunk index backend: qdrant or memory.
	VectorStore string `yaml:"vector_store"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Rerank configures the reranking stage.
	Rerank RerankConfig `yaml:"rerank"`

	// Chunking configures the chunking policy applied to every ingest.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retrieval configures candidate and context counts.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Pricing configures the per-1K-token cost estimate.
	Pricing PricingConfig `yaml:"pricing"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Ledger configures the SQLite source/query ledger.
	Ledger LedgerConfig `yaml:"ledger"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: groq, openai, azure, ollama, ark, gemini.
	Provider string `yaml:"provider"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
	// ContextTokens caps the prompt size. 0 uses the generator default.
	ContextTokens int `yaml:"context_tokens"`

	Ollama OllamaConfig   `yaml:"ollama"`
	OpenAI EndpointConfig `yaml:"openai"`
	Azure  AzureConfig    `yaml:"azure"`
	Groq   EndpointConfig `yaml:"groq"`
	Ark    EndpointConfig `yaml:"ark"`
	Gemini GeminiConfig   `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// EndpointConfig holds settings for an OpenAI-compatible hosted backend.
type EndpointConfig struct {
	// APIKey is the backend API key. Prefer the env var.
	APIKey string `yaml:"api_key"`
	// Model is the model name.
	Model string `yaml:"model"`
	// BaseURL overrides the backend's default endpoint.
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure, gemini).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// BatchSize caps the inputs sent per embedding request.
	BatchSize int `yaml:"batch_size"`
	// KeepAlive is how long Ollama keeps the embedding model loaded.
	KeepAlive string `yaml:"keep_alive"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// RerankConfig holds reranking settings.
type RerankConfig struct {
	// Provider selects cohere or none.
	Provider string `yaml:"provider"`
	// Model is the Cohere rerank model.
	Model string `yaml:"model"`
	// APIKey is the Cohere API key. Prefer env var COHERE_API_KEY.
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the Cohere endpoint.
	BaseURL string `yaml:"base_url"`
}

// ChunkingConfig holds the chunking policy.
type ChunkingConfig struct {
	// Unit is characters or tokens.
	Unit string `yaml:"unit"`
	// Size is the chunk size in Unit.
	Size int `yaml:"size"`
	// Overlap is the overlap between consecutive chunks in Unit.
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds retrieval sizes.
type RetrievalConfig struct {
	// TopK is the number of candidates retrieved per query.
	TopK int `yaml:"top_k"`
	// RerankTopK is the number of candidates kept after reranking.
	RerankTopK int `yaml:"rerank_top_k"`
	// MinScore drops candidates below this similarity. Zero keeps all.
	MinScore float64 `yaml:"min_score"`
}

// PricingConfig holds USD prices per 1,000 tokens.
type PricingConfig struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k"`
	CompletionPer1K float64 `yaml:"completion_per_1k"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGDESK_API_KEY.
	APIKey string `yaml:"api_key"`
	// QueryRate is the per-client budget for /api/query.
	QueryRate RateConfig `yaml:"query_rate"`
	// UploadRate is the per-client budget for /api/upload.
	UploadRate RateConfig `yaml:"upload_rate"`
}

// RateConfig is a token bucket: RPS refill rate and Burst capacity.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LedgerConfig holds ledger settings.
type LedgerConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
	// Source adds the calling file and line to each record.
	Source bool `yaml:"source"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"MODEL_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Model.ContextTokens) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"GROQ_API_KEY", func(c *Config) string { return c.Model.Groq.APIKey }},
	{"GROQ_MODEL", func(c *Config) string { return c.Model.Groq.Model }},
	{"GROQ_BASE_URL", func(c *Config) string { return c.Model.Groq.BaseURL }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"OLLAMA_KEEP_ALIVE", func(c *Config) string { return c.Embedding.KeepAlive }},
	{"VECTOR_STORE", func(c *Config) string { return c.VectorStore }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"RERANK_PROVIDER", func(c *Config) string { return c.Rerank.Provider }},
	{"RERANK_MODEL", func(c *Config) string { return c.Rerank.Model }},
	{"COHERE_API_KEY", func(c *Config) string { return c.Rerank.APIKey }},
	{"COHERE_BASE_URL", func(c *Config) string { return c.Rerank.BaseURL }},
	{"CHUNK_UNIT", func(c *Config) string { return c.Chunking.Unit }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"RETRIEVE_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RERANK_TOP_K", func(c *Config) string { return intStr(c.Retrieval.RerankTopK) }},
	{"RETRIEVE_MIN_SCORE", func(c *Config) string { return float64Str(c.Retrieval.MinScore) }},
	{"PRICE_PROMPT_PER_1K", func(c *Config) string { return float64Str(c.Pricing.PromptPer1K) }},
	{"PRICE_COMPLETION_PER_1K", func(c *Config) string { return float64Str(c.Pricing.CompletionPer1K) }},
	{"RAGDESK_HOST", func(c *Config) string { return c.Server.Host }},
	{"RAGDESK_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"RAGDESK_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"RAGDESK_QUERY_RPS", func(c *Config) string { return float64Str(c.Server.QueryRate.RPS) }},
	{"RAGDESK_QUERY_BURST", func(c *Config) string { return intStr(c.Server.QueryRate.Burst) }},
	{"RAGDESK_UPLOAD_RPS", func(c *Config) string { return float64Str(c.Server.UploadRate.RPS) }},
	{"RAGDESK_UPLOAD_BURST", func(c *Config) string { return intStr(c.Server.UploadRate.Burst) }},
	{"RAGDESK_LEDGER_DB", func(c *Config) string { return c.Ledger.DBPath }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LOG_SOURCE", func(c *Config) string { return boolStr(c.Logging.Source) }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// LoadDotEnv loads KEY=VALUE pairs from path (default ".env") into the
// process environment. Variables that are already set are left alone.
// A missing file is not an error.
func LoadDotEnv(path string, log *slog.Logger) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return nil
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Unknown keys are rejected so a misspelt setting fails loudly.
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	var applied []string
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied = append(applied, m.envKey)
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", len(applied)),
	)
	log.Debug("config: applied keys", slog.Any("keys", applied))

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGDESK_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragdesk", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragdesk.yaml"); err == nil {
		return "ragdesk.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str renders a price with the shortest exact representation,
// returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
