package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/ragdesk/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultGeminiDimensions is the output dimension of text-embedding-004.
	defaultGeminiDimensions = 768
)

// Config is the resolved embedding backend configuration.
type Config struct {
	// Backend is one of ollama, openai, azure, gemini.
	Backend string
	// Model is the embedding model (or Azure deployment) name.
	Model string
	// Endpoint is the API base URL (Ollama host, OpenAI base, Azure resource endpoint).
	Endpoint string
	// APIKey authenticates against hosted backends.
	APIKey string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the embedding vector length the vector store is created with.
	Dimensions int
	// BatchSize caps the inputs per embedding request. 0 uses the backend default.
	BatchSize int
	// KeepAlive is the Ollama model keep-alive duration (e.g. "10m").
	KeepAlive string
}

// DefaultDimensions returns the correct default embedding vector size for the
// given backend name. Callers that need to pre-configure a vector store (e.g.
// Qdrant collection creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	case "gemini":
		return defaultGeminiDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// ConfigFromEnv resolves the embedding configuration using cascading
// defaults that inherit from the chat provider configuration when
// embedding-specific overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER when it names an embedding-capable
//     backend, else ollama
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions
func ConfigFromEnv() Config {
	backend := getEnv("EMBEDDING_PROVIDER")
	if backend == "" {
		switch p := getEnv("MODEL_PROVIDER"); p {
		case "ollama", "openai", "azure", "gemini":
			backend = p
		default:
			// groq and ark expose no embeddings endpoint.
			backend = "ollama"
		}
	}

	cfg := Config{
		Backend:    backend,
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Dimensions: DefaultDimensions(backend),
		BatchSize:  getEnvInt("EMBEDDING_BATCH_SIZE", 0),
	}

	switch backend {
	case "ollama":
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		cfg.KeepAlive = getEnv("OLLAMA_KEEP_ALIVE")
	case "openai":
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = "https://api.openai.com/v1"
		}
	case "azure":
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
	case "gemini":
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultGeminiModel)
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("GOOGLE_API_KEY")
		}
	}
	return cfg
}

// Validate reports missing settings for the configured backend, naming the
// environment variable that supplies each one.
func (c Config) Validate() error {
	switch c.Backend {
	case "ollama":
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: ollama requires OLLAMA_HOST or EMBEDDING_ENDPOINT")
		}
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "gemini":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure, gemini)", c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("embedder: EMBEDDING_MODEL must not be empty")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must be positive, got %d", c.Dimensions)
	}
	return nil
}

// New constructs a rag.Embedder for cfg.
func New(ctx context.Context, cfg Config) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       cfg.Endpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			KeepAlive:  cfg.KeepAlive,
		}), nil

	case "openai":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		}), nil

	case "azure":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
			BatchSize:  cfg.BatchSize,
		}), nil

	default: // gemini
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	}
}

// NewFromEnv is shorthand for New(ctx, ConfigFromEnv()).
func NewFromEnv(ctx context.Context) (rag.Embedder, error) {
	return New(ctx, ConfigFromEnv())
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
