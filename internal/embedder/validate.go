package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// chatModelMarkers are name fragments of chat models that are sometimes put
// into EMBEDDING_MODEL by mistake.
var chatModelMarkers = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama-3", "mistral", "mixtral", "gemma",
	"phi3", "claude", "command-r", "deepseek", "qwen",
}

// nativeDimensions lists the output size of common embedding models. Only
// models that cannot shorten their output are checked against it.
var nativeDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
	"bge-m3":                 1024,
	"text-embedding-ada-002": 1536,
}

// isChatModel reports whether model looks like a chat model rather than an
// embedding model.
func isChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	if strings.HasPrefix(lower, "gemini-") {
		return true
	}
	for _, m := range chatModelMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// nativeDims returns the fixed output size of model, ignoring an Ollama tag
// such as ":latest".
func nativeDims(model string) (int, bool) {
	name, _, _ := strings.Cut(strings.ToLower(model), ":")
	d, ok := nativeDimensions[name]
	return d, ok
}

// Preflight validates cfg before the vector store is sized from
// cfg.Dimensions. A dimension that a fixed-size model cannot produce is an
// error; a chat model name is only a warning.
func Preflight(log *slog.Logger, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if d, ok := nativeDims(cfg.Model); ok && d != cfg.Dimensions {
		return fmt.Errorf("embedder: %s produces %d-dimensional vectors but EMBEDDING_DIMENSIONS is %d", cfg.Model, d, cfg.Dimensions)
	}
	if (cfg.Backend == "openai" || cfg.Backend == "azure") && cfg.BatchSize > maxOpenAIBatch {
		return fmt.Errorf("embedder: EMBEDDING_BATCH_SIZE %d exceeds the %s limit of %d", cfg.BatchSize, cfg.Backend, maxOpenAIBatch)
	}

	if isChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use an embedding model such as nomic-embed-text or text-embedding-3-small"),
		)
	}

	log.Info("embedder configured",
		slog.String("backend", cfg.Backend),
		slog.String("model", cfg.Model),
		slog.Int("dimensions", cfg.Dimensions),
		slog.Int("batch_size", cfg.BatchSize),
	)
	return nil
}
