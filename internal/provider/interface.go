// Package provider selects and constructs the chat model used to generate
// cited answers. Supported backends: Ollama, OpenAI, Azure OpenAI, Groq,
// Volcengine Ark, Google Gemini. Every backend is exposed as an eino
// model.BaseChatModel so callers never depend on a specific SDK.
package provider

import (
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGroq selects Groq's OpenAI-compatible endpoint.
	BackendGroq Backend = "groq"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Default endpoints and models.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.1-8b-instant"
	DefaultArkBaseURL  = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultAzureAPIVer = "2024-02-01"

	// DefaultMaxTokens caps answer length.
	DefaultMaxTokens = 800
	// DefaultTemperature keeps answers close to the retrieved context.
	DefaultTemperature float32 = 0.3
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama base URL (OLLAMA_HOST).
	Host string
	// Model is the chat model tag (OLLAMA_MODEL).
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI key (OPENAI_API_KEY).
	APIKey string
	// Model is the chat model name (OPENAI_MODEL).
	Model string
	// BaseURL optionally points at an OpenAI-compatible gateway (OPENAI_BASE_URL).
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the resource key (AZURE_OPENAI_API_KEY).
	APIKey string
	// Endpoint is the resource URL (AZURE_OPENAI_ENDPOINT).
	Endpoint string
	// Deployment is the chat deployment name (AZURE_OPENAI_DEPLOYMENT).
	Deployment string
	// APIVersion is the REST API version (AZURE_OPENAI_API_VERSION).
	APIVersion string
}

// ProviderGroq holds Groq settings.
type ProviderGroq struct {
	// APIKey is the Groq key (GROQ_API_KEY).
	APIKey string
	// Model is the chat model name (GROQ_MODEL).
	Model string
	// BaseURL is the OpenAI-compatible endpoint (GROQ_BASE_URL).
	BaseURL string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is the Ark key (ARK_API_KEY).
	APIKey string
	// Model is the endpoint or model ID (ARK_MODEL).
	Model string
	// BaseURL is the regional Ark endpoint (ARK_BASE_URL).
	BaseURL string
}

// ProviderGemini holds Gemini settings.
type ProviderGemini struct {
	// APIKey is the AI Studio key (GOOGLE_API_KEY).
	APIKey string
	// Model is the Gemini model name (GEMINI_MODEL).
	Model string
}

// SharedTuning holds generation parameters applied to every backend that
// supports them.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per answer (MODEL_MAX_TOKENS).
	MaxTokens int
	// Temperature controls response randomness (MODEL_TEMPERATURE).
	Temperature float32
}

// Config holds all provider-level configuration. Only the block matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use (MODEL_PROVIDER).
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Groq        ProviderGroq
	Ark         ProviderArk
	Gemini      ProviderGemini

	// Tuning is shared across backends.
	Tuning SharedTuning
}

// Validate checks that every setting the selected backend needs is present.
// Errors name the environment variable that supplies the missing value.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Host == "" {
			return fmt.Errorf("provider: OLLAMA_HOST is required for ollama backend")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
	case BackendGroq:
		if c.Groq.APIKey == "" {
			return fmt.Errorf("provider: GROQ_API_KEY is required for groq backend")
		}
		if c.Groq.Model == "" {
			return fmt.Errorf("provider: GROQ_MODEL is required for groq backend")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ARK_API_KEY is required for ark backend")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ARK_MODEL is required for ark backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for gemini backend")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, groq, ark, gemini)", c.Backend)
	}

	if c.Tuning.MaxTokens <= 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must be positive, got %d", c.Tuning.MaxTokens)
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be within [0, 2], got %v", c.Tuning.Temperature)
	}
	return nil
}

// ModelName returns the model identifier the selected backend will call.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendGroq:
		return c.Groq.Model
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}
