// Package answer turns a question and its reranked source chunks into a
// cited answer with a single chat-model call.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragdesk/internal/budget"
	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/rag"
)

// promptTemplate is the citation prompt. The first %s is the numbered context
// block, the second the question.
const promptTemplate = `You are a helpful assistant that answers questions based on provided context.

IMPORTANT RULES:
1. Use ONLY the information from the context below
2. Include inline citations like [1], [2] for every claim
3. If the context doesn't contain enough information, say "I cannot answer this based on the provided documents"
4. Be concise but complete

Context:
%s

Question: %s

Answer with citations:`

// perSourceTokens covers the "[n] " marker and the blank line after each block.
const perSourceTokens = 2

// Usage is the token accounting for one generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is the generated response.
type Answer struct {
	// Text is the model output with inline [n] citations.
	Text string
	// Usage is the token usage reported by the model, or an estimate when the
	// backend does not report it (see Estimated).
	Usage Usage
	// Estimated is true when Usage came from the character heuristic.
	Estimated bool
	// SourcesUsed is how many of the supplied sources fit the context budget.
	// Citation [n] refers to sources[n-1].
	SourcesUsed int
}

// Config holds the dependencies for a Generator.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// MaxContextTokens is the estimated input budget. Lowest-ranked sources
	// are dropped to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Generator produces cited answers. It is safe for concurrent use when the
// underlying chat model is.
type Generator struct {
	// chatModel is the LLM backend.
	chatModel model.BaseChatModel

	// maxContextTokens is the estimated prompt budget.
	maxContextTokens int
}

// New constructs a Generator from cfg.
func New(cfg *Config) (*Generator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("answer: ChatModel must not be nil")
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	return &Generator{chatModel: cfg.ChatModel, maxContextTokens: maxCtx}, nil
}

// Generate asks the model to answer query from sources, which must be ordered
// best first.
func (g *Generator) Generate(ctx context.Context, query string, sources []rag.Document) (Answer, error) {
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Content
	}

	fixed := budget.Estimate(BuildPrompt(query, nil))
	keep := budget.FitSources(fixed, texts, perSourceTokens, g.maxContextTokens)
	if keep < len(texts) {
		logging.FromContext(ctx).Warn("budget: dropped sources to fit context window",
			slog.Int("dropped", len(texts)-keep),
			slog.Int("retained", keep),
			slog.Int("max_tokens", g.maxContextTokens),
		)
		// Always send the best source, even when it alone exceeds the budget.
		if keep == 0 && len(texts) > 0 {
			keep = 1
		}
		texts = texts[:keep]
	}

	msgs := []*schema.Message{schema.UserMessage(BuildPrompt(query, texts))}
	msg, err := g.chatModel.Generate(ctx, msgs)
	if err != nil {
		return Answer{}, fmt.Errorf("answer: generate failed: %w", err)
	}
	if msg == nil {
		return Answer{}, fmt.Errorf("answer: model returned no message")
	}

	out := Answer{Text: msg.Content, SourcesUsed: len(texts)}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		u := msg.ResponseMeta.Usage
		out.Usage = Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
		if out.Usage.TotalTokens == 0 {
			out.Usage.TotalTokens = u.PromptTokens + u.CompletionTokens
		}
	} else {
		out.Estimated = true
		out.Usage.PromptTokens = budget.EstimateMessages(msgs)
		out.Usage.CompletionTokens = budget.Estimate(msg.Content)
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}
	return out, nil
}

// BuildPrompt renders the citation prompt. Each source becomes a "[n] text"
// block numbered from 1 in the given order.
func BuildPrompt(query string, sources []string) string {
	var sb strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, s)
	}
	return fmt.Sprintf(promptTemplate, sb.String(), query)
}
