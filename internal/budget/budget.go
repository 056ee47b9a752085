// Package budget provides token estimation and context trimming for answer
// generation. Because the service supports multiple LLM backends with
// different tokenizers, it uses a character heuristic: 1 token ≈ 4 characters.
// The same heuristic fills the "tokens" field stored with every chunk.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead approximates the per-message framing tokens most
	// chat APIs add around role and content.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Fits 8k-context models (Llama 3.1 8B on Groq) with room for an
	// 800-token answer. Override with MODEL_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
// Any non-empty string counts as at least one token.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitSources returns how many leading entries of sources fit within
// maxTokens once fixedTokens (prompt scaffolding, question) are accounted
// for. Sources are ranked best first, so trimming drops from the tail.
// perSource is added for the numbering and separators around each entry.
func FitSources(fixedTokens int, sources []string, perSource, maxTokens int) int {
	used := fixedTokens
	for i, s := range sources {
		used += perSource + Estimate(s)
		if used > maxTokens {
			return i
		}
	}
	return len(sources)
}
