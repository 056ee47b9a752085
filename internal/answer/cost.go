package answer

// Default per-1K-token prices in USD. Groq's free tier costs nothing; these
// give the cost report a realistic order of magnitude.
const (
	DefaultPromptPer1K     = 0.0001
	DefaultCompletionPer1K = 0.0002
)

// Pricing is the per-1K-token price table for a model.
type Pricing struct {
	// PromptPer1K is the USD price per 1000 prompt tokens (PRICE_PROMPT_PER_1K).
	PromptPer1K float64
	// CompletionPer1K is the USD price per 1000 completion tokens (PRICE_COMPLETION_PER_1K).
	CompletionPer1K float64
}

// DefaultPricing returns the default price table.
func DefaultPricing() Pricing {
	return Pricing{PromptPer1K: DefaultPromptPer1K, CompletionPer1K: DefaultCompletionPer1K}
}

// Cost is the estimated USD cost of one generation.
type Cost struct {
	PromptCost     float64 `json:"prompt_cost"`
	CompletionCost float64 `json:"completion_cost"`
	TotalCost      float64 `json:"total_cost"`
}

// EstimateCost prices usage against p.
func EstimateCost(usage Usage, p Pricing) Cost {
	prompt := float64(usage.PromptTokens) / 1000 * p.PromptPer1K
	completion := float64(usage.CompletionTokens) / 1000 * p.CompletionPer1K
	return Cost{
		PromptCost:     prompt,
		CompletionCost: completion,
		TotalCost:      prompt + completion,
	}
}
