package driven

import "context"

// LLMService provides language model operations for grounded analysis.
//
// Implementations may include:
//   - Anthropic (Claude)
//   - OpenAI (GPT-4 family)
type LLMService interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request before committing to an analysis run.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// System is the system prompt, empty for none.
	System string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// TokenUsage reports cumulative token consumption and estimated cost.
// Adapters that track usage expose it through CostReporter.
type TokenUsage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	EstimatedUSD float64
}

// CostReporter is implemented by LLM adapters that track API spend.
type CostReporter interface {
	// Usage returns cumulative usage since the adapter was created.
	Usage() TokenUsage
}
