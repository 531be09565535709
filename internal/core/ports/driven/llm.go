// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService is one language model backend. The gateway composes
// several of these into an ordered fallback chain; a single provider
// holds no state between calls.
//
// Implementations may include:
//   - Ollama (local models)
//   - OpenAI (GPT-4o and friends)
//   - Anthropic (Claude)
type LLMService interface {
	// Generate produces a completion for a (system prompt, user prompt)
	// pair. An empty system prompt is allowed.
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
