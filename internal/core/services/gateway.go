package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tabletalk-cli/internal/logger"
)

// DefaultGenerateTimeout bounds a single provider call.
const DefaultGenerateTimeout = 30 * time.Second

// transientRetries is how often one provider is retried with backoff
// before the gateway falls through to the next.
const transientRetries = 1

// LLMProvider is one entry in the gateway's ordered provider registry.
// The registry is an explicit value constructed once at wiring time;
// there is no ambient provider singleton.
type LLMProvider struct {
	// Name identifies the provider in preferences and attempt records.
	Name string

	// Service is the backend adapter.
	Service driven.LLMService
}

// GenerateConfig configures one gateway call.
type GenerateConfig struct {
	// Temperature controls sampling creativity.
	Temperature float64

	// MaxTokens caps generated tokens.
	MaxTokens int

	// Timeout bounds each provider call (default: 30s).
	Timeout time.Duration

	// ProviderPreference is the attempt order by provider name.
	// Configured providers not listed are appended in registry order.
	ProviderPreference []string
}

// GenerateResult is a successful gateway generation.
type GenerateResult struct {
	// Text is the generated answer.
	Text string

	// Provider is the provider that succeeded.
	Provider string

	// Model is the model that generated the text.
	Model string

	// Attempts records providers that were tried and failed before the
	// successful one.
	Attempts []domain.ProviderAttempt
}

// LLMGateway sends a composed prompt to the first provider in
// preference order that can serve it. It holds no state between calls.
type LLMGateway struct {
	providers []LLMProvider
}

// NewLLMGateway creates a gateway over the given ordered registry.
func NewLLMGateway(providers []LLMProvider) *LLMGateway {
	return &LLMGateway{providers: providers}
}

// Providers returns the registry size, for diagnostics.
func (g *LLMGateway) Providers() int {
	return len(g.providers)
}

// Generate attempts providers in preference order. Any provider error
// is logged and the next provider is tried; only when every provider
// fails does the call return *domain.AllProvidersFailedError.
func (g *LLMGateway) Generate(
	ctx context.Context, systemPrompt, userPrompt string, cfg GenerateConfig,
) (GenerateResult, error) {
	if len(g.providers) == 0 {
		return GenerateResult{}, domain.ErrLLMUnavailable
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}

	opts := driven.GenerateOptions{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	var attempts []domain.ProviderAttempt

	for _, provider := range g.ordered(cfg.ProviderPreference) {
		logger.Debug("LLM gateway: trying provider %s (%s)", provider.Name, provider.Service.ModelName())

		text, err := g.callProvider(ctx, provider, systemPrompt, userPrompt, opts, timeout)
		if err != nil {
			logger.Warn("LLM gateway: provider %s failed: %v", provider.Name, err)
			attempts = append(attempts, domain.ProviderAttempt{
				Provider: provider.Name,
				Model:    provider.Service.ModelName(),
				Err:      err,
			})
			continue
		}

		logger.Info("LLM gateway: answered by %s", provider.Name)
		return GenerateResult{
			Text:     text,
			Provider: provider.Name,
			Model:    provider.Service.ModelName(),
			Attempts: attempts,
		}, nil
	}

	return GenerateResult{}, &domain.AllProvidersFailedError{Attempts: attempts}
}

// callProvider runs one provider with a per-call timeout and a single
// backoff retry for transient failures.
func (g *LLMGateway) callProvider(
	ctx context.Context,
	provider LLMProvider,
	systemPrompt, userPrompt string,
	opts driven.GenerateOptions,
	timeout time.Duration,
) (string, error) {
	operation := func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return provider.Service.Generate(callCtx, systemPrompt, userPrompt, opts)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), transientRetries), ctx)

	return backoff.RetryWithData(operation, policy)
}

// ordered returns the registry reordered by preference: preferred names
// first, then everything else in registry order.
func (g *LLMGateway) ordered(preference []string) []LLMProvider {
	if len(preference) == 0 {
		return g.providers
	}

	byName := make(map[string]LLMProvider, len(g.providers))
	for _, p := range g.providers {
		byName[p.Name] = p
	}

	ordered := make([]LLMProvider, 0, len(g.providers))
	taken := make(map[string]bool, len(g.providers))

	for _, name := range preference {
		if p, ok := byName[name]; ok && !taken[name] {
			ordered = append(ordered, p)
			taken[name] = true
		}
	}
	for _, p := range g.providers {
		if !taken[p.Name] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
