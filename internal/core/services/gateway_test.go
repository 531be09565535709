package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

func TestGatewayFallsThroughToNextProvider(t *testing.T) {
	broken := &mockLLM{model: "broken-model", err: errors.New("connection refused")}
	working := &mockLLM{model: "working-model", responses: []string{"the answer"}}

	gw := NewLLMGateway([]LLMProvider{
		{Name: "primary", Service: broken},
		{Name: "fallback", Service: working},
	})

	result, err := gw.Generate(context.Background(), "sys", "user", GenerateConfig{})
	require.NoError(t, err)

	assert.Equal(t, "the answer", result.Text)
	assert.Equal(t, "fallback", result.Provider)
	assert.Equal(t, "working-model", result.Model)

	// The failed provider shows up in the attempt record exactly once,
	// even though it was retried before falling through.
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, "primary", result.Attempts[0].Provider)
	assert.Equal(t, "broken-model", result.Attempts[0].Model)
	assert.Equal(t, 2, broken.calls, "one call plus one transient retry")
	assert.Equal(t, 1, working.calls)
}

func TestGatewayAllProvidersFail(t *testing.T) {
	gw := NewLLMGateway([]LLMProvider{
		{Name: "a", Service: &mockLLM{err: errors.New("down")}},
		{Name: "b", Service: &mockLLM{err: errors.New("also down")}},
	})

	_, err := gw.Generate(context.Background(), "", "hi", GenerateConfig{})

	var allFailed *domain.AllProvidersFailedError
	require.ErrorAs(t, err, &allFailed)
	require.Len(t, allFailed.Attempts, 2)
	assert.Equal(t, "a", allFailed.Attempts[0].Provider)
	assert.Equal(t, "b", allFailed.Attempts[1].Provider)
	assert.Contains(t, allFailed.Error(), "a, b")
}

func TestGatewayProviderPreference(t *testing.T) {
	first := &mockLLM{responses: []string{"from first"}}
	second := &mockLLM{responses: []string{"from second"}}

	gw := NewLLMGateway([]LLMProvider{
		{Name: "first", Service: first},
		{Name: "second", Service: second},
	})

	result, err := gw.Generate(context.Background(), "", "hi", GenerateConfig{
		ProviderPreference: []string{"second"},
	})
	require.NoError(t, err)

	assert.Equal(t, "from second", result.Text)
	assert.Equal(t, "second", result.Provider)
	assert.Zero(t, first.calls, "preferred provider succeeded, registry head never called")
}

func TestGatewayUnknownPreferenceIgnored(t *testing.T) {
	only := &mockLLM{responses: []string{"ok"}}
	gw := NewLLMGateway([]LLMProvider{{Name: "only", Service: only}})

	result, err := gw.Generate(context.Background(), "", "hi", GenerateConfig{
		ProviderPreference: []string{"ghost", "only", "only"},
	})
	require.NoError(t, err)
	assert.Equal(t, "only", result.Provider)
	assert.Equal(t, 1, only.calls)
}

func TestGatewayNoProviders(t *testing.T) {
	gw := NewLLMGateway(nil)

	_, err := gw.Generate(context.Background(), "", "hi", GenerateConfig{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Zero(t, gw.Providers())
}

func TestGatewayPassesPrompt(t *testing.T) {
	llm := &mockLLM{responses: []string{"ok"}}
	gw := NewLLMGateway([]LLMProvider{{Name: "p", Service: llm}})

	_, err := gw.Generate(context.Background(), "be brief", "what is the mean?", GenerateConfig{})
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Equal(t, "what is the mean?", llm.prompts[0])
}
