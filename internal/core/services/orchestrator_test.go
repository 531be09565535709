package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

func newTestOrchestrator(llm *mockLLM, store *mockVectorStore) *Orchestrator {
	return NewOrchestrator(
		NewClassifier(domain.ClassifierSettings{}),
		NewRetriever(newMockEmbedder(4), store),
		NewGroundTruthService(store),
		NewLLMGateway([]LLMProvider{{Name: "mock", Service: llm}}),
		NewGuardrailValidator(domain.GuardrailSettings{}),
		domain.LLMSettings{},
	)
}

func TestAskEmptyQuery(t *testing.T) {
	o := newTestOrchestrator(&mockLLM{}, newMockVectorStore(4))

	_, err := o.Ask(context.Background(), "   ", "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAskDegradesWithoutData(t *testing.T) {
	llm := &mockLLM{}
	o := newTestOrchestrator(llm, newMockVectorStore(4))
	o.AttachDataset("s1", "txns")

	answer, err := o.Ask(context.Background(), "summarize the data", "s1")
	require.NoError(t, err)

	// The degraded turn answers without touching a model.
	assert.Contains(t, answer.Text, "No dataset is currently available")
	assert.Equal(t, AgentGeneral, answer.AgentUsed)
	assert.Equal(t, 1.0, answer.ConfidenceScore)
	assert.Empty(t, answer.LLMModel)
	assert.Zero(t, llm.calls)

	require.Len(t, o.History("s1"), 1)
}

func TestAskGeneralChat(t *testing.T) {
	llm := &mockLLM{responses: []string{"Hi! Load a dataset and ask away."}}
	o := newTestOrchestrator(llm, newMockVectorStore(4))

	answer, err := o.Ask(context.Background(), "hello, who are you?", "s1")
	require.NoError(t, err)

	assert.Equal(t, "Hi! Load a dataset and ask away.", answer.Text)
	assert.Equal(t, AgentGeneral, answer.AgentUsed)
	assert.Equal(t, 1.0, answer.ConfidenceScore)
	assert.Equal(t, "mock-llm", answer.LLMModel)

	// The next turn folds the exchange into its prompt.
	_, err = o.Ask(context.Background(), "thanks!", "s1")
	require.NoError(t, err)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "Recent conversation:")
	assert.Contains(t, llm.prompts[1], "User: hello, who are you?")
}

func TestAskStatistical(t *testing.T) {
	llm := &mockLLM{responses: []string{"The mean of amount is 35.0."}}
	store := overlappingStore()
	o := newTestOrchestrator(llm, store)
	o.AttachDataset("s1", "txns")

	answer, err := o.Ask(context.Background(), "what is the mean of the amount column?", "s1")
	require.NoError(t, err)

	assert.Equal(t, AgentStatistical, answer.AgentUsed)
	assert.Equal(t, "The mean of amount is 35.0.", answer.Text)
	assert.Equal(t, 1.0, answer.ConfidenceScore)
	assert.False(t, answer.LowConfidence)
	assert.Equal(t, 1, llm.calls)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Dataset statistics")
	assert.Contains(t, llm.prompts[0], "amount (numeric)")
}

func TestAskSemanticSearch(t *testing.T) {
	llm := &mockLLM{responses: []string{"Rows 3 and 5 look similar to known fraud."}}
	store := newMockVectorStore(4)
	store.fragments = []domain.RetrievedFragment{
		{ChunkText: "id,amount,category\n3,30,Fraud", Similarity: 0.91},
	}
	o := newTestOrchestrator(llm, store)
	o.AttachDataset("s1", "txns")

	answer, err := o.Ask(context.Background(), "Find transactions similar to fraud cases", "s1")
	require.NoError(t, err)

	assert.Equal(t, AgentRetrieval, answer.AgentUsed)
	assert.Equal(t, 1.0, answer.ConfidenceScore)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Relevant dataset fragments")
	assert.Contains(t, llm.prompts[0], "similarity 0.91")
}

func TestAskHybrid(t *testing.T) {
	llm := &mockLLM{responses: []string{"The average amount is 35."}}
	store := overlappingStore()
	store.fragments = []domain.RetrievedFragment{
		{ChunkText: "id,amount,category\n1,10,Fraud", Similarity: 0.88},
	}
	o := newTestOrchestrator(llm, store)
	o.AttachDataset("s1", "txns")

	answer, err := o.Ask(context.Background(), "show the average amount", "s1")
	require.NoError(t, err)

	assert.Equal(t, AgentHybrid, answer.AgentUsed)
	assert.False(t, answer.LowConfidence)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Dataset statistics")
	assert.Contains(t, llm.prompts[0], "Relevant dataset fragments")
}

func TestAskRetriesOnFailedValidation(t *testing.T) {
	llm := &mockLLM{responses: []string{
		"The mean of amount is 90 and the max of amount is 500.",
		"The mean of amount is 35 and the max of amount is 60.",
	}}
	store := overlappingStore()
	o := newTestOrchestrator(llm, store)
	o.AttachDataset("s1", "txns")

	answer, err := o.Ask(context.Background(), "what is the mean of the amount column?", "s1")
	require.NoError(t, err)

	assert.Equal(t, 2, llm.calls, "one generation plus one correction retry")
	assert.Equal(t, "The mean of amount is 35 and the max of amount is 60.", answer.Text)
	assert.Equal(t, 1.0, answer.ConfidenceScore)
	assert.False(t, answer.LowConfidence)

	// The retry prompt carries the correction on top of the original.
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "Dataset statistics")
	assert.Contains(t, llm.prompts[1], "do not match the dataset")
	assert.Contains(t, llm.prompts[1], "mean(amount) = 35")
}

func TestAskLowConfidenceAfterRetryBudget(t *testing.T) {
	// The model never corrects itself; two claim kinds stay wrong.
	llm := &mockLLM{responses: []string{"The mean of amount is 90 and the max of amount is 500."}}
	store := overlappingStore()
	o := newTestOrchestrator(llm, store)
	o.AttachDataset("s1", "txns")

	answer, err := o.Ask(context.Background(), "what is the mean of the amount column?", "s1")
	require.NoError(t, err, "an unvalidated answer is still returned, flagged")

	assert.Equal(t, 2, llm.calls)
	assert.True(t, answer.LowConfidence)
	assert.InDelta(t, 0.4, answer.ConfidenceScore, 0.001)
	assert.Contains(t, answer.Text, "mean of amount is 90")

	require.Len(t, o.History("s1"), 1, "the turn still completes")
}

func TestAskAllProvidersFailedIsFatal(t *testing.T) {
	llm := &mockLLM{err: errors.New("socket closed")}
	o := newTestOrchestrator(llm, newMockVectorStore(4))

	_, err := o.Ask(context.Background(), "hello there", "s1")

	var allFailed *domain.AllProvidersFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Empty(t, o.History("s1"), "failed turns leave no state behind")
}

func TestAskSessionsAreIsolated(t *testing.T) {
	llm := &mockLLM{}
	o := newTestOrchestrator(llm, newMockVectorStore(4))

	_, err := o.Ask(context.Background(), "hello", "s1")
	require.NoError(t, err)
	_, err = o.Ask(context.Background(), "hi", "s2")
	require.NoError(t, err)

	require.Len(t, o.History("s1"), 1)
	require.Len(t, o.History("s2"), 1)
	assert.Equal(t, "hello", o.History("s1")[0].Query)
	assert.Equal(t, "hi", o.History("s2")[0].Query)
}

func TestHistoryReturnsCopy(t *testing.T) {
	llm := &mockLLM{}
	o := newTestOrchestrator(llm, newMockVectorStore(4))

	_, err := o.Ask(context.Background(), "hello", "s1")
	require.NoError(t, err)

	history := o.History("s1")
	history[0].Query = "tampered"
	assert.Equal(t, "hello", o.History("s1")[0].Query)
}
