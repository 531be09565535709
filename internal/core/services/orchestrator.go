package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tabletalk-cli/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.Assistant = (*Orchestrator)(nil)

// Agent names reported in answers.
const (
	AgentStatistical = "statistical"
	AgentRetrieval   = "retrieval"
	AgentHybrid      = "hybrid"
	AgentGeneral     = "general"
)

// turnState is one phase of the per-turn state machine.
type turnState string

const (
	stateIdle        turnState = "idle"
	stateClassifying turnState = "classifying"
	stateDispatching turnState = "dispatching"
	stateValidating  turnState = "validating"
	stateRetrying    turnState = "retrying"
	stateResponding  turnState = "responding"
)

// recentTurns is how many prior exchanges are folded into the
// conversational context of a prompt.
const recentTurns = 3

// System prompts per agent.
const (
	systemStatistical = "You are a data analyst. Answer the question using only the dataset statistics provided in the context. State figures exactly as given; do not invent numbers."

	systemRetrieval = "You are a data assistant. Answer the question using only the dataset fragments provided in the context. If the fragments do not contain the answer, say so."

	systemGeneral = "You are a helpful assistant for exploring tabular datasets. Answer conversationally. If the user asks about data and none is loaded, explain how to ingest a dataset first."
)

// noDataAnswer is returned when a data-grounded intent finds no data.
// It degrades the turn to a general-style response instead of failing.
const noDataAnswer = "No dataset is currently available to answer that. " +
	"Load one first (for example: tabletalk ingest data.csv), then ask again."

// session serialises turns and holds conversation state. No two turns
// for the same session are ever in flight concurrently.
type session struct {
	mu    sync.Mutex
	state domain.ConversationState
}

// Orchestrator owns conversation state and runs the per-turn state
// machine: classify, dispatch to specialist handlers, generate,
// validate, retry once on low confidence, respond.
type Orchestrator struct {
	classifier  *Classifier
	retriever   *Retriever
	groundTruth *GroundTruthService
	gateway     *LLMGateway
	guardrail   *GuardrailValidator
	llmSettings domain.LLMSettings

	mu       sync.Mutex
	sessions map[string]*session
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(
	classifier *Classifier,
	retriever *Retriever,
	groundTruth *GroundTruthService,
	gateway *LLMGateway,
	guardrail *GuardrailValidator,
	llmSettings domain.LLMSettings,
) *Orchestrator {
	return &Orchestrator{
		classifier:  classifier,
		retriever:   retriever,
		groundTruth: groundTruth,
		gateway:     gateway,
		guardrail:   guardrail,
		llmSettings: llmSettings,
		sessions:    make(map[string]*session),
	}
}

// AttachDataset marks a dataset as loaded for the session, biasing
// classification towards data intents.
func (o *Orchestrator) AttachDataset(sessionID, sourceID string) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DatasetID = sourceID
}

// History returns a copy of the session's turn history.
func (o *Orchestrator) History(sessionID string) []domain.Turn {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]domain.Turn, len(s.state.Turns))
	copy(history, s.state.Turns)
	return history
}

// Ask runs one full turn. Recoverable data failures degrade to a
// general answer; *domain.AllProvidersFailedError is surfaced verbatim.
// Conversation state is only written once the turn succeeds, so a
// cancelled turn leaves no partial writes.
func (o *Orchestrator) Ask(ctx context.Context, query, sessionID string) (domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Section("Turn")
	o.transition(stateIdle, stateClassifying)

	classification := o.classifier.Classify(query, QueryContext{
		DatasetLoaded: s.state.DatasetID != "",
		LastIntent:    lastIntent(s.state),
	})
	logger.Info("Intent: %s", classification.Primary)

	o.transition(stateClassifying, stateDispatching)

	dispatch, err := o.dispatch(ctx, classification.Primary, query, s.state)
	if err != nil {
		return domain.Answer{}, err
	}

	answer, err := o.generateAndValidate(ctx, query, dispatch, &s.state)
	if err != nil {
		return domain.Answer{}, err
	}

	o.transition(stateResponding, stateIdle)

	s.state.Turns = append(s.state.Turns, domain.Turn{
		Query:     query,
		Intent:    classification.Primary,
		Response:  answer.Text,
		Timestamp: time.Now().UTC(),
	})

	return answer, nil
}

// dispatchResult carries what the specialist handlers gathered for the
// LLM call.
type dispatchResult struct {
	agent        string
	systemPrompt string
	context      string
	truth        domain.GroundTruthTable
	degraded     bool
}

// dispatch routes the query to the ground-truth calculator, the
// retriever, both, or neither, and assembles the prompt context.
// A failure in the data path is not fatal: it degrades to a general
// no-data answer.
func (o *Orchestrator) dispatch(
	ctx context.Context, intent domain.Intent, query string, state domain.ConversationState,
) (dispatchResult, error) {
	switch intent {
	case domain.IntentStatisticalAnalysis:
		truth, err := o.groundTruth.Reconstruct(ctx, state.DatasetID)
		if err != nil || truth.IsEmpty() {
			return o.degrade(err), nil
		}
		return dispatchResult{
			agent:        AgentStatistical,
			systemPrompt: systemStatistical,
			context:      renderStats(truth),
			truth:        truth,
		}, nil

	case domain.IntentSemanticSearch:
		result, err := o.retriever.Retrieve(ctx, query, domain.DefaultSimilarityThreshold, domain.DefaultMaxResults)
		if err != nil || result.IsEmpty() {
			return o.degrade(err), nil
		}
		return dispatchResult{
			agent:        AgentRetrieval,
			systemPrompt: systemRetrieval,
			context:      renderFragments(result),
		}, nil

	case domain.IntentHybrid:
		truth, truthErr := o.groundTruth.Reconstruct(ctx, state.DatasetID)
		result, retrErr := o.retriever.Retrieve(ctx, query, domain.DefaultSimilarityThreshold, domain.DefaultMaxResults)

		if (truthErr != nil || truth.IsEmpty()) && (retrErr != nil || result.IsEmpty()) {
			return o.degrade(truthErr), nil
		}

		var parts []string
		if truthErr == nil && !truth.IsEmpty() {
			parts = append(parts, renderStats(truth))
		}
		if retrErr == nil && !result.IsEmpty() {
			parts = append(parts, renderFragments(result))
		}
		return dispatchResult{
			agent:        AgentHybrid,
			systemPrompt: systemStatistical,
			context:      strings.Join(parts, "\n\n"),
			truth:        truth,
		}, nil

	default:
		// DATA_LOADING, GENERAL_CHAT and UNKNOWN all answer from
		// conversational context alone.
		return dispatchResult{
			agent:        AgentGeneral,
			systemPrompt: systemGeneral,
			context:      renderHistory(state),
		}, nil
	}
}

// degrade produces the no-data dispatch. The data-path error, if any,
// is logged but deliberately not propagated.
func (o *Orchestrator) degrade(err error) dispatchResult {
	if err != nil {
		logger.Warn("Dispatch data path failed, degrading: %v", err)
	}
	return dispatchResult{agent: AgentGeneral, degraded: true}
}

// generateAndValidate runs the LLM call and the guardrail loop:
// validate, retry once with a correction prompt, then respond either
// way, annotating low confidence when the budget is exhausted.
func (o *Orchestrator) generateAndValidate(
	ctx context.Context, query string, dispatch dispatchResult, state *domain.ConversationState,
) (domain.Answer, error) {
	// Degraded turns answer without a model: there is nothing to ground
	// a generation on, and the explanation must not be hallucinated.
	if dispatch.degraded {
		return domain.Answer{
			Text:            noDataAnswer,
			ConfidenceScore: 1.0,
			AgentUsed:       AgentGeneral,
		}, nil
	}

	userPrompt := query
	if dispatch.context != "" {
		userPrompt = fmt.Sprintf("Context:\n%s\n\nQuestion: %s", dispatch.context, query)
	}

	cfg := GenerateConfig{
		Temperature:        o.llmSettings.Temperature,
		MaxTokens:          o.llmSettings.MaxTokens,
		Timeout:            time.Duration(o.llmSettings.TimeoutSeconds) * time.Second,
		ProviderPreference: o.llmSettings.Preference,
	}

	generated, err := o.gateway.Generate(ctx, dispatch.systemPrompt, userPrompt, cfg)
	if err != nil {
		// AllProvidersFailedError is fatal for the turn.
		return domain.Answer{}, err
	}

	answer := domain.Answer{
		Text:            generated.Text,
		ConfidenceScore: 1.0,
		AgentUsed:       dispatch.agent,
		LLMModel:        generated.Model,
	}

	// Only statistically grounded answers can be validated.
	if dispatch.truth.IsEmpty() {
		o.transition(stateDispatching, stateResponding)
		return answer, nil
	}

	o.transition(stateDispatching, stateValidating)

	retries := o.guardrail.settings.MaxRetries
	validation := o.guardrail.Validate(answer.Text, dispatch.truth)

	for !validation.IsValid && retries > 0 {
		retries--
		o.transition(stateValidating, stateRetrying)
		logger.Info("Guardrail rejected answer (confidence %.2f), retrying", validation.ConfidenceScore)

		correction := o.guardrail.CorrectionPrompt(validation)
		retryPrompt := userPrompt + "\n\n" + correction

		generated, err = o.gateway.Generate(ctx, dispatch.systemPrompt, retryPrompt, cfg)
		if err != nil {
			return domain.Answer{}, err
		}

		answer.Text = generated.Text
		answer.LLMModel = generated.Model
		state.CorrectionsApplied += len(validation.CorrectedValues)

		o.transition(stateRetrying, stateValidating)
		validation = o.guardrail.Validate(answer.Text, dispatch.truth)
	}

	answer.ConfidenceScore = validation.ConfidenceScore
	if !validation.IsValid {
		// Retry budget exhausted: respond anyway, but never with false
		// certainty.
		answer.LowConfidence = true
		logger.Warn("Responding with low confidence (%.2f) after retry budget exhausted",
			validation.ConfidenceScore)
	}

	o.transition(stateValidating, stateResponding)
	return answer, nil
}

// session returns (or creates) the session record.
func (o *Orchestrator) session(sessionID string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[sessionID]
	if !ok {
		s = &session{state: domain.ConversationState{SessionID: sessionID}}
		o.sessions[sessionID] = s
	}
	return s
}

func (o *Orchestrator) transition(from, to turnState) {
	logger.Debug("State: %s -> %s", from, to)
}

func lastIntent(state domain.ConversationState) domain.Intent {
	if len(state.Turns) == 0 {
		return domain.IntentUnknown
	}
	return state.Turns[len(state.Turns)-1].Intent
}

// renderStats flattens the ground-truth table into prompt context.
func renderStats(truth domain.GroundTruthTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset statistics (%d rows, %d columns):\n", truth.RowCount, len(truth.Columns))

	for _, name := range truth.Columns {
		stats, ok := truth.Stats[name]
		if !ok {
			continue
		}
		switch stats.Type {
		case domain.ColumnNumeric:
			fmt.Fprintf(&b, "- %s (numeric): count=%d mean=%.4f median=%.4f mode=%.4f std=%.4f min=%.4f max=%.4f\n",
				name, stats.Count, stats.Mean, stats.Median, stats.Mode, stats.StdDev, stats.Min, stats.Max)
		case domain.ColumnTemporal:
			fmt.Fprintf(&b, "- %s (temporal): count=%d min=%.0f max=%.0f\n",
				name, stats.Count, stats.Min, stats.Max)
		default:
			fmt.Fprintf(&b, "- %s (categorical): %s\n", name, renderFrequencies(stats.DistinctValues))
		}
	}
	return b.String()
}

// renderFrequencies renders categorical counts deterministically,
// most frequent first.
func renderFrequencies(counts map[string]int) string {
	type pair struct {
		value string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for v, c := range counts {
		pairs = append(pairs, pair{v, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].value < pairs[j].value
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%d", p.value, p.count)
	}
	return strings.Join(parts, ", ")
}

// renderFragments flattens retrieved fragments into prompt context.
func renderFragments(result domain.RetrievalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Relevant dataset fragments (%d):\n", len(result.Fragments))
	for i, frag := range result.Fragments {
		fmt.Fprintf(&b, "[%d] (similarity %.2f)\n%s\n", i+1, frag.Similarity, frag.ChunkText)
	}
	return b.String()
}

// renderHistory flattens recent turns into conversational context.
func renderHistory(state domain.ConversationState) string {
	if len(state.Turns) == 0 {
		return ""
	}

	start := len(state.Turns) - recentTurns
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, turn := range state.Turns[start:] {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.Query, turn.Response)
	}
	return b.String()
}
