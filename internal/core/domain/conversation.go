package domain

import "time"

const unknownDescription = "Unknown"

// Intent is the classified purpose of a user query.
type Intent string

// Recognised intents.
const (
	// IntentStatisticalAnalysis asks for figures computed from the data.
	IntentStatisticalAnalysis Intent = "statistical_analysis"

	// IntentSemanticSearch asks to find relevant fragments of the data.
	IntentSemanticSearch Intent = "semantic_search"

	// IntentDataLoading asks about loading or replacing a dataset.
	IntentDataLoading Intent = "data_loading"

	// IntentHybrid combines statistical and semantic needs.
	IntentHybrid Intent = "hybrid"

	// IntentGeneralChat is conversation not grounded in the data.
	IntentGeneralChat Intent = "general_chat"

	// IntentUnknown means no intent scored at all.
	IntentUnknown Intent = "unknown"
)

// IsValid returns true if the intent is recognised.
func (i Intent) IsValid() bool {
	switch i {
	case IntentStatisticalAnalysis, IntentSemanticSearch, IntentDataLoading,
		IntentHybrid, IntentGeneralChat, IntentUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (i Intent) String() string {
	return string(i)
}

// Description returns a human-readable description of the intent.
func (i Intent) Description() string {
	switch i {
	case IntentStatisticalAnalysis:
		return "Statistical analysis (figures from the data)"
	case IntentSemanticSearch:
		return "Semantic search (find relevant fragments)"
	case IntentDataLoading:
		return "Data loading"
	case IntentHybrid:
		return "Hybrid (statistics + search)"
	case IntentGeneralChat:
		return "General chat"
	case IntentUnknown:
		return "Unknown intent"
	default:
		return unknownDescription
	}
}

// NeedsData returns true if answering this intent requires a loaded
// dataset.
func (i Intent) NeedsData() bool {
	return i == IntentStatisticalAnalysis || i == IntentSemanticSearch || i == IntentHybrid
}

// Turn is one completed question/answer exchange within a session.
type Turn struct {
	// Query is the raw user query.
	Query string

	// Intent is the classified primary intent.
	Intent Intent

	// Response is the final answer text returned to the user.
	Response string

	// Timestamp is when the turn completed.
	Timestamp time.Time
}

// ConversationState is the per-session state owned and mutated only by
// the orchestrator. Turns within one session are strictly sequential.
type ConversationState struct {
	// SessionID identifies the session.
	SessionID string

	// Turns is the ordered turn history.
	Turns []Turn

	// DatasetID is the currently loaded dataset, empty if none.
	DatasetID string

	// CorrectionsApplied counts guardrail corrections accumulated over
	// the session.
	CorrectionsApplied int
}

// Answer is the final response of one orchestrated turn.
type Answer struct {
	// Text is the answer presented to the user.
	Text string

	// ConfidenceScore is the guardrail confidence in [0,1]. Answers
	// that exhausted the retry budget carry their (low) score so they
	// are never presented with false certainty.
	ConfidenceScore float64

	// AgentUsed names the handler that produced the answer:
	// "statistical", "retrieval", "hybrid" or "general".
	AgentUsed string

	// LLMModel is the model that generated the text, empty when the
	// answer was produced without a language model.
	LLMModel string

	// LowConfidence marks an answer that failed validation after the
	// retry budget was exhausted.
	LowConfidence bool
}
