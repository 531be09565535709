package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Ingestion and retrieval are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store is not
	// configured.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrLLMUnavailable indicates no LLM provider is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrSessionBusy indicates a turn is already in flight for the
	// session. Turns within one session are strictly sequential.
	ErrSessionBusy = errors.New("session busy")
)

// IngestionError reports a failure partway through ingestion. The
// successfully embedded prefix is preserved so a caller may resume from
// the failure point rather than re-embedding everything.
type IngestionError struct {
	// SourceID is the dataset being ingested.
	SourceID string

	// EmbeddedCount is the number of chunks embedded and stored before
	// the failure.
	EmbeddedCount int

	// FailedBatch is the zero-based index of the batch that failed.
	FailedBatch int

	// Err is the underlying provider or store error.
	Err error
}

// Error implements the error interface.
func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion of %q failed at batch %d after %d embeddings: %v",
		e.SourceID, e.FailedBatch, e.EmbeddedCount, e.Err)
}

// Unwrap returns the underlying error.
func (e *IngestionError) Unwrap() error {
	return e.Err
}

// DimensionMismatchError reports an embedding whose dimension does not
// match the dimension declared by the vector store. This is fatal:
// vectors are never silently truncated or padded.
type DimensionMismatchError struct {
	// Want is the dimension the store was configured with.
	Want int

	// Got is the dimension of the offending vector.
	Got int
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension %d does not match store dimension %d", e.Got, e.Want)
}

// ProviderAttempt records one failed LLM provider attempt.
type ProviderAttempt struct {
	// Provider is the provider name.
	Provider string

	// Model is the model the provider was configured with.
	Model string

	// Err is why the attempt failed.
	Err error
}

// AllProvidersFailedError reports that every configured LLM provider
// failed for a generation call. It is fatal for the current turn and is
// surfaced verbatim to the caller.
type AllProvidersFailedError struct {
	// Attempts lists each provider tried, in order.
	Attempts []ProviderAttempt
}

// Error implements the error interface.
func (e *AllProvidersFailedError) Error() string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Provider
	}
	return fmt.Sprintf("all LLM providers failed: %s", strings.Join(names, ", "))
}
