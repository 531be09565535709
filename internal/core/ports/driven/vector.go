package driven

import (
	"context"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// VectorStore persists (vector, chunk text, metadata) triples and
// answers threshold-limited nearest-neighbour queries. It is the only
// mutable shared resource in the pipeline; readers must tolerate seeing
// a partially-ingested dataset.
//
// Similarity is cosine similarity expressed as 1 - cosine distance,
// sorted descending, ties broken by most recent CreatedAt first.
type VectorStore interface {
	// Upsert persists records in batches and returns how many were
	// written. A record whose embedding dimension does not match the
	// store's declared dimension fails the call with
	// *domain.DimensionMismatchError.
	Upsert(ctx context.Context, records []domain.EmbeddingRecord) (int, error)

	// Query returns stored fragments whose similarity to the vector
	// clears the threshold, at most maxResults of them. Out-of-range
	// threshold and maxResults are corrected silently via the domain
	// clamp helpers; an invalid read request degrades, it does not fail.
	Query(ctx context.Context, vector []float32, threshold float64, maxResults int) ([]domain.RetrievedFragment, error)

	// Records returns all stored records, optionally filtered by
	// source. Used for ground-truth reconstruction.
	Records(ctx context.Context, sourceID string) ([]domain.EmbeddingRecord, error)

	// DeleteSource removes every record for the source. Re-ingestion
	// supersedes rather than updates.
	DeleteSource(ctx context.Context, sourceID string) error

	// Dimensions returns the vector dimension the store was declared
	// with.
	Dimensions() int

	// Close releases resources.
	Close() error
}
