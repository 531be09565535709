// Package memory provides an in-memory vector store.
// It is used by tests and as a zero-setup backend; contents do not
// survive the process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/storage/similarity"
	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore keeps embedding records in process memory and answers
// queries by brute-force cosine similarity.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	records    []domain.EmbeddingRecord
}

// NewVectorStore creates a store declared for the given dimension.
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{dimensions: dimensions}
}

// Upsert stores records, replacing any record with the same ID.
func (s *VectorStore) Upsert(_ context.Context, records []domain.EmbeddingRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	for _, record := range records {
		if s.dimensions > 0 && len(record.Embedding) != s.dimensions {
			return stored, &domain.DimensionMismatchError{Want: s.dimensions, Got: len(record.Embedding)}
		}

		replaced := false
		for i := range s.records {
			if s.records[i].ID == record.ID {
				s.records[i] = record
				replaced = true
				break
			}
		}
		if !replaced {
			s.records = append(s.records, record)
		}
		stored++
	}
	return stored, nil
}

// Query returns fragments whose cosine similarity clears the threshold,
// best first, ties broken by most recent CreatedAt. Out-of-range inputs
// are corrected silently.
func (s *VectorStore) Query(
	_ context.Context, vector []float32, threshold float64, maxResults int,
) ([]domain.RetrievedFragment, error) {
	threshold = domain.ClampThreshold(threshold)
	maxResults = domain.ClampMaxResults(maxResults)

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		record     domain.EmbeddingRecord
		similarity float64
	}

	var hits []scored
	for _, record := range s.records {
		sim := similarity.Cosine(vector, record.Embedding)
		if sim >= threshold {
			hits = append(hits, scored{record: record, similarity: sim})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].similarity != hits[j].similarity {
			return hits[i].similarity > hits[j].similarity
		}
		return hits[i].record.CreatedAt.After(hits[j].record.CreatedAt)
	})

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	fragments := make([]domain.RetrievedFragment, len(hits))
	for i, hit := range hits {
		fragments[i] = domain.RetrievedFragment{
			ChunkText:  hit.record.ChunkText,
			Similarity: hit.similarity,
			Metadata:   hit.record.Metadata,
		}
	}
	return fragments, nil
}

// Records returns stored records, optionally filtered by source.
func (s *VectorStore) Records(_ context.Context, sourceID string) ([]domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.EmbeddingRecord
	for _, record := range s.records {
		if sourceID != "" && record.SourceID != sourceID {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteSource removes every record for the source.
func (s *VectorStore) DeleteSource(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, record := range s.records {
		if record.SourceID != sourceID {
			kept = append(kept, record)
		}
	}
	s.records = kept
	return nil
}

// Dimensions returns the declared vector dimension.
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}
