package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tabletalk-cli/internal/logger"
)

// Retriever composes the embedding gateway and the vector store into a
// single "query string in, ranked grounded fragments out" operation.
// It is stateless.
type Retriever struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
}

// NewRetriever creates a new retriever.
func NewRetriever(embedder driven.EmbeddingService, store driven.VectorStore) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
	}
}

// Retrieve embeds the query and returns fragments clearing the
// similarity threshold. An empty result is a valid "no relevant
// context" signal, not an error. Out-of-range threshold and maxResults
// are corrected silently.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, threshold float64, maxResults int,
) (domain.RetrievalResult, error) {
	if r.embedder == nil {
		return domain.RetrievalResult{}, domain.ErrEmbeddingUnavailable
	}
	if r.store == nil {
		return domain.RetrievalResult{}, domain.ErrVectorStoreUnavailable
	}

	threshold = domain.ClampThreshold(threshold)
	maxResults = domain.ClampMaxResults(maxResults)

	logger.Section("Retrieval")
	logger.Debug("Query: %q, threshold: %.2f, limit: %d", query, threshold, maxResults)

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("embedding query: %w", err)
	}

	fragments, err := r.store.Query(ctx, embedding, threshold, maxResults)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("vector query: %w", err)
	}

	// Defense in depth: the store already filters, but never trust a
	// backend to honour the threshold exactly.
	filtered := fragments[:0]
	for _, frag := range fragments {
		if frag.Similarity >= threshold {
			filtered = append(filtered, frag)
		}
	}

	logger.Debug("Fragments above threshold: %d", len(filtered))

	return domain.RetrievalResult{
		Fragments:      filtered,
		QueryEmbedding: embedding,
		Threshold:      threshold,
		MaxResults:     maxResults,
	}, nil
}
