package domain

// Retrieval query bounds. Out-of-range inputs are corrected silently on
// the read path so an invalid request degrades instead of failing.
const (
	// DefaultSimilarityThreshold is applied when a requested threshold
	// falls outside [0,1].
	DefaultSimilarityThreshold = 0.7

	// DefaultMaxResults is applied when a requested result limit falls
	// outside [MinResults, MaxResults].
	DefaultMaxResults = 10

	// MinResults is the smallest accepted result limit.
	MinResults = 1

	// MaxResults is the largest accepted result limit.
	MaxResults = 100
)

// ClampThreshold corrects a similarity threshold into [0,1].
// Values outside the range fall back to DefaultSimilarityThreshold.
func ClampThreshold(threshold float64) float64 {
	if threshold < 0 || threshold > 1 {
		return DefaultSimilarityThreshold
	}
	return threshold
}

// ClampMaxResults corrects a result limit into [MinResults, MaxResults].
// Values outside the range fall back to DefaultMaxResults.
func ClampMaxResults(limit int) int {
	if limit < MinResults || limit > MaxResults {
		return DefaultMaxResults
	}
	return limit
}

// RetrievedFragment is one grounded fragment returned by a similarity
// query.
type RetrievedFragment struct {
	// ChunkText is the stored chunk content.
	ChunkText string

	// Similarity is the cosine similarity in [0,1], expressed as
	// 1 - cosine distance.
	Similarity float64

	// Metadata is the record metadata stored alongside the vector.
	Metadata map[string]any
}

// RetrievalResult is the ephemeral outcome of one retrieval operation.
// It is never persisted.
type RetrievalResult struct {
	// Fragments is the ranked list of grounded fragments, best first.
	Fragments []RetrievedFragment

	// QueryEmbedding is the vector the query text was embedded to.
	QueryEmbedding []float32

	// Threshold is the similarity threshold actually applied.
	Threshold float64

	// MaxResults is the result limit actually applied.
	MaxResults int
}

// IsEmpty returns true when nothing cleared the similarity bar.
// An empty result is a valid, reported state rather than an error.
func (r RetrievalResult) IsEmpty() bool {
	return len(r.Fragments) == 0
}
