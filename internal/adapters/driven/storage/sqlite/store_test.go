package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

func openStore(t *testing.T, dir string, dimensions int) *VectorStore {
	t.Helper()
	s, err := NewVectorStore(dir, dimensions)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id, sourceID string, embedding []float32) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{
		ID:        id,
		SourceID:  sourceID,
		ChunkText: "chunk " + id,
		Embedding: embedding,
		Metadata:  map[string]any{"source": sourceID, "row_start": 1},
		CreatedAt: time.Now().UTC(),
	}
}

func TestRoundTrip(t *testing.T) {
	s := openStore(t, t.TempDir(), 2)
	ctx := context.Background()

	n, err := s.Upsert(ctx, []domain.EmbeddingRecord{record("a", "txns", []float32{1, 0})})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := s.Records(ctx, "txns")
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "txns", got.SourceID)
	assert.Equal(t, "chunk a", got.ChunkText)
	assert.Equal(t, []float32{1, 0}, got.Embedding)
	assert.Equal(t, "txns", got.Metadata["source"])
	// Metadata ints come back as float64 after the JSON round trip.
	assert.Equal(t, float64(1), got.Metadata["row_start"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewVectorStore(dir, 2)
	require.NoError(t, err)
	_, err = first.Upsert(ctx, []domain.EmbeddingRecord{record("a", "txns", []float32{1, 0})})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openStore(t, dir, 2)
	records, err := second.Records(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestReopenWithDifferentDimensionFails(t *testing.T) {
	dir := t.TempDir()

	first, err := NewVectorStore(dir, 2)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = NewVectorStore(dir, 3)
	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Want)
	assert.Equal(t, 3, mismatch.Got)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	s := openStore(t, t.TempDir(), 2)

	_, err := s.Upsert(context.Background(), []domain.EmbeddingRecord{
		record("a", "txns", []float32{1, 0, 0}),
	})

	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)

	// The offending batch is rejected before anything is written.
	records, err := s.Records(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpsertReplacesByID(t *testing.T) {
	s := openStore(t, t.TempDir(), 2)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []domain.EmbeddingRecord{record("a", "txns", []float32{1, 0})})
	require.NoError(t, err)

	updated := record("a", "txns", []float32{0, 1})
	updated.ChunkText = "replaced"
	_, err = s.Upsert(ctx, []domain.EmbeddingRecord{updated})
	require.NoError(t, err)

	records, err := s.Records(ctx, "txns")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "replaced", records[0].ChunkText)
	assert.Equal(t, []float32{0, 1}, records[0].Embedding)
}

func TestQueryOrdering(t *testing.T) {
	s := openStore(t, t.TempDir(), 2)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []domain.EmbeddingRecord{
		record("exact", "txns", []float32{1, 0}),
		record("close", "txns", []float32{0.9, 0.1}),
		record("far", "txns", []float32{0, 1}),
	})
	require.NoError(t, err)

	fragments, err := s.Query(ctx, []float32{1, 0}, 0.8, 10)
	require.NoError(t, err)

	require.Len(t, fragments, 2)
	assert.Equal(t, "chunk exact", fragments[0].ChunkText)
	assert.Equal(t, "chunk close", fragments[1].ChunkText)
	assert.InDelta(t, 1.0, fragments[0].Similarity, 1e-6)
}

func TestQueryClampsAndLimits(t *testing.T) {
	s := openStore(t, t.TempDir(), 2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Upsert(ctx, []domain.EmbeddingRecord{record(id, "txns", []float32{1, 0})})
		require.NoError(t, err)
	}

	// Out-of-range threshold falls back to 0.7; limit 2 holds.
	fragments, err := s.Query(ctx, []float32{1, 0}, -3, 2)
	require.NoError(t, err)
	assert.Len(t, fragments, 2)
}

func TestDeleteSource(t *testing.T) {
	s := openStore(t, t.TempDir(), 2)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []domain.EmbeddingRecord{
		record("a", "txns", []float32{1, 0}),
		record("b", "other", []float32{0, 1}),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSource(ctx, "txns"))

	records, err := s.Records(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "other", records[0].SourceID)
}

func TestNewVectorStoreValidation(t *testing.T) {
	_, err := NewVectorStore(t.TempDir(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPathPointsIntoDataDir(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, 2)
	assert.Contains(t, s.Path(), dir)
	assert.Equal(t, 2, s.Dimensions())
}
