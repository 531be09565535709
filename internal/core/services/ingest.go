package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tabletalk-cli/internal/logger"
	"github.com/custodia-labs/tabletalk-cli/internal/postprocessors"
	"github.com/custodia-labs/tabletalk-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/tabletalk-cli/internal/postprocessors/enricher"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// Ingestion batch sizes.
const (
	// DefaultEmbedBatchSize bounds texts per embedding round trip.
	DefaultEmbedBatchSize = 30

	// DefaultUpsertBatchSize bounds records per vector store round trip.
	DefaultUpsertBatchSize = 50
)

// IngestService turns raw dataset text into stored vectors: chunk,
// enrich, embed in order-preserving batches, upsert.
type IngestService struct {
	embedder        driven.EmbeddingService
	store           driven.VectorStore
	chunking        domain.ChunkingSettings
	embedBatchSize  int
	upsertBatchSize int
	limiter         *rate.Limiter
}

// NewIngestService creates a new ingest service.
// A nil limiter disables embedding-rate throttling.
func NewIngestService(
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	chunking domain.ChunkingSettings,
	limiter *rate.Limiter,
) *IngestService {
	return &IngestService{
		embedder:        embedder,
		store:           store,
		chunking:        chunking,
		embedBatchSize:  DefaultEmbedBatchSize,
		upsertBatchSize: DefaultUpsertBatchSize,
		limiter:         limiter,
	}
}

// SetBatchSizes overrides the embedding and upsert batch sizes.
// Non-positive values keep the current setting.
func (s *IngestService) SetBatchSizes(embed, upsert int) {
	if embed > 0 {
		s.embedBatchSize = embed
	}
	if upsert > 0 {
		s.upsertBatchSize = upsert
	}
}

// Ingest chunks, enriches, embeds and stores raw under sourceID.
// Re-ingesting a source supersedes its prior records. On a mid-batch
// embedding failure the successfully stored prefix is kept and reported
// through *domain.IngestionError so the caller can resume.
func (s *IngestService) Ingest(
	ctx context.Context, raw, sourceID string, strategy domain.ChunkStrategy,
) (domain.IngestReport, error) {
	report := domain.IngestReport{SourceID: sourceID}

	if s.embedder == nil {
		return report, domain.ErrEmbeddingUnavailable
	}
	if s.store == nil {
		return report, domain.ErrVectorStoreUnavailable
	}
	if sourceID == "" {
		return report, fmt.Errorf("%w: source id is required", domain.ErrInvalidInput)
	}
	if !strategy.IsValid() {
		strategy = domain.StrategyTabular
	}

	logger.Section("Ingestion")
	logger.Debug("Source: %q, strategy: %s", sourceID, strategy)

	chunks, err := s.pipeline(strategy).Process(ctx, sourceID, raw)
	if err != nil {
		return report, fmt.Errorf("chunking: %w", err)
	}
	report.ChunksCreated = len(chunks)
	logger.Debug("Chunks created: %d", len(chunks))

	if len(chunks) == 0 {
		return report, nil
	}

	// Prior records for the source are superseded, not updated.
	if err := s.store.DeleteSource(ctx, sourceID); err != nil {
		return report, fmt.Errorf("superseding source %q: %w", sourceID, err)
	}

	for batchStart := 0; batchStart < len(chunks); batchStart += s.embedBatchSize {
		batchEnd := batchStart + s.embedBatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return report, s.ingestionError(sourceID, report.EmbeddingsStored, batchStart/s.embedBatchSize, err)
			}
		}

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			logger.Warn("Embedding batch %d failed: %v", batchStart/s.embedBatchSize, err)
			return report, s.ingestionError(sourceID, report.EmbeddingsStored, batchStart/s.embedBatchSize, err)
		}

		records, err := s.buildRecords(batch, vectors)
		if err != nil {
			return report, err
		}

		stored, err := s.upsert(ctx, records)
		report.EmbeddingsStored += stored
		if err != nil {
			return report, s.ingestionError(sourceID, report.EmbeddingsStored, batchStart/s.embedBatchSize, err)
		}
	}

	logger.Info("Ingested %q: %d chunks, %d embeddings", sourceID, report.ChunksCreated, report.EmbeddingsStored)
	return report, nil
}

// pipeline assembles the chunker (and optionally the enricher) for the
// requested strategy.
func (s *IngestService) pipeline(strategy domain.ChunkStrategy) driven.PostProcessorPipeline {
	chunkProc := chunker.New(
		chunker.WithStrategy(strategy),
		chunker.WithRowsPerChunk(s.chunking.RowsPerChunk),
		chunker.WithRowOverlap(s.chunking.RowOverlap),
		chunker.WithChunkSize(s.chunking.ChunkSize),
		chunker.WithChunkOverlap(s.chunking.ChunkOverlap),
	)

	p := postprocessors.NewPipeline(chunkProc)
	if s.chunking.Enrich && strategy == domain.StrategyTabular {
		p.Add(enricher.New())
	}
	return p
}

// buildRecords pairs chunks with their embeddings, verifying the
// dimension against the store before anything is written.
func (s *IngestService) buildRecords(chunks []domain.Chunk, vectors [][]float32) ([]domain.EmbeddingRecord, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	want := s.store.Dimensions()
	now := time.Now().UTC()

	records := make([]domain.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		if want > 0 && len(vectors[i]) != want {
			return nil, &domain.DimensionMismatchError{Want: want, Got: len(vectors[i])}
		}

		metadata := map[string]any{
			"source":     chunk.SourceID,
			"chunk_type": chunk.Strategy.String(),
			"position":   chunk.Index,
		}
		if !chunk.Span.IsZero() {
			metadata["row_start"] = chunk.Span.Start
			metadata["row_end"] = chunk.Span.End
		}

		records[i] = domain.EmbeddingRecord{
			ID:        uuid.New().String(),
			SourceID:  chunk.SourceID,
			ChunkText: chunk.Content,
			Embedding: vectors[i],
			Metadata:  metadata,
			CreatedAt: now,
		}
	}
	return records, nil
}

// upsert writes records in store-sized batches, returning how many were
// written even when a later batch fails.
func (s *IngestService) upsert(ctx context.Context, records []domain.EmbeddingRecord) (int, error) {
	stored := 0
	for start := 0; start < len(records); start += s.upsertBatchSize {
		end := start + s.upsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		n, err := s.store.Upsert(ctx, records[start:end])
		stored += n
		if err != nil {
			return stored, err
		}
	}
	return stored, nil
}

func (s *IngestService) ingestionError(sourceID string, embedded, batch int, err error) error {
	return &domain.IngestionError{
		SourceID:      sourceID,
		EmbeddedCount: embedded,
		FailedBatch:   batch,
		Err:           err,
	}
}
