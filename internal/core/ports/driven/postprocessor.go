package driven

import (
	"context"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// PostProcessor is one stage of the ingestion pipeline.
// Processors are chained: the chunker creates chunks from raw dataset
// text, later stages (e.g. the contextual enricher) transform them.
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes the raw dataset text and the chunks produced so
	// far. A chunk-creating processor receives nil chunks and returns
	// new ones; a transforming processor receives and returns chunks.
	Process(ctx context.Context, sourceID, raw string, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the raw dataset text through all processors in order
	// and returns the final chunks.
	Process(ctx context.Context, sourceID, raw string) ([]domain.Chunk, error)
}
