package driving

import (
	"context"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// Ingestor turns raw dataset text into stored, searchable vectors.
type Ingestor interface {
	// Ingest chunks, enriches, embeds and stores the raw text under the
	// given source. Re-ingesting the same source supersedes its prior
	// records. A mid-batch embedding failure returns
	// *domain.IngestionError with the stored prefix preserved.
	Ingest(ctx context.Context, raw, sourceID string, strategy domain.ChunkStrategy) (domain.IngestReport, error)
}
