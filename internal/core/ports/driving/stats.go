package driving

import (
	"context"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// Statistician exposes ground-truth statistics computed from stored
// chunks. It deliberately has no operation that accepts a file path:
// the absence of that capability in the type is what enforces the
// stored-chunks-only rule.
type Statistician interface {
	// Reconstruct rebuilds the structured table from stored chunk text,
	// optionally filtered to one source.
	Reconstruct(ctx context.Context, sourceID string) (domain.GroundTruthTable, error)

	// Statistics computes per-column statistics, optionally restricted
	// to the named columns.
	Statistics(ctx context.Context, sourceID string, columns []string) (map[string]domain.ColumnStats, error)
}
