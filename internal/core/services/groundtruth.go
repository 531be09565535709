package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tabletalk-cli/internal/logger"
	"github.com/custodia-labs/tabletalk-cli/internal/tabular"
)

// Ensure GroundTruthService implements the interface.
var _ driving.Statistician = (*GroundTruthService)(nil)

// GroundTruthService reconstructs a structured table from stored chunk
// text and computes descriptive statistics on it. It is the "real data"
// oracle the guardrail validates LLM claims against.
//
// Its sole input is the vector store: the type has no operation that
// accepts a file path, which is what makes a raw-file fallback
// unrepresentable rather than merely forbidden.
type GroundTruthService struct {
	store driven.VectorStore
}

// NewGroundTruthService creates a new ground-truth service.
func NewGroundTruthService(store driven.VectorStore) *GroundTruthService {
	return &GroundTruthService{store: store}
}

// recoveredRow is one deduplicated data row keyed by its absolute row
// number within the dataset.
type recoveredRow struct {
	number int
	raw    string
	fields []string
}

// Reconstruct rebuilds the table from stored chunk text, optionally
// filtered to one source. Rows appearing in overlapping chunks are
// deduplicated by (row number, content) identity.
func (s *GroundTruthService) Reconstruct(ctx context.Context, sourceID string) (domain.GroundTruthTable, error) {
	if s.store == nil {
		return domain.GroundTruthTable{}, domain.ErrVectorStoreUnavailable
	}

	records, err := s.store.Records(ctx, sourceID)
	if err != nil {
		return domain.GroundTruthTable{}, fmt.Errorf("fetching records: %w", err)
	}

	logger.Section("Ground Truth Reconstruction")
	logger.Debug("Source: %q, records: %d", sourceID, len(records))

	table := domain.GroundTruthTable{SourceID: sourceID}
	seen := make(map[string]bool)
	var rows []recoveredRow

	for _, record := range records {
		frag, ok := tabular.ParseFragment(record.ChunkText)
		if !ok {
			continue
		}

		if table.Columns == nil {
			table.Columns = frag.Columns
		}

		rowStart := metadataInt(record.Metadata, "row_start")

		for i, line := range frag.RowLines {
			number := rowStart + i
			key := fmt.Sprintf("%d|%s", number, line)
			if seen[key] {
				continue
			}
			seen[key] = true

			rows = append(rows, recoveredRow{
				number: number,
				raw:    line,
				fields: tabular.SplitRecord(line),
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].number != rows[j].number {
			return rows[i].number < rows[j].number
		}
		return rows[i].raw < rows[j].raw
	})

	table.RowCount = len(rows)
	table.Rows = make([][]string, len(rows))
	for i, row := range rows {
		table.Rows[i] = row.fields
	}

	table.Stats = s.computeStats(table.Columns, rows)

	logger.Debug("Reconstructed %d rows, %d columns", table.RowCount, len(table.Columns))
	return table, nil
}

// Statistics computes per-column statistics, optionally restricted to
// the named columns (matched case-insensitively).
func (s *GroundTruthService) Statistics(
	ctx context.Context, sourceID string, columns []string,
) (map[string]domain.ColumnStats, error) {
	table, err := s.Reconstruct(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		return table.Stats, nil
	}

	filtered := make(map[string]domain.ColumnStats, len(columns))
	for _, name := range columns {
		if stats, ok := table.Column(name); ok {
			filtered[stats.Name] = stats
		}
	}
	return filtered, nil
}

// computeStats infers each column's type and derives its statistics.
// Rows whose field count does not match the header are preserved in the
// table but excluded from per-column aggregation.
func (s *GroundTruthService) computeStats(columns []string, rows []recoveredRow) map[string]domain.ColumnStats {
	stats := make(map[string]domain.ColumnStats, len(columns))

	for colIdx, name := range columns {
		var values []string
		for _, row := range rows {
			if len(row.fields) != len(columns) {
				continue
			}
			values = append(values, row.fields[colIdx])
		}

		colType := tabular.InferColumnType(values)
		col := domain.ColumnStats{
			Name: name,
			Type: colType,
		}

		switch colType {
		case domain.ColumnNumeric, domain.ColumnTemporal:
			col = numericStats(col, values)
		default:
			col = categoricalStats(col, values)
		}

		stats[name] = col
	}

	return stats
}

// numericStats fills mean, median, mode, stdev, min and max.
func numericStats(col domain.ColumnStats, values []string) domain.ColumnStats {
	var numbers []float64
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		n, err := tabular.ParseNumber(v)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}

	col.Count = len(numbers)
	if len(numbers) == 0 {
		return col
	}

	sorted := make([]float64, len(numbers))
	copy(sorted, numbers)
	sort.Float64s(sorted)

	col.Min = sorted[0]
	col.Max = sorted[len(sorted)-1]
	col.Mean = mean(numbers)
	col.Median = median(sorted)
	col.Mode = mode(numbers)
	col.StdDev = stdDev(numbers, col.Mean)

	return col
}

// categoricalStats fills distinct-value frequencies.
func categoricalStats(col domain.ColumnStats, values []string) domain.ColumnStats {
	counts := make(map[string]int)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		counts[v]++
		col.Count++
	}
	col.DistinctValues = counts
	return col
}

func mean(numbers []float64) float64 {
	sum := 0.0
	for _, n := range numbers {
		sum += n
	}
	return sum / float64(len(numbers))
}

// median expects sorted input.
func median(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mode returns the most frequent value; ties go to the smallest.
func mode(numbers []float64) float64 {
	counts := make(map[float64]int, len(numbers))
	for _, n := range numbers {
		counts[n]++
	}

	best := numbers[0]
	bestCount := 0
	for n, count := range counts {
		if count > bestCount || (count == bestCount && n < best) {
			best = n
			bestCount = count
		}
	}
	return best
}

// stdDev is the population standard deviation.
func stdDev(numbers []float64, avg float64) float64 {
	if len(numbers) < 2 {
		return 0
	}
	sum := 0.0
	for _, n := range numbers {
		d := n - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(numbers)))
}

// metadataInt coerces a metadata value to int. JSON round trips turn
// ints into float64, so both shapes are handled.
func metadataInt(metadata map[string]any, key string) int {
	val, ok := metadata[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
