// Package enricher prepends a structural summary to tabular chunks so a
// lone fragment stays self-describing after retrieval.
package enricher

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/tabular"
)

// Processor is the contextual enrichment stage of the ingestion
// pipeline. Enrichment is strictly additive: the original chunk content
// is preserved verbatim below the marker, because ground-truth
// reconstruction parses enriched content to recover the rows.
//
// The summary is built purely from lexical inspection of the header and
// a one-row sample. It never hardcodes a dataset-specific column name.
type Processor struct{}

// New creates a new enricher processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "enricher"
}

// Process enriches tabular chunks in place. Non-tabular chunks pass
// through untouched.
func (p *Processor) Process(_ context.Context, _, _ string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i, chunk := range chunks {
		if chunk.Strategy != domain.StrategyTabular || chunk.Header == "" {
			continue
		}
		chunks[i] = Enrich(chunk)
	}
	return chunks, nil
}

// Enrich returns a copy of the chunk with a structural summary
// prepended to its content.
func Enrich(chunk domain.Chunk) domain.Chunk {
	summary := buildSummary(chunk)

	enriched := chunk
	enriched.Content = summary + "\n\n" + tabular.EnrichmentMarker + "\n" + chunk.Content
	return enriched
}

// buildSummary describes the chunk's columns, their lexical roles and
// its row span, plus one sample row.
func buildSummary(chunk domain.Chunk) string {
	columns := tabular.SplitRecord(chunk.Header)

	var roles []string
	for _, col := range columns {
		roles = append(roles, fmt.Sprintf("%s (%s)", col, tabular.ClassifyColumn(col)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tabular fragment of dataset %q with %d columns: %s.",
		chunk.SourceID, len(columns), strings.Join(roles, ", "))

	if !chunk.Span.IsZero() {
		fmt.Fprintf(&b, " Covers rows %d to %d.", chunk.Span.Start, chunk.Span.End)
	}

	if sample := sampleRow(chunk); sample != "" {
		fmt.Fprintf(&b, " Sample row: %s", sample)
	}

	return b.String()
}

// sampleRow returns the first data line of the chunk.
func sampleRow(chunk domain.Chunk) string {
	lines := strings.Split(chunk.Content, "\n")
	if len(lines) < 2 {
		return ""
	}
	return strings.TrimSpace(lines[1])
}
