package domain

import "time"

// ChunkStrategy selects how raw dataset content is split into chunks.
type ChunkStrategy string

// Available chunking strategies.
const (
	// StrategyTabular splits delimited tabular text into row groups,
	// repeating the header line into every chunk.
	StrategyTabular ChunkStrategy = "tabular"

	// StrategySentence splits free text on sentence boundaries.
	StrategySentence ChunkStrategy = "sentence"

	// StrategyParagraph splits free text on blank-line boundaries.
	StrategyParagraph ChunkStrategy = "paragraph"

	// StrategyFixed splits on a fixed character budget with overlap.
	StrategyFixed ChunkStrategy = "fixed"
)

// IsValid returns true if the strategy is recognised.
func (s ChunkStrategy) IsValid() bool {
	switch s {
	case StrategyTabular, StrategySentence, StrategyParagraph, StrategyFixed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s ChunkStrategy) String() string {
	return string(s)
}

// RowSpan identifies the contiguous range of data rows a tabular chunk
// covers, counted from 1 and excluding the header line.
type RowSpan struct {
	// Start is the first data row in the chunk (1-based, inclusive).
	Start int

	// End is the last data row in the chunk (1-based, inclusive).
	End int
}

// IsZero returns true if the span is unset.
func (r RowSpan) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Chunk is a contiguous fragment of source content produced at ingestion
// time. Chunks are immutable once created; re-ingestion supersedes them
// under a fresh ingestion rather than updating in place.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// SourceID identifies the originating dataset.
	SourceID string

	// Index is the ordinal position within the dataset.
	Index int

	// Content is the text content of this chunk. For tabular chunks it
	// always begins with the original header line.
	Content string

	// Strategy records which chunking strategy produced this chunk.
	Strategy ChunkStrategy

	// Span is the data-row range for tabular chunks, zero otherwise.
	Span RowSpan

	// Header is the original column-name line for tabular chunks.
	Header string
}

// EmbeddingRecord is the persisted unit in the vector store: a chunk's
// text alongside its embedding and metadata. The vector store adapter
// exclusively owns persistence of records.
type EmbeddingRecord struct {
	// ID is the unique record identifier.
	ID string

	// SourceID identifies the originating dataset.
	SourceID string

	// ChunkText is the (possibly enriched) chunk content.
	ChunkText string

	// Embedding is the fixed-dimension vector. Its length must match the
	// dimension declared by the store or upsert fails hard.
	Embedding []float32

	// Metadata contains free-form key/value pairs (chunk strategy,
	// row span, ordinal position).
	Metadata map[string]any

	// CreatedAt is when the record was persisted.
	CreatedAt time.Time
}

// IngestReport summarises one ingestion call.
type IngestReport struct {
	// SourceID is the dataset the report covers.
	SourceID string

	// ChunksCreated is the number of chunks produced by the chunker.
	ChunksCreated int

	// EmbeddingsStored is the number of records written to the vector
	// store. On a mid-batch embedding failure this may be less than
	// ChunksCreated; see IngestionError for the resumable prefix.
	EmbeddingsStored int
}
