// Package chunker splits raw dataset content into overlapping chunks.
package chunker

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// Default chunking parameters.
const (
	// DefaultRowsPerChunk is the tabular chunk size in data rows.
	DefaultRowsPerChunk = 20

	// DefaultRowOverlap is the tabular overlap in data rows.
	DefaultRowOverlap = 4

	// DefaultChunkSize is the character budget for text strategies.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the character overlap for the fixed strategy.
	DefaultChunkOverlap = 200

	// DefaultSentencesPerChunk groups sentences for the sentence strategy.
	DefaultSentencesPerChunk = 5

	// DefaultSentenceOverlap is the sentence overlap between chunks.
	DefaultSentenceOverlap = 1
)

// sentenceSplitter matches individual sentences for the sentence strategy.
var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Processor splits dataset content into chunks using a configured
// strategy. It implements the PostProcessor interface and is the first
// stage of the ingestion pipeline.
type Processor struct {
	strategy          domain.ChunkStrategy
	rowsPerChunk      int
	rowOverlap        int
	chunkSize         int
	chunkOverlap      int
	sentencesPerChunk int
	sentenceOverlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithStrategy selects the chunking strategy.
func WithStrategy(s domain.ChunkStrategy) Option {
	return func(p *Processor) {
		if s.IsValid() {
			p.strategy = s
		}
	}
}

// WithRowsPerChunk sets the tabular chunk size in data rows.
func WithRowsPerChunk(rows int) Option {
	return func(p *Processor) {
		if rows > 0 {
			p.rowsPerChunk = rows
		}
	}
}

// WithRowOverlap sets the tabular overlap in data rows.
func WithRowOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.rowOverlap = overlap
		}
	}
}

// WithChunkSize sets the character budget for text strategies.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the character overlap for the fixed strategy.
func WithChunkOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.chunkOverlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		strategy:          domain.StrategyTabular,
		rowsPerChunk:      DefaultRowsPerChunk,
		rowOverlap:        DefaultRowOverlap,
		chunkSize:         DefaultChunkSize,
		chunkOverlap:      DefaultChunkOverlap,
		sentencesPerChunk: DefaultSentencesPerChunk,
		sentenceOverlap:   DefaultSentenceOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlaps must leave a positive stride
	if p.rowOverlap >= p.rowsPerChunk {
		p.rowOverlap = p.rowsPerChunk / 4
	}
	if p.chunkOverlap >= p.chunkSize {
		p.chunkOverlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the raw dataset text into chunks.
// Input chunks are ignored; this processor creates new chunks.
// Empty input yields no chunks; input shorter than one chunk yields
// exactly one chunk containing all of it.
func (p *Processor) Process(_ context.Context, sourceID, raw string, _ []domain.Chunk) ([]domain.Chunk, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	switch p.strategy {
	case domain.StrategyTabular:
		return p.chunkTabular(sourceID, raw), nil
	case domain.StrategySentence:
		return p.chunkSentences(sourceID, raw), nil
	case domain.StrategyParagraph:
		return p.chunkParagraphs(sourceID, raw), nil
	default:
		return p.chunkFixed(sourceID, raw), nil
	}
}

// chunkTabular groups data rows with overlap, repeating the header line
// verbatim into every chunk. Lines that do not match the header's
// column count are still included: downstream reconstruction must be
// able to recover every row.
func (p *Processor) chunkTabular(sourceID, raw string) []domain.Chunk {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")

	header := strings.TrimRight(lines[0], "\r")
	var rows []string
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}

	if len(rows) == 0 {
		return []domain.Chunk{p.newChunk(sourceID, 0, header, header, domain.RowSpan{})}
	}

	stride := p.rowsPerChunk - p.rowOverlap

	estimated := len(rows)/stride + 1
	chunks := make([]domain.Chunk, 0, estimated)

	index := 0
	for start := 0; start < len(rows); start += stride {
		end := start + p.rowsPerChunk
		if end > len(rows) {
			end = len(rows)
		}

		content := header + "\n" + strings.Join(rows[start:end], "\n")
		span := domain.RowSpan{Start: start + 1, End: end}

		chunks = append(chunks, p.newChunk(sourceID, index, content, header, span))
		index++
	}

	return chunks
}

// chunkSentences groups whole sentences with a sentence-level overlap.
func (p *Processor) chunkSentences(sourceID, raw string) []domain.Chunk {
	sentences := sentenceSplitter.FindAllString(raw, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(raw)}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var chunks []domain.Chunk
	index := 0
	i := 0
	for i < len(sentences) {
		end := i + p.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}

		content := strings.Join(sentences[i:end], " ")
		chunks = append(chunks, p.newChunk(sourceID, index, content, "", domain.RowSpan{}))
		index++

		if end == len(sentences) {
			break
		}
		i = end - p.sentenceOverlap
		if i < 0 {
			i = 0
		}
	}

	return chunks
}

// chunkParagraphs accumulates blank-line separated paragraphs up to the
// character budget. A single oversized paragraph becomes its own chunk.
func (p *Processor) chunkParagraphs(sourceID, raw string) []domain.Chunk {
	paragraphs := strings.Split(raw, "\n\n")

	var chunks []domain.Chunk
	var buf []string
	size := 0
	index := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		content := strings.Join(buf, "\n\n")
		chunks = append(chunks, p.newChunk(sourceID, index, content, "", domain.RowSpan{}))
		index++
		buf = buf[:0]
		size = 0
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if size > 0 && size+len(para) > p.chunkSize {
			flush()
		}
		buf = append(buf, para)
		size += len(para)
	}
	flush()

	return chunks
}

// chunkFixed splits on a fixed character budget with overlap.
func (p *Processor) chunkFixed(sourceID, raw string) []domain.Chunk {
	contentLen := len(raw)

	estimated := contentLen/(p.chunkSize-p.chunkOverlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	index := 0
	for start := 0; start < contentLen; start += p.chunkSize - p.chunkOverlap {
		end := start + p.chunkSize
		if end > contentLen {
			end = contentLen
		}

		chunks = append(chunks, p.newChunk(sourceID, index, raw[start:end], "", domain.RowSpan{}))
		index++
	}

	return chunks
}

func (p *Processor) newChunk(sourceID string, index int, content, header string, span domain.RowSpan) domain.Chunk {
	return domain.Chunk{
		ID:       uuid.New().String(),
		SourceID: sourceID,
		Index:    index,
		Content:  content,
		Strategy: p.strategy,
		Span:     span,
		Header:   header,
	}
}
