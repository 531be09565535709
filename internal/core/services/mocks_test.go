package services

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
)

// mockEmbedder is a configurable EmbeddingService test double.
type mockEmbedder struct {
	dims       int
	embedFunc  func(ctx context.Context, text string) ([]float32, error)
	batchFunc  func(ctx context.Context, texts []string) ([][]float32, error)
	batchCalls int
}

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

// constantVector returns a unit-ish vector of the mock's dimension.
func (m *mockEmbedder) constantVector() []float32 {
	v := make([]float32, m.dims)
	for i := range v {
		v[i] = 1
	}
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}
	return m.constantVector(), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls++
	if m.batchFunc != nil {
		return m.batchFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = m.constantVector()
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return m.dims }
func (m *mockEmbedder) ModelName() string          { return "mock-embed" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error               { return nil }

// mockVectorStore is an in-memory VectorStore test double. Query
// returns preset fragments; Records returns stored records. With
// ignoreThreshold set, Query returns the fragments unfiltered, like a
// backend that does not honour score thresholds.
type mockVectorStore struct {
	mu              sync.Mutex
	dims            int
	records         []domain.EmbeddingRecord
	fragments       []domain.RetrievedFragment
	queryErr        error
	upsertErr       error
	deleteCalls     []string
	upsertBatches   int
	ignoreThreshold bool
}

var _ driven.VectorStore = (*mockVectorStore)(nil)

func newMockVectorStore(dims int) *mockVectorStore {
	return &mockVectorStore{dims: dims}
}

func (m *mockVectorStore) Upsert(_ context.Context, records []domain.EmbeddingRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	m.upsertBatches++
	m.records = append(m.records, records...)
	return len(records), nil
}

func (m *mockVectorStore) Query(
	_ context.Context, _ []float32, threshold float64, maxResults int,
) ([]domain.RetrievedFragment, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	threshold = domain.ClampThreshold(threshold)
	maxResults = domain.ClampMaxResults(maxResults)

	var out []domain.RetrievedFragment
	for _, f := range m.fragments {
		if m.ignoreThreshold || f.Similarity >= threshold {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (m *mockVectorStore) Records(_ context.Context, sourceID string) ([]domain.EmbeddingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EmbeddingRecord
	for _, r := range m.records {
		if sourceID != "" && r.SourceID != sourceID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockVectorStore) DeleteSource(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, sourceID)
	kept := m.records[:0]
	for _, r := range m.records {
		if r.SourceID != sourceID {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *mockVectorStore) Dimensions() int { return m.dims }
func (m *mockVectorStore) Close() error    { return nil }

// mockLLM is a scriptable LLMService test double.
type mockLLM struct {
	mu        sync.Mutex
	model     string
	responses []string
	err       error
	calls     int
	prompts   []string
}

var _ driven.LLMService = (*mockLLM)(nil)

func (m *mockLLM) Generate(_ context.Context, _, userPrompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, userPrompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "ok", nil
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *mockLLM) ModelName() string {
	if m.model == "" {
		return "mock-llm"
	}
	return m.model
}

func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }
