// Package qdrant provides a vector store backed by a Qdrant server.
// It talks to the REST API directly; the collection is created on
// first use with cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// DefaultTimeout is the HTTP timeout when none is configured.
const DefaultTimeout = 15 * time.Second

// scrollPageSize limits how many points one scroll request returns.
const scrollPageSize = 256

// Config holds Qdrant connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

// VectorStore is a REST client to a Qdrant collection.
type VectorStore struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client
}

// NewVectorStore creates the client and ensures the collection exists
// with the declared dimension. Qdrant accepts the create call as a
// no-op when the collection already matches; a dimension conflict
// surfaces as *domain.DimensionMismatchError.
func NewVectorStore(ctx context.Context, cfg Config) (*VectorStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", domain.ErrInvalidInput)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		cfg.Collection = "tabletalk"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	s := &VectorStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}

	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VectorStore) ensureCollection(ctx context.Context) error {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", s.collection), nil, &info)
	if err == nil {
		if got := info.Result.Config.Params.Vectors.Size; got != 0 && got != s.dimensions {
			return &domain.DimensionMismatchError{Want: got, Got: s.dimensions}
		}
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimensions,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", s.collection), body, nil); err != nil {
		return fmt.Errorf("%w: creating collection: %v", domain.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// Upsert writes records as Qdrant points; record IDs become point IDs
// so re-upserts replace.
func (s *VectorStore) Upsert(ctx context.Context, records []domain.EmbeddingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	points := make([]map[string]any, len(records))
	for i, record := range records {
		if len(record.Embedding) != s.dimensions {
			return 0, &domain.DimensionMismatchError{Want: s.dimensions, Got: len(record.Embedding)}
		}

		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		points[i] = map[string]any{
			"id":     record.ID,
			"vector": record.Embedding,
			"payload": map[string]any{
				"source_id":  record.SourceID,
				"chunk_text": record.ChunkText,
				"metadata":   record.Metadata,
				"created_at": createdAt.Format(time.RFC3339Nano),
			},
		}
	}

	body := map[string]any{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	if err := s.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return 0, fmt.Errorf("%w: upsert: %v", domain.ErrVectorStoreUnavailable, err)
	}
	return len(points), nil
}

// Query searches the collection. Qdrant applies the score threshold
// server side; ordering ties are broken locally by most recent
// created_at.
func (s *VectorStore) Query(
	ctx context.Context, vector []float32, threshold float64, maxResults int,
) ([]domain.RetrievedFragment, error) {
	threshold = domain.ClampThreshold(threshold)
	maxResults = domain.ClampMaxResults(maxResults)

	body := map[string]any{
		"vector":          vector,
		"limit":           maxResults,
		"score_threshold": threshold,
		"with_payload":    true,
	}

	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrVectorStoreUnavailable, err)
	}

	type scored struct {
		fragment  domain.RetrievedFragment
		createdAt time.Time
	}
	hits := make([]scored, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, scored{
			fragment: domain.RetrievedFragment{
				ChunkText:  r.Payload.ChunkText,
				Similarity: r.Score,
				Metadata:   r.Payload.Metadata,
			},
			createdAt: r.Payload.createdAt(),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].fragment.Similarity != hits[j].fragment.Similarity {
			return hits[i].fragment.Similarity > hits[j].fragment.Similarity
		}
		return hits[i].createdAt.After(hits[j].createdAt)
	})

	fragments := make([]domain.RetrievedFragment, len(hits))
	for i, hit := range hits {
		fragments[i] = hit.fragment
	}
	return fragments, nil
}

// Records scrolls the collection, optionally filtered by source.
func (s *VectorStore) Records(ctx context.Context, sourceID string) ([]domain.EmbeddingRecord, error) {
	var records []domain.EmbeddingRecord
	var offset any

	for {
		body := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if sourceID != "" {
			body["filter"] = sourceFilter(sourceID)
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points []struct {
					ID      string    `json:"id"`
					Vector  []float32 `json:"vector"`
					Payload payload   `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		path := fmt.Sprintf("/collections/%s/points/scroll", s.collection)
		if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
			return nil, fmt.Errorf("%w: scroll: %v", domain.ErrVectorStoreUnavailable, err)
		}

		for _, p := range resp.Result.Points {
			records = append(records, domain.EmbeddingRecord{
				ID:        p.ID,
				SourceID:  p.Payload.SourceID,
				ChunkText: p.Payload.ChunkText,
				Embedding: p.Vector,
				Metadata:  p.Payload.Metadata,
				CreatedAt: p.Payload.createdAt(),
			})
		}

		if resp.Result.NextPageOffset == nil {
			return records, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// DeleteSource removes every point for the source.
func (s *VectorStore) DeleteSource(ctx context.Context, sourceID string) error {
	body := map[string]any{"filter": sourceFilter(sourceID)}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection)
	if err := s.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("%w: delete source %q: %v", domain.ErrVectorStoreUnavailable, sourceID, err)
	}
	return nil
}

// Dimensions returns the declared vector dimension.
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// Close releases resources.
func (s *VectorStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// payload mirrors the point payload tabletalk writes.
type payload struct {
	SourceID  string         `json:"source_id"`
	ChunkText string         `json:"chunk_text"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

func (p payload) createdAt() time.Time {
	ts, _ := time.Parse(time.RFC3339Nano, p.CreatedAt)
	return ts
}

func sourceFilter(sourceID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "source_id", "match": map[string]any{"value": sourceID}},
		},
	}
}

func (s *VectorStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant %s %s: %s: %s", method, path, resp.Status, string(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
