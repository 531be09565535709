package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// fakeQdrant is a minimal in-memory stand-in for the Qdrant REST API.
type fakeQdrant struct {
	collectionSize int
	created        bool
	upserts        []map[string]any
	searchResult   []map[string]any
	scrollPages    [][]map[string]any
	scrollCalls    int
	deleteFilters  []map[string]any
	apiKeys        []string
}

func (f *fakeQdrant) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	// Method is checked inside each handler: Go 1.21's ServeMux does not
	// support the "METHOD /path" pattern syntax.
	mux.HandleFunc("/collections/test", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
			if f.collectionSize == 0 && !f.created {
				http.NotFound(w, r)
				return
			}
			fmt.Fprintf(w, `{"result":{"config":{"params":{"vectors":{"size":%d}}}}}`, f.collectionSize)
		case http.MethodPut:
			f.created = true
			fmt.Fprint(w, `{"result":true}`)
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/collections/test/points", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Points []map[string]any `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.upserts = append(f.upserts, body.Points...)
		fmt.Fprint(w, `{"result":{"status":"completed"}}`)
	})

	mux.HandleFunc("/collections/test/points/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"result": f.searchResult})
	})

	mux.HandleFunc("/collections/test/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		page := f.scrollPages[f.scrollCalls]
		f.scrollCalls++
		var next any
		if f.scrollCalls < len(f.scrollPages) {
			next = f.scrollCalls
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"points": page, "next_page_offset": next},
		})
	})

	mux.HandleFunc("/collections/test/points/delete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Filter map[string]any `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.deleteFilters = append(f.deleteFilters, body.Filter)
		fmt.Fprint(w, `{"result":{"status":"completed"}}`)
	})

	return mux
}

func newFakeStore(t *testing.T, fake *fakeQdrant, dimensions int) *VectorStore {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	s, err := NewVectorStore(context.Background(), Config{
		URL:        server.URL,
		APIKey:     "secret",
		Collection: "test",
		Dimensions: dimensions,
	})
	require.NoError(t, err)
	return s
}

func TestNewVectorStoreCreatesMissingCollection(t *testing.T) {
	fake := &fakeQdrant{}
	s := newFakeStore(t, fake, 4)

	assert.True(t, fake.created)
	assert.Equal(t, 4, s.Dimensions())
	assert.Contains(t, fake.apiKeys, "secret")
}

func TestNewVectorStoreAcceptsMatchingCollection(t *testing.T) {
	fake := &fakeQdrant{collectionSize: 4}
	newFakeStore(t, fake, 4)
	assert.False(t, fake.created, "matching collection is reused")
}

func TestNewVectorStoreDimensionConflict(t *testing.T) {
	fake := &fakeQdrant{collectionSize: 8}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	_, err := NewVectorStore(context.Background(), Config{
		URL: server.URL, Collection: "test", Dimensions: 4,
	})

	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 8, mismatch.Want)
	assert.Equal(t, 4, mismatch.Got)
}

func TestNewVectorStoreValidation(t *testing.T) {
	_, err := NewVectorStore(context.Background(), Config{Dimensions: 4})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewVectorStore(context.Background(), Config{URL: "http://localhost:6333"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpsertSendsPoints(t *testing.T) {
	fake := &fakeQdrant{}
	s := newFakeStore(t, fake, 2)

	n, err := s.Upsert(context.Background(), []domain.EmbeddingRecord{
		{
			ID:        "p1",
			SourceID:  "txns",
			ChunkText: "id,amount\n1,10",
			Embedding: []float32{1, 0},
			Metadata:  map[string]any{"row_start": 1},
			CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, fake.upserts, 1)
	point := fake.upserts[0]
	assert.Equal(t, "p1", point["id"])

	pl := point["payload"].(map[string]any)
	assert.Equal(t, "txns", pl["source_id"])
	assert.Equal(t, "id,amount\n1,10", pl["chunk_text"])
	assert.Equal(t, "2026-08-30T12:00:00Z", pl["created_at"])
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	s := newFakeStore(t, &fakeQdrant{}, 2)

	_, err := s.Upsert(context.Background(), []domain.EmbeddingRecord{
		{ID: "p1", Embedding: []float32{1, 0, 0}},
	})

	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestQueryOrdersByScoreThenRecency(t *testing.T) {
	fake := &fakeQdrant{searchResult: []map[string]any{
		{"score": 0.9, "payload": map[string]any{
			"chunk_text": "older", "created_at": "2026-08-29T00:00:00Z",
		}},
		{"score": 0.9, "payload": map[string]any{
			"chunk_text": "newer", "created_at": "2026-08-30T00:00:00Z",
		}},
		{"score": 0.95, "payload": map[string]any{
			"chunk_text": "best", "created_at": "2026-08-01T00:00:00Z",
		}},
	}}
	s := newFakeStore(t, fake, 2)

	fragments, err := s.Query(context.Background(), []float32{1, 0}, 0.7, 10)
	require.NoError(t, err)

	require.Len(t, fragments, 3)
	assert.Equal(t, "best", fragments[0].ChunkText)
	assert.Equal(t, "newer", fragments[1].ChunkText)
	assert.Equal(t, "older", fragments[2].ChunkText)
}

func TestRecordsScrollsAllPages(t *testing.T) {
	fake := &fakeQdrant{scrollPages: [][]map[string]any{
		{
			{"id": "p1", "vector": []float32{1, 0}, "payload": map[string]any{
				"source_id": "txns", "chunk_text": "one",
			}},
		},
		{
			{"id": "p2", "vector": []float32{0, 1}, "payload": map[string]any{
				"source_id": "txns", "chunk_text": "two",
			}},
		},
	}}
	s := newFakeStore(t, fake, 2)

	records, err := s.Records(context.Background(), "txns")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.scrollCalls)
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].ID)
	assert.Equal(t, []float32{0, 1}, records[1].Embedding)
	assert.Equal(t, "txns", records[1].SourceID)
}

func TestDeleteSourceFilters(t *testing.T) {
	fake := &fakeQdrant{}
	s := newFakeStore(t, fake, 2)

	require.NoError(t, s.DeleteSource(context.Background(), "txns"))

	require.Len(t, fake.deleteFilters, 1)
	must := fake.deleteFilters[0]["must"].([]any)
	cond := must[0].(map[string]any)
	assert.Equal(t, "source_id", cond["key"])
	assert.Equal(t, map[string]any{"value": "txns"}, cond["match"])
}

func TestStoreUnavailable(t *testing.T) {
	s := newFakeStore(t, &fakeQdrant{}, 2)

	// Point the client at a dead server.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	s.url = dead.URL

	_, err := s.Query(context.Background(), []float32{1, 0}, 0.7, 10)
	assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)

	_, err = s.Records(context.Background(), "txns")
	assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)

	assert.ErrorIs(t, s.DeleteSource(context.Background(), "txns"), domain.ErrVectorStoreUnavailable)
	assert.NoError(t, s.Close())
}
