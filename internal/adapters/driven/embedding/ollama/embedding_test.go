package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

func TestEmbedBatchSingleRequest(t *testing.T) {
	var got embedRequest
	requests := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := embedResponse{Embeddings: make([][]float32, len(got.Input))}
		for i := range resp.Embeddings {
			resp.Embeddings[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := NewEmbeddingService(Config{BaseURL: server.URL, Model: "all-minilm", Dimensions: 2})

	vectors, err := s.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)

	assert.Equal(t, 1, requests, "a batch goes out as one call")
	assert.Equal(t, "all-minilm", got.Model)
	assert.Equal(t, []string{"first", "second", "third"}, got.Input)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 1}, vectors[1])
}

func TestEmbedDelegatesToBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5, 0.5}}})
	}))
	defer server.Close()

	s := NewEmbeddingService(Config{BaseURL: server.URL})

	vector, err := s.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vector)
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer server.Close()

	s := NewEmbeddingService(Config{BaseURL: server.URL})

	_, err := s.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedBatchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	s := NewEmbeddingService(Config{BaseURL: server.URL})

	_, err := s.EmbedBatch(context.Background(), []string{"a"})
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "model not found")
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	s := NewEmbeddingService(Config{BaseURL: "http://unused"})

	vectors, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestDefaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.NoError(t, s.Close())
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewEmbeddingService(Config{BaseURL: server.URL})
	assert.NoError(t, s.Ping(context.Background()))

	server.Close()
	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrEmbeddingUnavailable)
}
