package voyage_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowgen/pkg/protocol"
	"github.com/dukex/flowgen/pkg/providers/voyage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
	AuthHeader string
}

func embeddingsServer(t *testing.T, captured *capturedRequest, vectors ...[]float32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)

		captured.AuthHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		data := make([]map[string]any, len(vectors))
		for i, vector := range vectors {
			data[i] = map[string]any{"embedding": vector, "index": i}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
	}))
}

func TestEmbed_SendsModelAndInputType(t *testing.T) {
	var captured capturedRequest

	server := embeddingsServer(t, &captured, []float32{0.1, 0.2, 0.3})
	defer server.Close()

	embedder := voyage.NewEmbedder(voyage.Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, testLogger())

	vector, err := embedder.Embed(t.Context(), "send an email", protocol.EmbeddingInputQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)

	assert.Equal(t, "Bearer test-key", captured.AuthHeader)
	assert.Equal(t, "voyage-code-3", captured.Model)
	assert.Equal(t, "query", captured.InputType)
	require.Len(t, captured.Input, 1)
	assert.Equal(t, "send an email", captured.Input[0])
}

func TestEmbedBatch_PreservesResponseIndexOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Return the vectors out of order; the index field carries the
		// mapping back to the inputs.
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"data":[
			{"embedding":[2],"index":1},
			{"embedding":[1],"index":0}
		]}`))
		require.NoError(t, err)
	}))
	defer server.Close()

	embedder := voyage.NewEmbedder(voyage.Config{BaseURL: server.URL}, testLogger())

	vectors, err := embedder.EmbedBatch(t.Context(), []string{"first", "second"}, protocol.EmbeddingInputDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1}, vectors[0])
	assert.Equal(t, []float32{2}, vectors[1])
}

func TestEmbedBatch_TruncatesLongInput(t *testing.T) {
	var captured capturedRequest

	server := embeddingsServer(t, &captured, []float32{0.5})
	defer server.Close()

	embedder := voyage.NewEmbedder(voyage.Config{BaseURL: server.URL}, testLogger())

	_, err := embedder.Embed(t.Context(), strings.Repeat("a", 9000), protocol.EmbeddingInputDocument)
	require.NoError(t, err)
	require.Len(t, captured.Input, 1)
	assert.Len(t, captured.Input[0], 8000)
}

func TestEmbedBatch_ErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	embedder := voyage.NewEmbedder(voyage.Config{BaseURL: server.URL}, testLogger())

	_, err := embedder.Embed(t.Context(), "anything", protocol.EmbeddingInputQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestEmbedBatch_VectorCountMismatchFails(t *testing.T) {
	var captured capturedRequest

	server := embeddingsServer(t, &captured, []float32{0.1})
	defer server.Close()

	embedder := voyage.NewEmbedder(voyage.Config{BaseURL: server.URL}, testLogger())

	_, err := embedder.EmbedBatch(t.Context(), []string{"one", "two"}, protocol.EmbeddingInputQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors for 2 inputs")
}

func TestEmbedBatch_EmptyInputSkipsRequest(t *testing.T) {
	embedder := voyage.NewEmbedder(voyage.Config{BaseURL: "http://unreachable.invalid"}, testLogger())

	vectors, err := embedder.EmbedBatch(t.Context(), nil, protocol.EmbeddingInputQuery)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestDimensions_DefaultsTo1024(t *testing.T) {
	embedder := voyage.NewEmbedder(voyage.Config{}, testLogger())
	assert.Equal(t, 1024, embedder.Dimensions())
}
