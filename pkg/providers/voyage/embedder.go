// Package voyage implements the embedding collaborator against the Voyage
// AI embeddings API.
package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowgen/pkg/protocol"
)

const (
	defaultBaseURL = "https://api.voyageai.com/v1"
	defaultModel   = "voyage-code-3"
	defaultDims    = 1024

	// maxInputChars truncates embedding input; beyond this the tail adds
	// cost without moving the vector.
	maxInputChars = 8000

	requestTimeout = 30 * time.Second
)

// Embedder calls the Voyage embeddings endpoint.
type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	logger     *slog.Logger
}

// Config holds the Voyage client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// NewEmbedder creates a Voyage embedder. Zero-value config fields fall back
// to the defaults (voyage-code-3, 1024 dimensions).
func NewEmbedder(cfg Config, logger *slog.Logger) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultDims
	}

	return &Embedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: requestTimeout},
		logger:     logger.With("module", "voyage"),
	}
}

type embeddingsRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed encodes a single text.
func (e *Embedder) Embed(ctx context.Context, text string, input protocol.EmbeddingInput) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text}, input)
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}

// EmbedBatch encodes several texts in one call, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, input protocol.EmbeddingInput) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	truncated := make([]string, len(texts))
	for i, text := range texts {
		truncated[i] = truncate(text, maxInputChars)
	}

	body, err := json.Marshal(embeddingsRequest{
		Input:     truncated,
		Model:     e.model,
		InputType: string(input),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embeddings request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.Warn("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return nil, fmt.Errorf("embeddings request returned status %d: %s", resp.StatusCode, detail)
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embeddings response: %w", err)
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, entry := range parsed.Data {
		if entry.Index < 0 || entry.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings response index %d out of range", entry.Index)
		}

		vectors[entry.Index] = entry.Embedding
	}

	return vectors, nil
}

// Dimensions returns the vector size this embedder produces.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// HealthCheck embeds a short probe text to verify the provider is reachable
// and the key is valid.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "ping", protocol.EmbeddingInputQuery)
	if err != nil {
		return fmt.Errorf("voyage health check failed: %w", err)
	}

	return nil
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	return text[:limit]
}
