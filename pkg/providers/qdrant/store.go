// Package qdrant implements the vector store collaborator against the
// Qdrant HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/protocol"
)

const (
	defaultCollection = "tool_operations"
	requestTimeout    = 30 * time.Second
)

// Store talks to one Qdrant collection.
type Store struct {
	baseURL    string
	collection string
	apiKey     string
	client     *http.Client
	logger     *slog.Logger
}

// Config holds the Qdrant client settings.
type Config struct {
	BaseURL    string
	Collection string
	APIKey     string
}

// NewStore creates a Qdrant-backed vector store.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	return &Store{
		baseURL:    cfg.BaseURL,
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: requestTimeout},
		logger:     logger.With("module", "qdrant"),
	}
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search returns the topK closest catalog entries, ordered by descending
// similarity.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]models.RetrievedCandidate, error) {
	body, err := json.Marshal(searchRequest{Vector: vector, Limit: topK, WithPayload: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var parsed searchResponse

	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.call(ctx, http.MethodPost, path, body, &parsed); err != nil {
		return nil, err
	}

	candidates := make([]models.RetrievedCandidate, 0, len(parsed.Result))

	for rank, hit := range parsed.Result {
		operation, err := operationFromPayload(hit.Payload)
		if err != nil {
			s.logger.Warn("Skipping search hit with malformed payload", "rank", rank, "error", err.Error())

			continue
		}

		candidates = append(candidates, models.RetrievedCandidate{
			Operation: operation,
			Score:     hit.Score,
			Rank:      rank,
		})
	}

	return candidates, nil
}

// EnsureCollection creates the collection with cosine distance when absent.
func (s *Store) EnsureCollection(ctx context.Context, dimensions int) error {
	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal collection request: %w", err)
	}

	err = s.call(ctx, http.MethodPut, "/collections/"+s.collection, body, nil)
	if err != nil {
		// Qdrant answers 409 when the collection already exists; that is
		// the desired state.
		var status *statusError
		if errors.As(err, &status) && status.code == http.StatusConflict {
			return nil
		}

		return err
	}

	return nil
}

// Upsert writes points into the collection, replacing entries that share an
// id.
func (s *Store) Upsert(ctx context.Context, points []protocol.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	payloadPoints := make([]map[string]any, 0, len(points))

	for _, point := range points {
		operationJSON, err := json.Marshal(point.Operation)
		if err != nil {
			return fmt.Errorf("failed to marshal operation %s: %w", point.Operation.ID, err)
		}

		var operationPayload map[string]any
		if err := json.Unmarshal(operationJSON, &operationPayload); err != nil {
			return fmt.Errorf("failed to build payload for %s: %w", point.Operation.ID, err)
		}

		payloadPoints = append(payloadPoints, map[string]any{
			"id":     point.ID,
			"vector": point.Vector,
			"payload": map[string]any{
				"operation": operationPayload,
				"content":   point.Content,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": payloadPoints})
	if err != nil {
		return fmt.Errorf("failed to marshal upsert request: %w", err)
	}

	return s.call(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", s.collection), body, nil)
}

// HealthCheck verifies the Qdrant instance answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.call(ctx, http.MethodGet, "/collections", nil, nil); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}

	return nil
}

// statusError carries a non-2xx response through the error chain.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned status %d: %s", e.code, e.detail)
}

func (s *Store) call(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build qdrant request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return &statusError{code: resp.StatusCode, detail: string(detail)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse qdrant response: %w", err)
		}
	}

	return nil
}

// operationFromPayload rebuilds the indexed ToolOperation from a search
// hit's payload.
func operationFromPayload(payload map[string]any) (models.ToolOperation, error) {
	raw, ok := payload["operation"]
	if !ok {
		return models.ToolOperation{}, fmt.Errorf("payload has no operation")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return models.ToolOperation{}, fmt.Errorf("failed to re-marshal payload: %w", err)
	}

	var operation models.ToolOperation
	if err := json.Unmarshal(data, &operation); err != nil {
		return models.ToolOperation{}, fmt.Errorf("failed to parse operation payload: %w", err)
	}

	if operation.ID == "" {
		return models.ToolOperation{}, fmt.Errorf("operation payload has no id")
	}

	return operation, nil
}
