// Package embedding provides a Redis-backed cache decorator for the
// embedding collaborator. Retrieval queries repeat often within a
// conversation; caching them saves provider cost and latency.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowgen/pkg/protocol"
)

const defaultTTL = 24 * time.Hour

// CachedEmbedder decorates an Embedder with a Redis cache. Cache failures
// are logged and degrade to a miss; the cache never fails a request the
// inner embedder could serve.
type CachedEmbedder struct {
	inner  protocol.Embedder
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedder wraps the embedder with a cache on the given Redis
// client.
func NewCachedEmbedder(inner protocol.Embedder, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &CachedEmbedder{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With("module", "embedding-cache"),
	}
}

// Embed returns the cached vector when present, otherwise delegates and
// stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string, input protocol.EmbeddingInput) ([]float32, error) {
	key := c.key(text, input)

	if vector, ok := c.get(ctx, key); ok {
		return vector, nil
	}

	vector, err := c.inner.Embed(ctx, text, input)
	if err != nil {
		return nil, err
	}

	c.set(ctx, key, vector)

	return vector, nil
}

// EmbedBatch delegates directly: batches come from the indexer, which runs
// rarely and over fresh content.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string, input protocol.EmbeddingInput) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts, input)
}

// Dimensions returns the inner embedder's vector size.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// HealthCheck probes the inner embedder. The cache is optional
// infrastructure and does not gate health.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}

// key hashes the input so arbitrary query text stays a valid bounded Redis
// key.
func (c *CachedEmbedder) key(text string, input protocol.EmbeddingInput) string {
	sum := sha256.Sum256([]byte(string(input) + "\x00" + text))

	return fmt.Sprintf("flowgen:embedding:%s:%s", input, hex.EncodeToString(sum[:]))
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Embedding cache read failed", "error", err.Error())
		}

		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		c.logger.WarnContext(ctx, "Embedding cache entry malformed", "error", err.Error())

		return nil, false
	}

	return vector, true
}

func (c *CachedEmbedder) set(ctx context.Context, key string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to marshal embedding for cache", "error", err.Error())

		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Embedding cache write failed", "error", err.Error())
	}
}
