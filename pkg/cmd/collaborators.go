package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowgen/pkg/protocol"
	"github.com/dukex/flowgen/pkg/providers/bedrock"
	"github.com/dukex/flowgen/pkg/providers/embedding"
	"github.com/dukex/flowgen/pkg/providers/qdrant"
	"github.com/dukex/flowgen/pkg/providers/voyage"
)

// EmbedderOptions configures the embedding collaborator.
type EmbedderOptions struct {
	VoyageAPIKey string
	Model        string
	RedisURL     string
	CacheTTL     time.Duration
}

// NewEmbedder builds the Voyage embedder, wrapped in a Redis cache when a
// Redis URL is configured.
//
// nolint:ireturn // Callers program against the protocol interface.
func NewEmbedder(opts EmbedderOptions, logger *slog.Logger) (protocol.Embedder, error) {
	embedder := voyage.NewEmbedder(voyage.Config{
		APIKey: opts.VoyageAPIKey,
		Model:  opts.Model,
	}, logger)

	if opts.RedisURL == "" {
		return embedder, nil
	}

	redisOptions, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(redisOptions)

	return embedding.NewCachedEmbedder(embedder, client, opts.CacheTTL, logger), nil
}

// NewVectorStore builds the Qdrant vector store.
func NewVectorStore(baseURL, collection, apiKey string, logger *slog.Logger) *qdrant.Store {
	return qdrant.NewStore(qdrant.Config{
		BaseURL:    baseURL,
		Collection: collection,
		APIKey:     apiKey,
	}, logger)
}

// NewGenerator builds the Bedrock Claude generator.
func NewGenerator(ctx context.Context, region, modelID string, logger *slog.Logger) (*bedrock.Generator, error) {
	generator, err := bedrock.NewGenerator(ctx, region, modelID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	return generator, nil
}
