package main

import (
	"context"
	"fmt"
	"log/slog"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowgen/pkg/catalog"
	"github.com/dukex/flowgen/pkg/cmd"
	"github.com/dukex/flowgen/pkg/eventbus"
	"github.com/dukex/flowgen/pkg/events"
	"github.com/dukex/flowgen/pkg/log"
	"github.com/dukex/flowgen/pkg/protocol"
)

const serviceName = "flowgen-indexer"

// embedBatchSize bounds one Voyage API call.
const embedBatchSize = 64

func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:    "index",
		Aliases: []string{"i"},
		Usage:   "Embed every catalog operation and upsert it into the vector store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "catalog-path",
				Usage:    "Path to the tool catalog JSON file",
				Required: true,
				Sources:  cli.EnvVars("CATALOG_PATH"),
			},
			&cli.StringFlag{
				Name:     "qdrant-url",
				Usage:    "Qdrant base URL",
				Required: true,
				Sources:  cli.EnvVars("QDRANT_URL"),
			},
			&cli.StringFlag{
				Name:    "qdrant-collection",
				Usage:   "Qdrant collection to index into",
				Value:   "tool_operations",
				Sources: cli.EnvVars("QDRANT_COLLECTION"),
			},
			&cli.StringFlag{
				Name:    "qdrant-api-key",
				Usage:   "Qdrant API key",
				Sources: cli.EnvVars("QDRANT_API_KEY"),
			},
			&cli.StringFlag{
				Name:     "voyage-api-key",
				Usage:    "Voyage AI API key for embeddings",
				Required: true,
				Sources:  cli.EnvVars("VOYAGE_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Voyage embedding model",
				Sources: cli.EnvVars("EMBEDDING_MODEL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("indexer")

			cat, err := catalog.Load(command.String("catalog-path"), logger)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}

			embedder, err := cmd.NewEmbedder(cmd.EmbedderOptions{
				VoyageAPIKey: command.String("voyage-api-key"),
				Model:        command.String("embedding-model"),
			}, logger)
			if err != nil {
				return err
			}

			collection := command.String("qdrant-collection")
			vectorStore := cmd.NewVectorStore(
				command.String("qdrant-url"),
				collection,
				command.String("qdrant-api-key"),
				logger,
			)

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), serviceName, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			return index(ctx, logger, cat, embedder, vectorStore, eventBus, collection)
		},
	}
}

// index embeds every catalog operation as a document and upserts the points
// into the vector store, creating the collection when absent.
func index(
	ctx context.Context,
	logger *slog.Logger,
	cat *catalog.Catalog,
	embedder protocol.Embedder,
	vectorStore protocol.VectorStore,
	eventBus eventbus.EventBus,
	collection string,
) error {
	operations := cat.All()
	if len(operations) == 0 {
		return fmt.Errorf("catalog contains no operations")
	}

	logger.InfoContext(ctx, "Indexing catalog", "operations", len(operations), "collection", collection)

	if err := vectorStore.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	for start := 0; start < len(operations); start += embedBatchSize {
		end := min(start+embedBatchSize, len(operations))
		batch := operations[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].EmbeddingText()
		}

		vectors, err := embedder.EmbedBatch(ctx, texts, protocol.EmbeddingInputDocument)
		if err != nil {
			return fmt.Errorf("failed to embed batch at offset %d: %w", start, err)
		}

		points := make([]protocol.VectorPoint, len(batch))
		for i := range batch {
			points[i] = protocol.VectorPoint{
				ID:        batch[i].ID,
				Vector:    vectors[i],
				Operation: batch[i],
				Content:   texts[i],
			}
		}

		if err := vectorStore.Upsert(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch at offset %d: %w", start, err)
		}

		logger.DebugContext(ctx, "Indexed batch", "offset", start, "size", len(batch))
	}

	if err := eventBus.Publish(ctx, collection, events.NewCatalogIndexed(collection, len(operations))); err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			"event_type", events.CatalogIndexedEvent,
			"error", err.Error(),
		)
	}

	logger.InfoContext(ctx, "Catalog indexed", "operations", len(operations))

	return nil
}
