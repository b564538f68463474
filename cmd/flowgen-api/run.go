package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowgen/pkg/catalog"
	"github.com/dukex/flowgen/pkg/cmd"
	"github.com/dukex/flowgen/pkg/config"
	"github.com/dukex/flowgen/pkg/log"
	"github.com/dukex/flowgen/pkg/otelhelper"
)

const serviceName = "flowgen-api"

// serviceVersion is overridable at build time via -ldflags.
var serviceVersion = "dev"

func RunAPICommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   9091,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "catalog-path",
				Usage:    "Path to the tool catalog JSON file",
				Required: true,
				Sources:  cli.EnvVars("CATALOG_PATH"),
			},
			&cli.StringFlag{
				Name:    "tuning-path",
				Usage:   "Optional YAML file overriding retrieval thresholds",
				Sources: cli.EnvVars("RETRIEVAL_CONFIG"),
			},
			&cli.StringFlag{
				Name:     "qdrant-url",
				Usage:    "Qdrant base URL",
				Required: true,
				Sources:  cli.EnvVars("QDRANT_URL"),
			},
			&cli.StringFlag{
				Name:    "qdrant-collection",
				Usage:   "Qdrant collection holding the indexed catalog",
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
				Name:    "redis-url",
				Usage:   "Optional Redis URL enabling the embedding cache",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for the Bedrock generator",
				Value:   "us-east-1",
				Sources: cli.EnvVars("AWS_REGION"),
			},
			&cli.StringFlag{
				Name:    "bedrock-model-id",
				Usage:   "Bedrock model identifier",
				Sources: cli.EnvVars("BEDROCK_MODEL_ID"),
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
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces to the configured OTLP endpoint",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.Info("Initializing flowgen API")

			tracer := otelhelper.NewNoopTracer()

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}
			}

			cat, err := catalog.Load(command.String("catalog-path"), logger)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}

			tuning := config.LoadTuningOrDefault(command.String("tuning-path"))

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), serviceName, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			embedder, err := cmd.NewEmbedder(cmd.EmbedderOptions{
				VoyageAPIKey: command.String("voyage-api-key"),
				Model:        command.String("embedding-model"),
				RedisURL:     command.String("redis-url"),
			}, logger)
			if err != nil {
				return err
			}

			vectorStore := cmd.NewVectorStore(
				command.String("qdrant-url"),
				command.String("qdrant-collection"),
				command.String("qdrant-api-key"),
				logger,
			)

			generator, err := cmd.NewGenerator(ctx, command.String("aws-region"), command.String("bedrock-model-id"), logger)
			if err != nil {
				return err
			}

			api := NewAPI(logger, APIDependencies{
				Catalog:     cat,
				Tuning:      tuning,
				Persistence: persistence,
				EventBus:    eventBus,
				Embedder:    embedder,
				VectorStore: vectorStore,
				Generator:   generator,
				Tracer:      tracer,
			})

			if err := api.Start(command.Int("port")); err != nil {
				return fmt.Errorf("API server failed: %w", err)
			}

			return nil
		},
	}
}
