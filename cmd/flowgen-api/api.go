package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowgen/pkg/catalog"
	"github.com/dukex/flowgen/pkg/config"
	"github.com/dukex/flowgen/pkg/conversation"
	"github.com/dukex/flowgen/pkg/eventbus"
	"github.com/dukex/flowgen/pkg/persistence"
	"github.com/dukex/flowgen/pkg/protocol"
	"github.com/dukex/flowgen/pkg/services"
	"github.com/dukex/flowgen/pkg/web"
)

// APIDependencies bundles the collaborators the API server wires together.
type APIDependencies struct {
	Catalog     *catalog.Catalog
	Tuning      config.Tuning
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Embedder    protocol.Embedder
	VectorStore protocol.VectorStore
	Generator   protocol.Generator
	Tracer      trace.Tracer
}

type API struct {
	logger   *slog.Logger
	deps     APIDependencies
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, deps APIDependencies) *API {
	return &API{
		logger:   logger,
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	manager := conversation.NewManager(a.deps.Persistence, a.deps.Generator, a.deps.Tuning.Conversation, a.logger)

	generationService := services.NewGeneration(
		manager,
		a.deps.Embedder,
		a.deps.VectorStore,
		a.deps.Tuning.Retrieval,
		a.deps.Generator,
		a.deps.EventBus,
		a.deps.Tracer,
		a.logger,
	)
	conversationService := services.NewConversations(manager, a.deps.EventBus, a.logger)
	healthService := services.NewHealth(serviceName, serviceVersion, map[string]services.HealthChecker{
		"persistence":  a.deps.Persistence,
		"embedder":     a.deps.Embedder,
		"vector_store": a.deps.VectorStore,
		"generator":    a.deps.Generator,
	})

	handlers := web.NewAPIHandlers(generationService, conversationService, healthService, a.deps.Catalog, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowgen API")
	})

	w := app.Group("/workflows")
	w.Post("/generate", handlers.GenerateWorkflow)
	w.Post("/edit", handlers.EditWorkflow)

	conversations := app.Group("/conversations")
	conversations.Get("/:id", handlers.GetConversation)
	conversations.Get("/:id/versions", handlers.GetConversationVersions)
	conversations.Delete("/:id", handlers.DeleteConversation)

	app.Get("/catalog", handlers.GetCatalog)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
