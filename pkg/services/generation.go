package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowgen/pkg/config"
	"github.com/dukex/flowgen/pkg/conversation"
	"github.com/dukex/flowgen/pkg/eventbus"
	"github.com/dukex/flowgen/pkg/events"
	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/otelhelper"
	"github.com/dukex/flowgen/pkg/persistence"
	"github.com/dukex/flowgen/pkg/pipeline"
	"github.com/dukex/flowgen/pkg/protocol"
)

// GenerationResult is the outcome of one generation or edit request.
type GenerationResult struct {
	ConversationID string                  `json:"conversation_id"`
	Verdict        pipeline.Verdict        `json:"verdict"`
	Confidence     float64                 `json:"confidence"`
	Mode           pipeline.Mode           `json:"mode,omitempty"`
	Workflow       *models.WorkflowDocument `json:"workflow,omitempty"`
	Version        int                     `json:"version,omitempty"`
	ToolsUsed      []string                `json:"tools_used,omitempty"`
	Message        string                  `json:"message,omitempty"`
}

// Generation orchestrates one unit of work: compose the retrieval query,
// classify the similarity results, plan and run generation, validate, and
// persist the accepted document under the conversation's lock.
type Generation struct {
	conversations *conversation.Manager
	embedder      protocol.Embedder
	vectorStore   protocol.VectorStore
	classifier    *pipeline.Classifier
	pipeline      *pipeline.Pipeline
	eventBus      eventbus.EventBus
	tracer        trace.Tracer
	logger        *slog.Logger
	topK          int
}

// NewGeneration creates the generation service.
func NewGeneration(
	conversations *conversation.Manager,
	embedder protocol.Embedder,
	vectorStore protocol.VectorStore,
	retrieval config.RetrievalConfig,
	generator protocol.Generator,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Generation {
	return &Generation{
		conversations: conversations,
		embedder:      embedder,
		vectorStore:   vectorStore,
		classifier:    pipeline.NewClassifier(retrieval, logger),
		pipeline:      pipeline.NewPipeline(pipeline.NewPlanner(logger), pipeline.NewValidator(logger), generator, logger),
		eventBus:      eventBus,
		tracer:        tracer,
		logger:        logger.With("module", "generation"),
		topK:          retrieval.TopK,
	}
}

// Generate runs create-or-continue: a known conversation id with a current
// workflow version behaves as an edit, everything else authors a new
// workflow. An empty id starts a fresh conversation.
func (g *Generation) Generate(ctx context.Context, conversationID, query string) (*GenerationResult, error) {
	// The unit of work survives a client disconnect: once generation is
	// running its result is persisted and fetchable afterwards.
	ctx = context.WithoutCancel(ctx)

	ctx, span := g.tracer.Start(ctx, "generation.generate")
	defer span.End()

	conv, created, err := g.openConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ConversationIDKey, conv.ID))

	unlock := g.conversations.Lock(conv.ID)
	defer unlock()

	if created {
		g.publish(ctx, conv.ID, events.NewConversationCreated(conv.ID))
	}

	result, err := g.run(ctx, span, conv, query)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

// Edit applies an edit instruction to an existing conversation's current
// workflow. Fails with ErrConversationNotFound for unknown or deleted ids
// and with ErrMissingWorkflow when no version exists to edit.
func (g *Generation) Edit(ctx context.Context, conversationID, instruction string) (*GenerationResult, error) {
	ctx = context.WithoutCancel(ctx)

	ctx, span := g.tracer.Start(ctx, "generation.edit")
	defer span.End()

	span.SetAttributes(attribute.String(otelhelper.ConversationIDKey, conversationID))

	conv, err := g.conversations.Load(ctx, conversationID)
	if err != nil {
		return nil, NewPipelineError("Edit", conversationID, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	if conv == nil {
		return nil, NewPipelineError("Edit", conversationID, ErrConversationNotFound)
	}

	unlock := g.conversations.Lock(conv.ID)
	defer unlock()

	current, err := g.conversations.CurrentVersion(ctx, conv.ID)
	if err != nil {
		return nil, NewPipelineError("Edit", conv.ID, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	if current == nil {
		return nil, NewPipelineError("Edit", conv.ID, ErrMissingWorkflow)
	}

	result, err := g.run(ctx, span, conv, instruction)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

// run executes the pipeline for one request while the conversation lock is
// held: retrieve, classify, generate, validate, persist.
func (g *Generation) run(ctx context.Context, span trace.Span, conv *models.Conversation, query string) (*GenerationResult, error) {
	classification, err := g.retrieve(ctx, conv, query)
	if err != nil {
		return nil, NewPipelineError("Retrieve", conv.ID, err)
	}

	span.SetAttributes(
		attribute.String(otelhelper.VerdictKey, string(classification.Verdict)),
		attribute.Int(otelhelper.CandidateCountKey, len(classification.Candidates)),
	)

	if classification.Verdict == pipeline.VerdictNoMatch {
		g.logger.InfoContext(ctx, "Retrieval found no confident match", "conversation_id", conv.ID)

		// A terminal verdict, not an error: nothing is generated or
		// persisted and the caller asks the user for more detail.
		return &GenerationResult{
			ConversationID: conv.ID,
			Verdict:        pipeline.VerdictNoMatch,
			Message:        "I couldn't match your request to any available tools. Could you describe what you want to automate in more detail?",
		}, nil
	}

	current, err := g.conversations.CurrentVersion(ctx, conv.ID)
	if err != nil {
		return nil, NewPipelineError("Plan", conv.ID, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	request := g.pipeline.Planner().Plan(current, classification.Candidates, query)
	span.SetAttributes(attribute.String(otelhelper.ModeKey, string(request.Mode)))

	document, err := g.pipeline.GenerateDocument(ctx, request)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrToolHallucination):
			return nil, NewPipelineError("Generate", conv.ID, fmt.Errorf("%w: %v", ErrToolHallucination, err))
		default:
			return nil, NewPipelineError("Generate", conv.ID, fmt.Errorf("%w: %v", ErrGenerationFailure, err))
		}
	}

	version, err := g.accept(ctx, conv, query, document, classification)
	if err != nil {
		return nil, NewPipelineError("Accept", conv.ID, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	toolsUsed := document.OperationIDs()

	if request.Mode == pipeline.ModeEdit {
		g.publish(ctx, conv.ID, events.NewWorkflowEdited(version, toolsUsed, classification.Confidence))
	} else {
		g.publish(ctx, conv.ID, events.NewWorkflowGenerated(version, toolsUsed, classification.Confidence))
	}

	g.logger.InfoContext(ctx, "Workflow accepted",
		"conversation_id", conv.ID,
		"version", version.Version,
		"mode", request.Mode,
		"tools", toolsUsed,
	)

	return &GenerationResult{
		ConversationID: conv.ID,
		Verdict:        classification.Verdict,
		Confidence:     classification.Confidence,
		Mode:           request.Mode,
		Workflow:       &version.Document,
		Version:        version.Version,
		ToolsUsed:      toolsUsed,
	}, nil
}

// retrieve embeds the composed query and classifies the similarity results.
func (g *Generation) retrieve(ctx context.Context, conv *models.Conversation, query string) (pipeline.Classification, error) {
	composed := pipeline.ComposeQuery(conv, query)

	vector, err := g.embedder.Embed(ctx, composed, protocol.EmbeddingInputQuery)
	if err != nil {
		return pipeline.Classification{}, fmt.Errorf("%w: %v", ErrEmbeddingProvider, err)
	}

	results, err := g.vectorStore.Search(ctx, vector, g.topK)
	if err != nil {
		return pipeline.Classification{}, fmt.Errorf("%w: %v", ErrRetrievalProvider, err)
	}

	return g.classifier.Classify(results), nil
}

// accept records the request turn, persists the validated document as the
// next version, and records the assistant turn.
func (g *Generation) accept(ctx context.Context, conv *models.Conversation, query string, document models.WorkflowDocument, classification pipeline.Classification) (*models.WorkflowVersion, error) {
	scores := make(map[string]float64, len(classification.Candidates))
	tools := make([]string, 0, len(classification.Candidates))

	for _, candidate := range classification.Candidates {
		scores[candidate.Operation.ID] = candidate.Score
		tools = append(tools, candidate.Operation.ID)
	}

	userTurn := &models.ConversationTurn{
		Role:             models.TurnRoleUser,
		Content:          query,
		ToolsRetrieved:   tools,
		SimilarityScores: scores,
	}
	if err := g.conversations.AppendTurn(ctx, conv, userTurn); err != nil {
		return nil, err
	}

	version, err := g.conversations.AcceptDocument(ctx, conv.ID, document)
	if err != nil {
		return nil, err
	}

	assistantTurn := &models.ConversationTurn{
		Role:    models.TurnRoleAssistant,
		Content: fmt.Sprintf("Produced workflow version %d using: %s", version.Version, strings.Join(document.OperationIDs(), ", ")),
	}
	if err := g.conversations.AppendTurn(ctx, conv, assistantTurn); err != nil {
		return nil, err
	}

	return version, nil
}

// openConversation resolves the conversation for a generate call, creating
// one when the id is empty or unknown. A soft-deleted id is not found, never
// recreated.
func (g *Generation) openConversation(ctx context.Context, id string) (*models.Conversation, bool, error) {
	if id != "" {
		existing, err := g.conversations.Load(ctx, id)
		if err != nil {
			return nil, false, NewPipelineError("Generate", id, fmt.Errorf("%w: %v", ErrPersistence, err))
		}

		if existing != nil {
			return existing, false, nil
		}
	}

	created, err := g.conversations.LoadOrCreate(ctx, id)
	if err != nil {
		if persistence.IsConversationNotFound(err) {
			return nil, false, NewPipelineError("Generate", id, ErrConversationNotFound)
		}

		return nil, false, NewPipelineError("Generate", id, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	return created, true, nil
}

// publish emits a lifecycle event. Event delivery is best effort: a bus
// failure is logged and never fails the request.
func (g *Generation) publish(ctx context.Context, key string, event eventbus.Event) {
	if g.eventBus == nil {
		return
	}

	if err := g.eventBus.Publish(ctx, key, event); err != nil {
		g.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err.Error(),
		)
	}
}
