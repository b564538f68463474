package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/protocol"
)

// maxCorrectiveAttempts bounds validator-triggered regeneration. The counter
// makes exceeding the cap structurally impossible; raising it is a deliberate
// cost decision, not a loop tweak.
const maxCorrectiveAttempts = 1

var (
	// ErrGenerationFailed marks generator errors and output that stays
	// malformed after the corrective attempt.
	ErrGenerationFailed = errors.New("workflow generation failed")

	// ErrToolHallucination marks a document still referencing unretrieved
	// tools after the corrective attempt.
	ErrToolHallucination = errors.New("generated workflow uses tools outside the candidate set")
)

// Pipeline runs the generate-validate loop against the text generator:
// one generation for the planned request, then at most one corrective
// regeneration when validation rejects the document.
type Pipeline struct {
	planner   *Planner
	validator *Validator
	generator protocol.Generator
	logger    *slog.Logger
}

// NewPipeline wires the generation planner, the result validator and the
// generator collaborator together.
func NewPipeline(planner *Planner, validator *Validator, generator protocol.Generator, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		planner:   planner,
		validator: validator,
		generator: generator,
		logger:    logger.With("module", "pipeline"),
	}
}

// Planner exposes the planner for mode selection by the caller.
func (p *Pipeline) Planner() *Planner {
	return p.planner
}

// GenerateDocument produces a validated workflow document for the request.
// A first validation failure triggers exactly one corrective generation with
// the allowed tools enumerated; a second failure ends the request with
// ErrToolHallucination (unretrieved tools) or ErrGenerationFailed
// (structurally invalid output). Nothing is retried beyond that.
func (p *Pipeline) GenerateDocument(ctx context.Context, request GenerationRequest) (models.WorkflowDocument, error) {
	prompt := request.Prompt

	var lastViolation error

	for attempt := 0; attempt <= maxCorrectiveAttempts; attempt++ {
		raw, err := p.generator.Generate(ctx, prompt)
		if err != nil {
			return models.WorkflowDocument{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}

		document, err := ParseDocument(raw)
		if err != nil {
			return models.WorkflowDocument{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}

		if err := p.validator.Validate(&document, request.Candidates); err != nil {
			lastViolation = err

			p.logger.WarnContext(ctx, "Generated workflow failed validation",
				"mode", request.Mode,
				"attempt", attempt,
				"violation", err.Error(),
			)

			prompt = buildCorrectivePrompt(request, err.Error())

			continue
		}

		return document, nil
	}

	var toolViolation *ToolViolationError
	if errors.As(lastViolation, &toolViolation) {
		return models.WorkflowDocument{}, fmt.Errorf("%w: %v", ErrToolHallucination, lastViolation)
	}

	return models.WorkflowDocument{}, fmt.Errorf("%w: %v", ErrGenerationFailed, lastViolation)
}
