package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowgen/pkg/models"
)

// Mode selects between authoring a new workflow and editing the current one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// GenerationRequest is the fully assembled request handed to the generator.
type GenerationRequest struct {
	Mode       Mode
	Prompt     string
	Query      string
	Candidates models.CandidateSet
}

// Planner decides generate-vs-edit mode and assembles the generation
// request: instructions, candidate operations, and the prior document when
// editing.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(logger *slog.Logger) *Planner {
	return &Planner{logger: logger.With("module", "planner")}
}

// Plan selects the mode from the conversation's current workflow version:
// edit when one exists, create otherwise. Never both, never neither.
func (p *Planner) Plan(current *models.WorkflowVersion, candidates models.CandidateSet, query string) GenerationRequest {
	request := GenerationRequest{
		Mode:       ModeCreate,
		Query:      query,
		Candidates: candidates,
	}

	if current != nil {
		request.Mode = ModeEdit
		request.Prompt = buildEditPrompt(current.Document, query, candidates)
	} else {
		request.Prompt = buildCreatePrompt(query, candidates)
	}

	p.logger.Debug("Planned generation request",
		"mode", request.Mode,
		"candidates", len(candidates),
	)

	return request
}

// ParseDocument extracts a workflow document from raw generator output.
// Models wrap JSON in markdown fences often enough that stripping them here
// is cheaper than another generation round trip.
func ParseDocument(raw string) (models.WorkflowDocument, error) {
	var document models.WorkflowDocument

	cleaned := stripFences(raw)
	if cleaned == "" {
		return document, fmt.Errorf("empty generator output")
	}

	if err := json.Unmarshal([]byte(cleaned), &document); err != nil {
		return document, fmt.Errorf("generator output is not valid JSON: %w", err)
	}

	return document, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	return strings.TrimSpace(cleaned)
}
