// Package web provides HTTP request and response types for the workflow
// generation API.
package web

import (
	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/services"
)

// GenerateWorkflowRequest is the body for create-or-continue generation.
type GenerateWorkflowRequest struct {
	Query          string `json:"query"                     validate:"required,max=1000"`
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,uuid"`
}

// EditWorkflowRequest is the body for editing an existing workflow.
type EditWorkflowRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Instruction    string `json:"instruction"     validate:"required,max=500"`
}

// WorkflowResponse is the shared response shape for generate and edit.
type WorkflowResponse struct {
	ConversationID string                   `json:"conversation_id"`
	Verdict        string                   `json:"verdict"`
	Confidence     float64                  `json:"confidence"`
	Mode           string                   `json:"mode,omitempty"`
	Workflow       *models.WorkflowDocument `json:"workflow,omitempty"`
	Version        int                      `json:"version,omitempty"`
	ToolsUsed      []string                 `json:"tools_used,omitempty"`
	Message        string                   `json:"message,omitempty"`
}

// TransformWorkflowResponse maps a service result onto the wire shape.
func TransformWorkflowResponse(result *services.GenerationResult) WorkflowResponse {
	return WorkflowResponse{
		ConversationID: result.ConversationID,
		Verdict:        string(result.Verdict),
		Confidence:     result.Confidence,
		Mode:           string(result.Mode),
		Workflow:       result.Workflow,
		Version:        result.Version,
		ToolsUsed:      result.ToolsUsed,
		Message:        result.Message,
	}
}

// TurnResponse is one turn of a conversation's history.
type TurnResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Summary   bool   `json:"summary,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ConversationResponse is the read model for one conversation.
type ConversationResponse struct {
	ID             string                  `json:"id"`
	Turns          []TurnResponse          `json:"turns"`
	CurrentVersion *models.WorkflowVersion `json:"current_version,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at"`
}

// TransformConversationResponse maps a conversation view onto the wire shape.
func TransformConversationResponse(view *services.ConversationView) ConversationResponse {
	turns := make([]TurnResponse, 0, len(view.Conversation.Turns))
	for _, turn := range view.Conversation.Turns {
		turns = append(turns, TurnResponse{
			ID:        turn.ID,
			Role:      string(turn.Role),
			Content:   turn.Content,
			Summary:   turn.Summary,
			CreatedAt: turn.CreatedAt.UTC().Format(timeLayout),
		})
	}

	return ConversationResponse{
		ID:             view.Conversation.ID,
		Turns:          turns,
		CurrentVersion: view.CurrentVersion,
		CreatedAt:      view.Conversation.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:      view.Conversation.UpdatedAt.UTC().Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
