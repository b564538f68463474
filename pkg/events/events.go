// Package events defines event types and structures for generation
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowgen/pkg/models"
)

type EventType string

// Topic carries every generation lifecycle event.
const Topic = "flowgen.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Conversation lifecycle events.
	ConversationCreatedEvent EventType = "conversation.created"
	ConversationDeletedEvent EventType = "conversation.deleted"

	// Workflow lifecycle events.
	WorkflowGeneratedEvent EventType = "workflow.generated"
	WorkflowEditedEvent    EventType = "workflow.edited"

	// Catalog ingestion events.
	CatalogIndexedEvent EventType = "catalog.indexed"
)

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent creates a base event with the specified type.
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// GetType returns the event type.
func (e BaseEvent) GetType() EventType {
	return e.Type
}

// ConversationCreated is published when a request starts a new conversation.
type ConversationCreated struct {
	BaseEvent

	ConversationID string `json:"conversation_id"`
}

// NewConversationCreated creates a conversation created event.
func NewConversationCreated(conversationID string) *ConversationCreated {
	return &ConversationCreated{
		BaseEvent:      NewBaseEvent(ConversationCreatedEvent),
		ConversationID: conversationID,
	}
}

// ConversationDeleted is published when a conversation is soft deleted.
type ConversationDeleted struct {
	BaseEvent

	ConversationID string `json:"conversation_id"`
}

// NewConversationDeleted creates a conversation deleted event.
func NewConversationDeleted(conversationID string) *ConversationDeleted {
	return &ConversationDeleted{
		BaseEvent:      NewBaseEvent(ConversationDeletedEvent),
		ConversationID: conversationID,
	}
}

// WorkflowGenerated is published when a validated document is accepted as a
// workflow version. Edits publish WorkflowEdited instead.
type WorkflowGenerated struct {
	BaseEvent

	ConversationID string   `json:"conversation_id"`
	Version        int      `json:"version"`
	ToolsUsed      []string `json:"tools_used"`
	Confidence     float64  `json:"confidence"`
	Mode           string   `json:"mode"`
}

// NewWorkflowGenerated creates a workflow generated event.
func NewWorkflowGenerated(version *models.WorkflowVersion, toolsUsed []string, confidence float64) *WorkflowGenerated {
	return &WorkflowGenerated{
		BaseEvent:      NewBaseEvent(WorkflowGeneratedEvent),
		ConversationID: version.ConversationID,
		Version:        version.Version,
		ToolsUsed:      toolsUsed,
		Confidence:     confidence,
		Mode:           "create",
	}
}

// WorkflowEdited is published when an edit produces a new workflow version.
type WorkflowEdited struct {
	BaseEvent

	ConversationID string   `json:"conversation_id"`
	Version        int      `json:"version"`
	ToolsUsed      []string `json:"tools_used"`
	Confidence     float64  `json:"confidence"`
}

// NewWorkflowEdited creates a workflow edited event.
func NewWorkflowEdited(version *models.WorkflowVersion, toolsUsed []string, confidence float64) *WorkflowEdited {
	return &WorkflowEdited{
		BaseEvent:      NewBaseEvent(WorkflowEditedEvent),
		ConversationID: version.ConversationID,
		Version:        version.Version,
		ToolsUsed:      toolsUsed,
		Confidence:     confidence,
	}
}

// CatalogIndexed is published when the indexer finishes seeding the vector
// store.
type CatalogIndexed struct {
	BaseEvent

	Collection string `json:"collection"`
	Operations int    `json:"operations"`
}

// NewCatalogIndexed creates a catalog indexed event.
func NewCatalogIndexed(collection string, operations int) *CatalogIndexed {
	return &CatalogIndexed{
		BaseEvent:  NewBaseEvent(CatalogIndexedEvent),
		Collection: collection,
		Operations: operations,
	}
}
