// Package persistence provides the data storage abstraction layer for
// conversations, turns and workflow versions.
package persistence

import (
	"context"

	"github.com/dukex/flowgen/pkg/models"
)

// ConversationRepository stores conversations and their turn history.
type ConversationRepository interface {
	// Create stores a new conversation. The conversation must carry an id.
	// An id that already has a record, live or soft-deleted, fails with
	// ErrConversationExists.
	Create(ctx context.Context, conversation *models.Conversation) error

	// ByID loads a conversation with its turns in chronological order.
	// Returns nil without error when the id is unknown or soft-deleted.
	ByID(ctx context.Context, id string) (*models.Conversation, error)

	// Exists reports whether a record exists for the id, soft-deleted
	// included. Distinguishes a deleted conversation from an unknown one.
	Exists(ctx context.Context, id string) (bool, error)

	// AppendTurn adds one turn to the conversation's history.
	AppendTurn(ctx context.Context, turn *models.ConversationTurn) error

	// ReplaceSummary atomically removes the turns compressed out of the kept
	// window along with any previous summary turn, and inserts the new
	// rolling summary in their place.
	ReplaceSummary(ctx context.Context, conversationID string, summary *models.ConversationTurn, droppedTurnIDs []string) error

	// SoftDelete marks a conversation deleted, retaining its data for
	// audit. Deleting an already deleted or unknown id is not an error.
	SoftDelete(ctx context.Context, id string) error
}

// WorkflowRepository stores the versioned workflow documents of a
// conversation. Versions are append-only; superseded versions stay
// addressable for history.
type WorkflowRepository interface {
	// SaveVersion stores a new workflow version. Version numbers within a
	// conversation are unique; a duplicate fails with ErrVersionConflict.
	SaveVersion(ctx context.Context, version *models.WorkflowVersion) error

	// CurrentVersion returns the highest-numbered version for the
	// conversation, or nil without error when none exists.
	CurrentVersion(ctx context.Context, conversationID string) (*models.WorkflowVersion, error)

	// Versions returns all versions for the conversation, oldest first.
	Versions(ctx context.Context, conversationID string) ([]*models.WorkflowVersion, error)
}

// Persistence bundles the repositories behind one connection lifecycle.
type Persistence interface {
	Conversations() ConversationRepository
	Workflows() WorkflowRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
