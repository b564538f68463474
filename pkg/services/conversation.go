package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowgen/pkg/conversation"
	"github.com/dukex/flowgen/pkg/eventbus"
	"github.com/dukex/flowgen/pkg/events"
	"github.com/dukex/flowgen/pkg/models"
)

// ConversationView is the read model returned for one conversation: its
// turn history (rolling summary included) and the current workflow version.
type ConversationView struct {
	Conversation   *models.Conversation    `json:"conversation"`
	CurrentVersion *models.WorkflowVersion `json:"current_version,omitempty"`
}

// Conversations exposes conversation lookup and deletion.
type Conversations struct {
	manager  *conversation.Manager
	eventBus eventbus.EventBus
	logger   *slog.Logger
}

// NewConversations creates the conversation service.
func NewConversations(manager *conversation.Manager, eventBus eventbus.EventBus, logger *slog.Logger) *Conversations {
	return &Conversations{
		manager:  manager,
		eventBus: eventBus,
		logger:   logger.With("module", "conversations"),
	}
}

// Get returns the conversation's history and current workflow version.
// Fails with ErrConversationNotFound for unknown or soft-deleted ids.
func (s *Conversations) Get(ctx context.Context, id string) (*ConversationView, error) {
	conv, err := s.manager.Load(ctx, id)
	if err != nil {
		return nil, NewPipelineError("Get", id, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	if conv == nil {
		return nil, NewPipelineError("Get", id, ErrConversationNotFound)
	}

	current, err := s.manager.CurrentVersion(ctx, id)
	if err != nil {
		return nil, NewPipelineError("Get", id, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	return &ConversationView{Conversation: conv, CurrentVersion: current}, nil
}

// Versions returns the conversation's workflow version history, oldest
// first. Fails with ErrConversationNotFound for unknown or deleted ids.
func (s *Conversations) Versions(ctx context.Context, id string) ([]*models.WorkflowVersion, error) {
	conv, err := s.manager.Load(ctx, id)
	if err != nil {
		return nil, NewPipelineError("Versions", id, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	if conv == nil {
		return nil, NewPipelineError("Versions", id, ErrConversationNotFound)
	}

	versions, err := s.manager.Versions(ctx, id)
	if err != nil {
		return nil, NewPipelineError("Versions", id, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	return versions, nil
}

// Delete soft-deletes a conversation. Idempotent: deleting an unknown or
// already deleted id succeeds.
func (s *Conversations) Delete(ctx context.Context, id string) error {
	if err := s.manager.SoftDelete(ctx, id); err != nil {
		return NewPipelineError("Delete", id, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	if s.eventBus != nil {
		if err := s.eventBus.Publish(ctx, id, events.NewConversationDeleted(id)); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish event",
				"event_type", events.ConversationDeletedEvent,
				"error", err.Error(),
			)
		}
	}

	return nil
}
