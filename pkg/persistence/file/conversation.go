package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/persistence"
)

const fileMode = 0o644

// ConversationRepository stores each conversation, turns included, as one
// JSON file under <root>/conversations/<id>.json.
type ConversationRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *ConversationRepository) path(id string) string {
	return filepath.Join(r.root, "conversations", id+".json")
}

// Create stores a new conversation. An id that already has a file, live or
// soft-deleted, fails with ErrConversationExists so the audit record survives.
func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.read(conversation.ID)
	if err != nil {
		return persistence.NewConversationError("Create", conversation.ID, err)
	}

	if existing != nil {
		return persistence.NewConversationError("Create", conversation.ID, persistence.ErrConversationExists)
	}

	now := time.Now().UTC()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}

	conversation.UpdatedAt = now

	if err := r.write(conversation); err != nil {
		return persistence.NewConversationError("Create", conversation.ID, err)
	}

	return nil
}

// ByID loads a conversation. Unknown or soft-deleted ids yield nil without
// error.
func (r *ConversationRepository) ByID(ctx context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, err := r.read(id)
	if err != nil {
		return nil, persistence.NewConversationError("ByID", id, err)
	}

	if conversation == nil || conversation.IsDeleted() {
		return nil, nil
	}

	return conversation, nil
}

// Exists reports whether a file is on disk for the id, soft-deleted included.
func (r *ConversationRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, err := r.read(id)
	if err != nil {
		return false, persistence.NewConversationError("Exists", id, err)
	}

	return conversation != nil, nil
}

// AppendTurn adds one turn to the conversation's history.
func (r *ConversationRepository) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, err := r.read(turn.ConversationID)
	if err != nil {
		return persistence.NewConversationError("AppendTurn", turn.ConversationID, err)
	}

	if conversation == nil || conversation.IsDeleted() {
		return persistence.NewConversationError("AppendTurn", turn.ConversationID, persistence.ErrConversationNotFound)
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	conversation.Turns = append(conversation.Turns, turn)
	conversation.UpdatedAt = time.Now().UTC()

	if err := r.write(conversation); err != nil {
		return persistence.NewConversationError("AppendTurn", turn.ConversationID, err)
	}

	return nil
}

// ReplaceSummary drops the compressed turns and any previous summary turn,
// then prepends the new rolling summary.
func (r *ConversationRepository) ReplaceSummary(ctx context.Context, conversationID string, summary *models.ConversationTurn, droppedTurnIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, err := r.read(conversationID)
	if err != nil {
		return persistence.NewConversationError("ReplaceSummary", conversationID, err)
	}

	if conversation == nil || conversation.IsDeleted() {
		return persistence.NewConversationError("ReplaceSummary", conversationID, persistence.ErrConversationNotFound)
	}

	dropped := make(map[string]bool, len(droppedTurnIDs))
	for _, id := range droppedTurnIDs {
		dropped[id] = true
	}

	kept := make([]*models.ConversationTurn, 0, len(conversation.Turns))

	for _, turn := range conversation.Turns {
		if turn.Summary || dropped[turn.ID] {
			continue
		}

		kept = append(kept, turn)
	}

	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}

	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	summary.ConversationID = conversationID
	summary.Summary = true

	conversation.Turns = append([]*models.ConversationTurn{summary}, kept...)
	conversation.UpdatedAt = time.Now().UTC()

	if err := r.write(conversation); err != nil {
		return persistence.NewConversationError("ReplaceSummary", conversationID, err)
	}

	return nil
}

// SoftDelete marks the conversation deleted. Idempotent: unknown ids and
// repeated deletes succeed.
func (r *ConversationRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, err := r.read(id)
	if err != nil {
		return persistence.NewConversationError("SoftDelete", id, err)
	}

	if conversation == nil || conversation.IsDeleted() {
		return nil
	}

	now := time.Now().UTC()
	conversation.DeletedAt = &now
	conversation.UpdatedAt = now

	if err := r.write(conversation); err != nil {
		return persistence.NewConversationError("SoftDelete", id, err)
	}

	return nil
}

func (r *ConversationRepository) read(id string) (*models.Conversation, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conversation models.Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("failed to parse conversation file: %w", err)
	}

	return &conversation, nil
}

func (r *ConversationRepository) write(conversation *models.Conversation) error {
	path := r.path(conversation.ID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create conversations directory: %w", err)
	}

	data, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}

	return nil
}
