package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/persistence"
)

// ConversationRepository handles conversation and turn database operations.
type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sql.DB, logger *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, logger: logger}
}

// Create stores a new conversation row. An id that already has a row, live
// or soft-deleted, fails with ErrConversationExists.
func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	now := time.Now().UTC()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}

	conversation.UpdatedAt = now

	query := `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.ExecContext(ctx, query, conversation.ID, conversation.CreatedAt, conversation.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return persistence.NewConversationError("Create", conversation.ID, persistence.ErrConversationExists)
		}

		return persistence.NewConversationError("Create", conversation.ID,
			fmt.Errorf("failed to insert conversation: %w", err))
	}

	return nil
}

// Exists reports whether a conversation row exists for the id, soft-deleted
// included.
func (r *ConversationRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, persistence.NewConversationError("Exists", id,
			fmt.Errorf("failed to check conversation: %w", err))
	}

	return exists, nil
}

// ByID loads a conversation with its turns in chronological order. Unknown
// or soft-deleted ids yield nil without error.
func (r *ConversationRepository) ByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
		SELECT
			id
		  , created_at
		  , updated_at
		  , deleted_at
		FROM conversations
		WHERE id = $1 AND deleted_at IS NULL
	`

	conversation := &models.Conversation{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&conversation.ID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
		&conversation.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewConversationError("ByID", id,
			fmt.Errorf("failed to scan conversation: %w", err))
	}

	turns, err := r.loadTurns(ctx, id)
	if err != nil {
		return nil, persistence.NewConversationError("ByID", id, err)
	}

	conversation.Turns = turns

	return conversation, nil
}

// AppendTurn adds one turn to the conversation's history.
func (r *ConversationRepository) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	toolsJSON, err := json.Marshal(turn.ToolsRetrieved)
	if err != nil {
		return persistence.NewConversationError("AppendTurn", turn.ConversationID,
			fmt.Errorf("failed to marshal tools: %w", err))
	}

	scoresJSON, err := json.Marshal(turn.SimilarityScores)
	if err != nil {
		return persistence.NewConversationError("AppendTurn", turn.ConversationID,
			fmt.Errorf("failed to marshal scores: %w", err))
	}

	query := `
		INSERT INTO conversation_turns
			(id, conversation_id, role, content, summary, tools_retrieved, similarity_scores, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		turn.ID, turn.ConversationID, turn.Role, turn.Content, turn.Summary,
		toolsJSON, scoresJSON, turn.CreatedAt)
	if err != nil {
		return persistence.NewConversationError("AppendTurn", turn.ConversationID,
			fmt.Errorf("failed to insert turn: %w", err))
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = NOW() WHERE id = $1", turn.ConversationID)
	if err != nil {
		return persistence.NewConversationError("AppendTurn", turn.ConversationID,
			fmt.Errorf("failed to touch conversation: %w", err))
	}

	return nil
}

// ReplaceSummary atomically deletes the compressed turns and any previous
// summary turn, then inserts the new rolling summary dated before the kept
// window so chronological order survives the rewrite.
func (r *ConversationRepository) ReplaceSummary(ctx context.Context, conversationID string, summary *models.ConversationTurn, droppedTurnIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewConversationError("ReplaceSummary", conversationID,
			fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM conversation_turns WHERE conversation_id = $1 AND (summary OR id = ANY($2))",
		conversationID, pq.Array(droppedTurnIDs))
	if err != nil {
		return persistence.NewConversationError("ReplaceSummary", conversationID,
			fmt.Errorf("failed to delete compressed turns: %w", err))
	}

	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}

	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	summary.ConversationID = conversationID
	summary.Summary = true

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_turns (id, conversation_id, role, content, summary, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`, summary.ID, conversationID, summary.Role, summary.Content, summary.CreatedAt)
	if err != nil {
		return persistence.NewConversationError("ReplaceSummary", conversationID,
			fmt.Errorf("failed to insert summary turn: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewConversationError("ReplaceSummary", conversationID,
			fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

// SoftDelete marks the conversation deleted. Idempotent: unknown ids and
// repeated deletes succeed.
func (r *ConversationRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE conversations
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewConversationError("SoftDelete", id,
			fmt.Errorf("failed to soft delete conversation: %w", err))
	}

	return nil
}

func (r *ConversationRepository) loadTurns(ctx context.Context, conversationID string) ([]*models.ConversationTurn, error) {
	query := `
		SELECT
			id
		  , conversation_id
		  , role
		  , content
		  , summary
		  , tools_retrieved
		  , similarity_scores
		  , created_at
		FROM conversation_turns
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	turns := make([]*models.ConversationTurn, 0)

	for rows.Next() {
		turn := &models.ConversationTurn{}

		var toolsJSON, scoresJSON []byte

		err := rows.Scan(
			&turn.ID,
			&turn.ConversationID,
			&turn.Role,
			&turn.Content,
			&turn.Summary,
			&toolsJSON,
			&scoresJSON,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}

		if len(toolsJSON) > 0 {
			if err := json.Unmarshal(toolsJSON, &turn.ToolsRetrieved); err != nil {
				return nil, fmt.Errorf("failed to parse tools for turn %s: %w", turn.ID, err)
			}
		}

		if len(scoresJSON) > 0 {
			if err := json.Unmarshal(scoresJSON, &turn.SimilarityScores); err != nil {
				return nil, fmt.Errorf("failed to parse scores for turn %s: %w", turn.ID, err)
			}
		}

		turns = append(turns, turn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	return turns, nil
}
