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

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// WorkflowRepository handles workflow version database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow version repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// SaveVersion stores a new workflow version. A duplicate (conversation,
// version) pair fails with ErrVersionConflict.
func (r *WorkflowRepository) SaveVersion(ctx context.Context, version *models.WorkflowVersion) error {
	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
				fmt.Errorf("failed to generate version id: %w", err))
		}

		version.ID = id.String()
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	documentJSON, err := json.Marshal(version.Document)
	if err != nil {
		return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
			fmt.Errorf("failed to marshal document: %w", err))
	}

	query := `
		INSERT INTO workflow_versions (id, conversation_id, version, document, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		version.ID, version.ConversationID, version.Version, documentJSON, version.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
				persistence.ErrVersionConflict)
		}

		return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
			fmt.Errorf("failed to insert version: %w", err))
	}

	return nil
}

// CurrentVersion returns the highest-numbered version, or nil when none
// exists.
func (r *WorkflowRepository) CurrentVersion(ctx context.Context, conversationID string) (*models.WorkflowVersion, error) {
	query := `
		SELECT
			id
		  , conversation_id
		  , version
		  , document
		  , created_at
		FROM workflow_versions
		WHERE conversation_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	version, err := r.scanVersion(r.db.QueryRowContext(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewVersionError("CurrentVersion", conversationID, 0, err)
	}

	return version, nil
}

// Versions returns all versions for the conversation, oldest first.
func (r *WorkflowRepository) Versions(ctx context.Context, conversationID string) ([]*models.WorkflowVersion, error) {
	query := `
		SELECT
			id
		  , conversation_id
		  , version
		  , document
		  , created_at
		FROM workflow_versions
		WHERE conversation_id = $1
		ORDER BY version ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, persistence.NewVersionError("Versions", conversationID, 0,
			fmt.Errorf("failed to query versions: %w", err))
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	versions := make([]*models.WorkflowVersion, 0)

	for rows.Next() {
		version, err := r.scanVersion(rows)
		if err != nil {
			return nil, persistence.NewVersionError("Versions", conversationID, 0, err)
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewVersionError("Versions", conversationID, 0,
			fmt.Errorf("error iterating versions: %w", err))
	}

	return versions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanVersion(row rowScanner) (*models.WorkflowVersion, error) {
	version := &models.WorkflowVersion{}

	var documentJSON []byte

	err := row.Scan(
		&version.ID,
		&version.ConversationID,
		&version.Version,
		&documentJSON,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(documentJSON, &version.Document); err != nil {
		return nil, fmt.Errorf("failed to parse document for version %s: %w", version.ID, err)
	}

	return version, nil
}
