package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dukex/flowgen/pkg/config"
	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/persistence"
	"github.com/dukex/flowgen/pkg/pipeline"
	"github.com/dukex/flowgen/pkg/protocol"
)

// Manager owns conversation lifecycle and history. Summarization runs as a
// side effect of appending a turn, never as a scheduled job.
type Manager struct {
	persistence persistence.Persistence
	generator   protocol.Generator
	config      config.ConversationConfig
	guard       *Guard
	logger      *slog.Logger
}

// NewManager creates a conversation manager.
func NewManager(p persistence.Persistence, generator protocol.Generator, cfg config.ConversationConfig, logger *slog.Logger) *Manager {
	return &Manager{
		persistence: p,
		generator:   generator,
		config:      cfg,
		guard:       NewGuard(),
		logger:      logger.With("module", "conversation"),
	}
}

// Lock acquires the per-conversation exclusive section. The caller holds it
// across the whole read-validate-write sequence of a unit of work.
func (m *Manager) Lock(conversationID string) func() {
	return m.guard.Lock(conversationID)
}

// LoadOrCreate returns the conversation for the id, creating it when the id
// is unknown. An empty id gets a fresh UUID. A supplied id whose
// conversation was soft deleted fails with ErrConversationNotFound: the
// deleted record stays retained for audit and is never resurrected.
func (m *Manager) LoadOrCreate(ctx context.Context, id string) (*models.Conversation, error) {
	supplied := id != ""
	if !supplied {
		id = uuid.NewString()
	}

	conversation, err := m.persistence.Conversations().ByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	if conversation != nil {
		return conversation, nil
	}

	if supplied {
		exists, err := m.persistence.Conversations().Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check conversation: %w", err)
		}

		if exists {
			return nil, fmt.Errorf("conversation %s is deleted: %w", id, persistence.ErrConversationNotFound)
		}
	}

	conversation = &models.Conversation{ID: id}
	if err := m.persistence.Conversations().Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	m.logger.InfoContext(ctx, "Created conversation", "conversation_id", id)

	return conversation, nil
}

// Load returns the conversation for the id, or nil when it is unknown or
// soft-deleted.
func (m *Manager) Load(ctx context.Context, id string) (*models.Conversation, error) {
	conversation, err := m.persistence.Conversations().ByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	return conversation, nil
}

// AppendTurn records one turn and, when the history has outgrown the
// retention window, compresses the older turns into the rolling summary.
// Summarization failures are logged and skipped; they never fail the
// request that triggered them.
func (m *Manager) AppendTurn(ctx context.Context, conversation *models.Conversation, turn *models.ConversationTurn) error {
	turn.ConversationID = conversation.ID

	if err := m.persistence.Conversations().AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	conversation.Turns = append(conversation.Turns, turn)

	if err := m.summarizeIfNeeded(ctx, conversation); err != nil {
		m.logger.WarnContext(ctx, "History summarization skipped",
			"conversation_id", conversation.ID,
			"error", err.Error(),
		)
	}

	return nil
}

// CurrentVersion returns the conversation's current workflow version, or nil
// when none has been accepted yet.
func (m *Manager) CurrentVersion(ctx context.Context, conversationID string) (*models.WorkflowVersion, error) {
	version, err := m.persistence.Workflows().CurrentVersion(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current version: %w", err)
	}

	return version, nil
}

// Versions returns the conversation's full version history, oldest first.
func (m *Manager) Versions(ctx context.Context, conversationID string) ([]*models.WorkflowVersion, error) {
	versions, err := m.persistence.Workflows().Versions(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}

	return versions, nil
}

// AcceptDocument persists the validated document as the next workflow
// version: previous version + 1, starting at 1. The caller must hold the
// conversation's lock so the version sequence stays gapless.
func (m *Manager) AcceptDocument(ctx context.Context, conversationID string, document models.WorkflowDocument) (*models.WorkflowVersion, error) {
	current, err := m.persistence.Workflows().CurrentVersion(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current version: %w", err)
	}

	next := 1
	if current != nil {
		next = current.Version + 1
	}

	version := &models.WorkflowVersion{
		ConversationID: conversationID,
		Version:        next,
		Document:       document,
	}

	if err := m.persistence.Workflows().SaveVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	m.logger.InfoContext(ctx, "Accepted workflow version",
		"conversation_id", conversationID,
		"version", next,
	)

	return version, nil
}

// SoftDelete marks the conversation deleted. Idempotent.
func (m *Manager) SoftDelete(ctx context.Context, id string) error {
	if err := m.persistence.Conversations().SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to soft delete conversation: %w", err)
	}

	return nil
}

// summarizeIfNeeded compresses everything but the most recent KeepTurns
// verbatim turns into one rolling summary once the verbatim count exceeds
// MaxTurns. The summary replaces any previous one: it always describes
// "everything before the kept window".
func (m *Manager) summarizeIfNeeded(ctx context.Context, conversation *models.Conversation) error {
	verbatim := conversation.VerbatimTurns()
	if len(verbatim) <= m.config.MaxTurns {
		return nil
	}

	cutoff := len(verbatim) - m.config.KeepTurns
	compressed := verbatim[:cutoff]
	kept := verbatim[cutoff:]

	previous := conversation.SummaryTurn()

	content, err := m.summarize(ctx, previous, compressed)
	if err != nil {
		return err
	}

	droppedIDs := make([]string, 0, len(compressed))
	for _, turn := range compressed {
		droppedIDs = append(droppedIDs, turn.ID)
	}

	summary := &models.ConversationTurn{
		Role:    models.TurnRoleAssistant,
		Content: content,
		Summary: true,
		// Dated just before the kept window so chronological ordering of
		// the stored turns puts the summary first.
		CreatedAt: compressed[len(compressed)-1].CreatedAt,
	}

	if err := m.persistence.Conversations().ReplaceSummary(ctx, conversation.ID, summary, droppedIDs); err != nil {
		return err
	}

	conversation.Turns = append([]*models.ConversationTurn{summary}, kept...)

	m.logger.InfoContext(ctx, "Compressed conversation history",
		"conversation_id", conversation.ID,
		"compressed_turns", len(compressed),
		"kept_turns", len(kept),
	)

	return nil
}

// summarize asks the generator for the new rolling summary. The previous
// summary is folded in as the leading turn so nothing already compressed is
// lost.
func (m *Manager) summarize(ctx context.Context, previous *models.ConversationTurn, compressed []*models.ConversationTurn) (string, error) {
	turns := compressed
	if previous != nil {
		turns = append([]*models.ConversationTurn{previous}, compressed...)
	}

	content, err := m.generator.Generate(ctx, pipeline.BuildSummaryPrompt(turns))
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("summary generation returned empty text")
	}

	return content, nil
}
