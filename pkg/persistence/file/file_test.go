package file_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/persistence"
	"github.com/dukex/flowgen/pkg/persistence/file"
)

func setupPersistence(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

func createConversation(t *testing.T, p *file.Persistence) *models.Conversation {
	t.Helper()

	conversation := &models.Conversation{ID: uuid.NewString()}
	require.NoError(t, p.Conversations().Create(t.Context(), conversation))

	return conversation
}

func TestConversationRepository_CreateAndLoad(t *testing.T) {
	p := setupPersistence(t)
	conversation := createConversation(t, p)

	loaded, err := p.Conversations().ByID(t.Context(), conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, conversation.ID, loaded.ID)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestConversationRepository_CreateRefusesExistingID(t *testing.T) {
	p := setupPersistence(t)
	conversation := createConversation(t, p)

	turn := &models.ConversationTurn{
		ConversationID: conversation.ID,
		Role:           models.TurnRoleUser,
		Content:        "send form responses to gmail",
	}
	require.NoError(t, p.Conversations().AppendTurn(t.Context(), turn))

	err := p.Conversations().Create(t.Context(), &models.Conversation{ID: conversation.ID})
	require.Error(t, err)
	assert.True(t, persistence.IsConversationExists(err))

	// A soft-deleted record is an audit record, not a reusable slot.
	require.NoError(t, p.Conversations().SoftDelete(t.Context(), conversation.ID))

	err = p.Conversations().Create(t.Context(), &models.Conversation{ID: conversation.ID})
	require.Error(t, err)
	assert.True(t, persistence.IsConversationExists(err))
}

func TestConversationRepository_Exists(t *testing.T) {
	p := setupPersistence(t)
	conversation := createConversation(t, p)

	exists, err := p.Conversations().Exists(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = p.Conversations().Exists(t.Context(), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, exists)

	// Soft delete hides the conversation from ByID but not from Exists.
	require.NoError(t, p.Conversations().SoftDelete(t.Context(), conversation.ID))

	exists, err = p.Conversations().Exists(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConversationRepository_UnknownIDYieldsNil(t *testing.T) {
	p := setupPersistence(t)

	loaded, err := p.Conversations().ByID(t.Context(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestConversationRepository_AppendTurnRoundTrip(t *testing.T) {
	p := setupPersistence(t)
	conversation := createConversation(t, p)

	turn := &models.ConversationTurn{
		ConversationID:   conversation.ID,
		Role:             models.TurnRoleUser,
		Content:          "send slack alerts for new emails",
		ToolsRetrieved:   []string{"slack.send-message", "gmail.search-emails"},
		SimilarityScores: map[string]float64{"slack.send-message": 0.82},
	}
	require.NoError(t, p.Conversations().AppendTurn(t.Context(), turn))
	assert.NotEmpty(t, turn.ID)

	loaded, err := p.Conversations().ByID(t.Context(), conversation.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 1)
	assert.Equal(t, "send slack alerts for new emails", loaded.Turns[0].Content)
	assert.InDelta(t, 0.82, loaded.Turns[0].SimilarityScores["slack.send-message"], 0.001)
}

func TestConversationRepository_AppendTurnUnknownConversation(t *testing.T) {
	p := setupPersistence(t)

	turn := &models.ConversationTurn{
		ConversationID: uuid.NewString(),
		Role:           models.TurnRoleUser,
		Content:        "hello",
	}

	err := p.Conversations().AppendTurn(t.Context(), turn)
	require.Error(t, err)
	assert.True(t, persistence.IsConversationNotFound(err))
}

func TestConversationRepository_ReplaceSummary(t *testing.T) {
	p := setupPersistence(t)
	conversation := createConversation(t, p)

	turns := make([]*models.ConversationTurn, 0, 4)

	for _, content := range []string{"first", "second", "third", "fourth"} {
		turn := &models.ConversationTurn{
			ConversationID: conversation.ID,
			Role:           models.TurnRoleUser,
			Content:        content,
		}
		require.NoError(t, p.Conversations().AppendTurn(t.Context(), turn))
		turns = append(turns, turn)
	}

	summary := &models.ConversationTurn{
		Role:    models.TurnRoleAssistant,
		Content: "User set up an email workflow.",
	}
	dropped := []string{turns[0].ID, turns[1].ID}
	require.NoError(t, p.Conversations().ReplaceSummary(t.Context(), conversation.ID, summary, dropped))

	loaded, err := p.Conversations().ByID(t.Context(), conversation.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 3)
	assert.True(t, loaded.Turns[0].Summary)
	assert.Equal(t, "User set up an email workflow.", loaded.Turns[0].Content)
	assert.Equal(t, "third", loaded.Turns[1].Content)
	assert.Equal(t, "fourth", loaded.Turns[2].Content)

	// A second summary replaces the first instead of stacking.
	replacement := &models.ConversationTurn{
		Role:    models.TurnRoleAssistant,
		Content: "User set up an email workflow, then added Slack.",
	}
	require.NoError(t, p.Conversations().ReplaceSummary(t.Context(), conversation.ID, replacement, []string{turns[2].ID}))

	loaded, err = p.Conversations().ByID(t.Context(), conversation.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 2)
	assert.True(t, loaded.Turns[0].Summary)
	assert.Equal(t, "User set up an email workflow, then added Slack.", loaded.Turns[0].Content)
	assert.Equal(t, "fourth", loaded.Turns[1].Content)
}

func TestConversationRepository_SoftDeleteIsIdempotent(t *testing.T) {
	p := setupPersistence(t)
	conversation := createConversation(t, p)

	require.NoError(t, p.Conversations().SoftDelete(t.Context(), conversation.ID))

	loaded, err := p.Conversations().ByID(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Repeated deletes and unknown ids both succeed.
	require.NoError(t, p.Conversations().SoftDelete(t.Context(), conversation.ID))
	require.NoError(t, p.Conversations().SoftDelete(t.Context(), uuid.NewString()))
}

func sampleDocument(operationID string) models.WorkflowDocument {
	return models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			{ID: "node1", Type: operationID},
		},
		Connections: map[string]models.NodeConnection{},
	}
}

func TestWorkflowRepository_SaveAndLoadVersions(t *testing.T) {
	p := setupPersistence(t)
	conversationID := uuid.NewString()

	current, err := p.Workflows().CurrentVersion(t.Context(), conversationID)
	require.NoError(t, err)
	assert.Nil(t, current)

	for i, operationID := range []string{"slack.send-message", "gmail.send-email"} {
		version := &models.WorkflowVersion{
			ConversationID: conversationID,
			Version:        i + 1,
			Document:       sampleDocument(operationID),
		}
		require.NoError(t, p.Workflows().SaveVersion(t.Context(), version))
		assert.NotEmpty(t, version.ID)
	}

	current, err = p.Workflows().CurrentVersion(t.Context(), conversationID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, "gmail.send-email", current.Document.Nodes[0].Type)

	versions, err := p.Workflows().Versions(t.Context(), conversationID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
}

func TestWorkflowRepository_DuplicateVersionConflicts(t *testing.T) {
	p := setupPersistence(t)
	conversationID := uuid.NewString()

	version := &models.WorkflowVersion{
		ConversationID: conversationID,
		Version:        1,
		Document:       sampleDocument("slack.send-message"),
	}
	require.NoError(t, p.Workflows().SaveVersion(t.Context(), version))

	duplicate := &models.WorkflowVersion{
		ConversationID: conversationID,
		Version:        1,
		Document:       sampleDocument("gmail.send-email"),
	}

	err := p.Workflows().SaveVersion(t.Context(), duplicate)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := setupPersistence(t)
	require.NoError(t, p.HealthCheck(t.Context()))

	missing := file.NewPersistence("/nonexistent/flowgen-test-root")
	require.Error(t, missing.HealthCheck(t.Context()))
}
