package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitOperationID(t *testing.T) {
	testCases := []struct {
		name          string
		id            string
		wantTool      string
		wantOperation string
		wantOK        bool
	}{
		{name: "namespaced", id: "gmail.send-email", wantTool: "gmail", wantOperation: "send-email", wantOK: true},
		{name: "extra separators stay in operation", id: "sheets.append.row", wantTool: "sheets", wantOperation: "append.row", wantOK: true},
		{name: "missing separator", id: "gmail", wantOK: false},
		{name: "empty tool", id: ".send-email", wantOK: false},
		{name: "empty operation", id: "gmail.", wantOK: false},
		{name: "empty", id: "", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			toolSlug, operationSlug, ok := SplitOperationID(tc.id)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantTool, toolSlug)
			assert.Equal(t, tc.wantOperation, operationSlug)
		})
	}
}

func TestToolOperation_EmbeddingText(t *testing.T) {
	operation := &ToolOperation{
		ID:                   "gmail.send-email",
		ToolSlug:             "gmail",
		ToolDisplayName:      "Gmail",
		OperationSlug:        "send-email",
		OperationDisplayName: "Send Email",
		Category:             "email",
		Type:                 OperationTypeAction,
		Description:          "Send an email through a Gmail account",
		UseCases:             []string{"notify a person", "send a report"},
		Keywords:             []string{"email", "mail", "gmail"},
		RequiredFields:       []string{"to", "subject"},
		Parameters: &JSONSchema{
			Type: "object",
			Properties: map[string]*Property{
				"to":      {Type: "string", Format: "email"},
				"subject": {Type: "string"},
				"body":    {Type: "string"},
			},
			Required: []string{"to", "subject"},
		},
	}

	text := operation.EmbeddingText()

	assert.Contains(t, text, "Tool: Gmail")
	assert.Contains(t, text, "Operation: Send Email")
	assert.Contains(t, text, "Use this when: notify a person, send a report")
	assert.Contains(t, text, "Required inputs: to, subject")
	assert.Contains(t, text, "Optional inputs: body")
	assert.Contains(t, text, "Category: email")
	assert.Contains(t, text, "Type: action")
}

func TestToolOperation_EmbeddingText_Defaults(t *testing.T) {
	operation := &ToolOperation{
		ID:            "webhook.incoming",
		ToolSlug:      "webhook",
		OperationSlug: "incoming",
	}

	text := operation.EmbeddingText()

	assert.Contains(t, text, "Use this when: General purpose")
	assert.Contains(t, text, "Common phrases: N/A")
	assert.Contains(t, text, "Required inputs: None")
	assert.Contains(t, text, "Optional inputs: None")
}

func TestToolOperation_Validate(t *testing.T) {
	valid := &ToolOperation{ID: "slack.send-message", ToolSlug: "slack", OperationSlug: "send-message"}
	require.NoError(t, valid.Validate())

	notNamespaced := &ToolOperation{ID: "slack", ToolSlug: "slack", OperationSlug: "send-message"}
	assert.ErrorIs(t, notNamespaced.Validate(), ErrInvalidToolOperation)

	mismatched := &ToolOperation{ID: "slack.send-message", ToolSlug: "gmail", OperationSlug: "send-message"}
	assert.ErrorIs(t, mismatched.Validate(), ErrInvalidToolOperation)
}

func TestCandidateSet_ToolSlugs(t *testing.T) {
	set := CandidateSet{
		{Operation: ToolOperation{ID: "gmail.send-email", ToolSlug: "gmail"}, Score: 0.85, Rank: 0},
		{Operation: ToolOperation{ID: "gmail.create-draft", ToolSlug: "gmail"}, Score: 0.80, Rank: 1},
		{Operation: ToolOperation{ID: "webhook.incoming", ToolSlug: "webhook"}, Score: 0.75, Rank: 2},
	}

	assert.Equal(t, []string{"gmail", "webhook"}, set.ToolSlugs())
	assert.True(t, set.HasTool("gmail"))
	assert.False(t, set.HasTool("slack"))

	operation, ok := set.OperationByID("webhook.incoming")
	require.True(t, ok)
	assert.Equal(t, "webhook", operation.ToolSlug)

	_, ok = set.OperationByID("slack.send-message")
	assert.False(t, ok)
}

func TestRetrievedCandidate_NormalizedScore(t *testing.T) {
	assert.Equal(t, 0.85, RetrievedCandidate{Score: 0.85}.NormalizedScore())
	assert.Equal(t, 0.0, RetrievedCandidate{Score: -0.1}.NormalizedScore())
	assert.Equal(t, 0.0, RetrievedCandidate{Score: 1.5}.NormalizedScore())

	nan := RetrievedCandidate{Score: math.NaN()}
	assert.Equal(t, 0.0, nan.NormalizedScore())
}

func TestWorkflowDocument_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		document WorkflowDocument
		wantErr  string
	}{
		{
			name: "valid chain",
			document: WorkflowDocument{
				Nodes: []*WorkflowNode{
					{ID: "node1", Type: "webhook.incoming"},
					{ID: "node2", Type: "gmail.send-email"},
				},
				Connections: map[string]NodeConnection{
					"node1": {Next: "node2"},
				},
			},
		},
		{
			name:     "no nodes",
			document: WorkflowDocument{},
			wantErr:  "at least one node",
		},
		{
			name: "duplicate node id",
			document: WorkflowDocument{
				Nodes: []*WorkflowNode{
					{ID: "node1", Type: "webhook.incoming"},
					{ID: "node1", Type: "gmail.send-email"},
				},
			},
			wantErr: "duplicate node id",
		},
		{
			name: "missing namespace separator",
			document: WorkflowDocument{
				Nodes: []*WorkflowNode{{ID: "node1", Type: "webhook"}},
			},
			wantErr: "invalid type",
		},
		{
			name: "unknown connection source",
			document: WorkflowDocument{
				Nodes:       []*WorkflowNode{{ID: "node1", Type: "webhook.incoming"}},
				Connections: map[string]NodeConnection{"ghost": {Next: "node1"}},
			},
			wantErr: "unknown source node",
		},
		{
			name: "unknown connection target",
			document: WorkflowDocument{
				Nodes:       []*WorkflowNode{{ID: "node1", Type: "webhook.incoming"}},
				Connections: map[string]NodeConnection{"node1": {Next: "ghost"}},
			},
			wantErr: "unknown target node",
		},
		{
			name: "cycle",
			document: WorkflowDocument{
				Nodes: []*WorkflowNode{
					{ID: "node1", Type: "webhook.incoming"},
					{ID: "node2", Type: "gmail.send-email"},
				},
				Connections: map[string]NodeConnection{
					"node1": {Next: "node2"},
					"node2": {Next: "node1"},
				},
			},
			wantErr: "cycle",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.document.Validate()

			if tc.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWorkflowDocument)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestWorkflowDocument_JSONShape(t *testing.T) {
	document := WorkflowDocument{
		Nodes: []*WorkflowNode{
			{
				ID:          "node1",
				Type:        "gmail.send-email",
				DisplayName: "Send Email",
				Parameters:  map[string]any{"to": "team@example.com"},
			},
		},
		Connections: map[string]NodeConnection{},
	}

	data, err := json.Marshal(document)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"nodes": [
			{
				"id": "node1",
				"type": "gmail.send-email",
				"displayName": "Send Email",
				"parameters": {"to": "team@example.com"}
			}
		],
		"connections": {}
	}`, string(data))
}

func TestConversation_RecentUserTurns(t *testing.T) {
	now := time.Now().UTC()
	conversation := &Conversation{
		ID: "11111111-1111-4111-8111-111111111111",
		Turns: []*ConversationTurn{
			{Role: TurnRoleAssistant, Content: "Earlier conversation about email automation.", Summary: true, CreatedAt: now},
			{Role: TurnRoleUser, Content: "first", CreatedAt: now},
			{Role: TurnRoleAssistant, Content: "reply", CreatedAt: now},
			{Role: TurnRoleUser, Content: "second", CreatedAt: now},
			{Role: TurnRoleUser, Content: "third", CreatedAt: now},
		},
	}

	recent := conversation.RecentUserTurns(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Content)
	assert.Equal(t, "third", recent[1].Content)

	all := conversation.RecentUserTurns(10)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Content)

	assert.Empty(t, conversation.RecentUserTurns(0))
}

func TestConversation_SummaryAndVerbatimTurns(t *testing.T) {
	conversation := &Conversation{
		Turns: []*ConversationTurn{
			{Role: TurnRoleAssistant, Content: "summary of older turns", Summary: true},
			{Role: TurnRoleUser, Content: "send a slack message on new rows"},
		},
	}

	summary := conversation.SummaryTurn()
	require.NotNil(t, summary)
	assert.Equal(t, "summary of older turns", summary.Content)

	verbatim := conversation.VerbatimTurns()
	require.Len(t, verbatim, 1)
	assert.Equal(t, TurnRoleUser, verbatim[0].Role)

	assert.False(t, conversation.IsDeleted())
	deleted := time.Now().UTC()
	conversation.DeletedAt = &deleted
	assert.True(t, conversation.IsDeleted())
}
