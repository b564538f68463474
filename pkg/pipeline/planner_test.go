package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowgen/pkg/models"
)

func testCandidates() models.CandidateSet {
	return models.CandidateSet{
		{
			Operation: models.ToolOperation{
				ID:                   "gmail.send-email",
				ToolSlug:             "gmail",
				ToolDisplayName:      "Gmail",
				OperationSlug:        "send-email",
				OperationDisplayName: "Send Email",
				Description:          "Send an email through a Gmail account",
				RequiredFields:       []string{"to", "subject"},
				Parameters: &models.JSONSchema{
					Type: "object",
					Properties: map[string]*models.Property{
						"to":      {Type: "string"},
						"subject": {Type: "string"},
					},
					Required: []string{"to", "subject"},
				},
			},
			Score: 0.85,
		},
		{
			Operation: models.ToolOperation{
				ID:                   "webhook.incoming",
				ToolSlug:             "webhook",
				ToolDisplayName:      "Webhook",
				OperationSlug:        "incoming",
				OperationDisplayName: "Incoming Webhook",
				Description:          "Start a workflow when an HTTP request arrives",
			},
			Score: 0.75,
		},
	}
}

func TestPlan_CreateModeWithoutCurrentVersion(t *testing.T) {
	planner := NewPlanner(testLogger())

	request := planner.Plan(nil, testCandidates(), "send an email when a form is submitted")

	assert.Equal(t, ModeCreate, request.Mode)
	assert.Contains(t, request.Prompt, "workflow automation expert")
	assert.Contains(t, request.Prompt, `"send an email when a form is submitted"`)
	assert.Contains(t, request.Prompt, "Tool: Gmail")
	assert.Contains(t, request.Prompt, "Identifier: webhook.incoming")
	assert.Contains(t, request.Prompt, "Required parameters: to, subject")
	assert.Contains(t, request.Prompt, `"subject":{"type":"string"}`)
	assert.NotContains(t, request.Prompt, "Current workflow:")
}

func TestPlan_EditModeWithCurrentVersion(t *testing.T) {
	planner := NewPlanner(testLogger())
	current := &models.WorkflowVersion{
		ConversationID: "11111111-1111-4111-8111-111111111111",
		Version:        2,
		Document: models.WorkflowDocument{
			Nodes: []*models.WorkflowNode{
				{ID: "node1", Type: "gmail.send-email", DisplayName: "Send Email"},
			},
			Connections: map[string]models.NodeConnection{},
		},
	}

	request := planner.Plan(current, testCandidates(), "change Gmail to Slack")

	assert.Equal(t, ModeEdit, request.Mode)
	assert.Contains(t, request.Prompt, "Current workflow:")
	// The prior document is serialized verbatim so node ids survive.
	assert.Contains(t, request.Prompt, `"id": "node1"`)
	assert.Contains(t, request.Prompt, `"gmail.send-email"`)
	assert.Contains(t, request.Prompt, "User wants to: change Gmail to Slack")
	assert.Contains(t, request.Prompt, "COMPLETE updated workflow")
}

func TestPlan_ModeIsExclusive(t *testing.T) {
	planner := NewPlanner(testLogger())
	candidates := testCandidates()

	withVersion := planner.Plan(&models.WorkflowVersion{Version: 1}, candidates, "edit it")
	withoutVersion := planner.Plan(nil, candidates, "create it")

	assert.Equal(t, ModeEdit, withVersion.Mode)
	assert.Equal(t, ModeCreate, withoutVersion.Mode)
}

func TestBuildCorrectivePrompt_EnumeratesAllowedTools(t *testing.T) {
	request := GenerationRequest{
		Mode:       ModeCreate,
		Query:      "notify the team",
		Candidates: testCandidates(),
	}

	prompt := buildCorrectivePrompt(request, "workflow references tools outside the candidate set: teams")

	assert.Contains(t, prompt, "You may ONLY use these tools: gmail, webhook")
	assert.Contains(t, prompt, "Do not reference any other tool.")
	assert.Contains(t, prompt, `"notify the team"`)
	assert.Contains(t, prompt, "Output ONLY valid JSON")
}

func TestBuildSummaryPrompt(t *testing.T) {
	prompt := BuildSummaryPrompt([]*models.ConversationTurn{
		{Role: models.TurnRoleUser, Content: "send form responses to gmail"},
		{Role: models.TurnRoleAssistant, Content: "Generated workflow successfully"},
	})

	assert.Contains(t, prompt, "Summarize this conversation in 2-3 sentences.")
	assert.Contains(t, prompt, "user: send form responses to gmail")
	assert.Contains(t, prompt, "assistant: Generated workflow successfully")
}

func TestParseDocument(t *testing.T) {
	raw := `{"nodes":[{"id":"node1","type":"gmail.send-email"}],"connections":{}}`

	document, err := ParseDocument(raw)
	require.NoError(t, err)
	require.Len(t, document.Nodes, 1)
	assert.Equal(t, "gmail.send-email", document.Nodes[0].Type)
}

func TestParseDocument_StripsMarkdownFences(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{
			name: "plain fence",
			raw:  "```\n{\"nodes\":[{\"id\":\"node1\",\"type\":\"gmail.send-email\"}],\"connections\":{}}\n```",
		},
		{
			name: "json fence",
			raw:  "```json\n{\"nodes\":[{\"id\":\"node1\",\"type\":\"gmail.send-email\"}],\"connections\":{}}\n```",
		},
		{
			name: "surrounding whitespace",
			raw:  "\n\n```json\n{\"nodes\":[{\"id\":\"node1\",\"type\":\"gmail.send-email\"}],\"connections\":{}}\n```\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			document, err := ParseDocument(tc.raw)
			require.NoError(t, err)
			assert.Len(t, document.Nodes, 1)
		})
	}
}

func TestParseDocument_RejectsMalformedOutput(t *testing.T) {
	_, err := ParseDocument("I'm sorry, I can't produce that workflow.")
	assert.Error(t, err)

	_, err = ParseDocument("")
	assert.Error(t, err)

	_, err = ParseDocument("```\n```")
	assert.Error(t, err)
}
