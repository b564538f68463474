package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowgen/pkg/models"
)

func schemaCandidates() models.CandidateSet {
	return models.CandidateSet{
		{
			Operation: models.ToolOperation{
				ID:       "gmail.send-email",
				ToolSlug: "gmail",
				Parameters: &models.JSONSchema{
					Type: "object",
					Properties: map[string]*models.Property{
						"to":      {Type: "string"},
						"subject": {Type: "string"},
						"body":    {Type: "string"},
					},
					Required: []string{"to"},
				},
			},
			Score: 0.85,
		},
		{
			Operation: models.ToolOperation{ID: "schedule.cron", ToolSlug: "schedule"},
			Score:     0.75,
		},
	}
}

func TestValidate_AcceptsDocumentWithinCandidateSet(t *testing.T) {
	validator := NewValidator(testLogger())
	document := &models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			{ID: "node1", Type: "schedule.cron", Parameters: map[string]any{"cron": "0 9 * * 1"}},
			{ID: "node2", Type: "gmail.send-email", Parameters: map[string]any{"to": "team@example.com"}},
		},
		Connections: map[string]models.NodeConnection{
			"node1": {Next: "node2"},
		},
	}

	assert.NoError(t, validator.Validate(document, schemaCandidates()))
}

func TestValidate_RejectsUnretrievedTool(t *testing.T) {
	validator := NewValidator(testLogger())
	document := &models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			{ID: "node1", Type: "teams.send-message"},
		},
	}

	err := validator.Validate(document, schemaCandidates())
	require.Error(t, err)

	var violation *ToolViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, []string{"teams"}, violation.Unknown)
	assert.Equal(t, []string{"gmail", "schedule"}, violation.Allowed)
}

func TestValidate_ToolPrefixOnlyNeedsToMatch(t *testing.T) {
	// The candidate set offered gmail.send-email; the generator picked a
	// different gmail operation. Only the tool prefix is held against the
	// candidate set.
	validator := NewValidator(testLogger())
	document := &models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			{ID: "node1", Type: "gmail.create-draft"},
		},
	}

	assert.NoError(t, validator.Validate(document, schemaCandidates()))
}

func TestValidate_StructuralErrorsComeFirst(t *testing.T) {
	validator := NewValidator(testLogger())
	document := &models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			{ID: "node1", Type: "not-namespaced"},
		},
	}

	err := validator.Validate(document, schemaCandidates())
	require.ErrorIs(t, err, models.ErrInvalidWorkflowDocument)

	var violation *ToolViolationError
	assert.False(t, errors.As(err, &violation))
}

func TestValidate_ParameterSchemaViolations(t *testing.T) {
	validator := NewValidator(testLogger())
	document := &models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			// Missing the required "to" parameter.
			{ID: "node1", Type: "gmail.send-email", Parameters: map[string]any{"subject": "hi"}},
		},
	}

	err := validator.Validate(document, schemaCandidates())
	require.ErrorIs(t, err, models.ErrInvalidWorkflowDocument)
	assert.Contains(t, err.Error(), "node1")
}

func TestValidate_InvalidCronExpression(t *testing.T) {
	validator := NewValidator(testLogger())
	document := &models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			{ID: "node1", Type: "schedule.cron", Parameters: map[string]any{"cron": "not a cron"}},
		},
	}

	err := validator.Validate(document, schemaCandidates())
	require.ErrorIs(t, err, models.ErrInvalidWorkflowDocument)
	assert.Contains(t, err.Error(), "cron expression")
}

func TestValidate_UnknownOperationSkipsSchemaCheck(t *testing.T) {
	// schedule.daily is not in the candidate set, so no schema is available;
	// the tool prefix check still passes because schedule is offered.
	validator := NewValidator(testLogger())
	document := &models.WorkflowDocument{
		Nodes: []*models.WorkflowNode{
			{ID: "node1", Type: "schedule.daily", Parameters: map[string]any{"whatever": true}},
		},
	}

	assert.NoError(t, validator.Validate(document, schemaCandidates()))
}
