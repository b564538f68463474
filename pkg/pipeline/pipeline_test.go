package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowgen/pkg/models"
)

// scriptedGenerator returns one canned response per call, repeating the last
// one when the script runs out.
type scriptedGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)

	if g.err != nil {
		return "", g.err
	}

	index := len(g.prompts) - 1
	if index >= len(g.responses) {
		index = len(g.responses) - 1
	}

	return g.responses[index], nil
}

func (g *scriptedGenerator) Model() string { return "scripted" }

func (g *scriptedGenerator) HealthCheck(_ context.Context) error { return nil }

func newTestPipeline(generator *scriptedGenerator) *Pipeline {
	logger := testLogger()

	return NewPipeline(NewPlanner(logger), NewValidator(logger), generator, logger)
}

func slackCandidates() models.CandidateSet {
	return models.CandidateSet{
		{
			Operation: models.ToolOperation{
				ID:                   "slack.send-message",
				ToolSlug:             "slack",
				ToolDisplayName:      "Slack",
				OperationDisplayName: "Send Message",
			},
			Score: 0.8,
		},
	}
}

const validSlackDocument = `{"nodes":[{"id":"node1","type":"slack.send-message"}],"connections":{}}`

const teamsDocument = `{"nodes":[{"id":"node1","type":"teams.send-message"}],"connections":{}}`

func TestGenerateDocument_AcceptsValidFirstAttempt(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{validSlackDocument}}
	pipeline := newTestPipeline(generator)

	request := pipeline.Planner().Plan(nil, slackCandidates(), "notify the channel")

	document, err := pipeline.GenerateDocument(t.Context(), request)
	require.NoError(t, err)
	assert.Len(t, document.Nodes, 1)
	assert.Len(t, generator.prompts, 1)
}

func TestGenerateDocument_SingleCorrectiveRetryRecovers(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{teamsDocument, validSlackDocument}}
	pipeline := newTestPipeline(generator)

	request := pipeline.Planner().Plan(nil, slackCandidates(), "change Gmail to Slack")

	document, err := pipeline.GenerateDocument(t.Context(), request)
	require.NoError(t, err)
	assert.Equal(t, "slack.send-message", document.Nodes[0].Type)

	// Exactly one corrective attempt, and it enumerates the allowed tools.
	require.Len(t, generator.prompts, 2)
	assert.Contains(t, generator.prompts[1], "You may ONLY use these tools: slack")
}

func TestGenerateDocument_SecondViolationIsToolHallucination(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{teamsDocument, teamsDocument}}
	pipeline := newTestPipeline(generator)

	request := pipeline.Planner().Plan(nil, slackCandidates(), "change Gmail to Slack")

	_, err := pipeline.GenerateDocument(t.Context(), request)
	require.ErrorIs(t, err, ErrToolHallucination)

	// The cap is structural: never a third generation.
	assert.Len(t, generator.prompts, 2)
}

func TestGenerateDocument_MalformedOutputFailsWithoutRetry(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{"not json at all"}}
	pipeline := newTestPipeline(generator)

	request := pipeline.Planner().Plan(nil, slackCandidates(), "notify the channel")

	_, err := pipeline.GenerateDocument(t.Context(), request)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Len(t, generator.prompts, 1)
}

func TestGenerateDocument_GeneratorErrorSurfaces(t *testing.T) {
	generator := &scriptedGenerator{err: errors.New("throttled")}
	pipeline := newTestPipeline(generator)

	request := pipeline.Planner().Plan(nil, slackCandidates(), "notify the channel")

	_, err := pipeline.GenerateDocument(t.Context(), request)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "throttled")
}

func TestGenerateDocument_StructuralViolationAfterRetryIsGenerationFailure(t *testing.T) {
	// Both attempts return a document whose connections dangle; that is
	// malformed output, not a hallucinated tool.
	dangling := `{"nodes":[{"id":"node1","type":"slack.send-message"}],"connections":{"node1":{"next":"ghost"}}}`
	generator := &scriptedGenerator{responses: []string{dangling, dangling}}
	pipeline := newTestPipeline(generator)

	request := pipeline.Planner().Plan(nil, slackCandidates(), "notify the channel")

	_, err := pipeline.GenerateDocument(t.Context(), request)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Len(t, generator.prompts, 2)
}
