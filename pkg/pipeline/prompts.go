package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/flowgen/pkg/models"
)

// formatCandidates serializes the candidate set as the available operations
// block shared by all generation prompts.
func formatCandidates(candidates models.CandidateSet) string {
	parts := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		var builder strings.Builder

		fmt.Fprintf(&builder, "Tool: %s\n", candidate.Operation.ToolDisplayName)
		fmt.Fprintf(&builder, "Operation: %s\n", candidate.Operation.OperationDisplayName)
		fmt.Fprintf(&builder, "Identifier: %s\n", candidate.Operation.ID)
		fmt.Fprintf(&builder, "Description: %s\n", candidate.Operation.Description)

		if len(candidate.Operation.RequiredFields) > 0 {
			fmt.Fprintf(&builder, "Required parameters: %s\n", strings.Join(candidate.Operation.RequiredFields, ", "))
		}

		if candidate.Operation.Parameters != nil {
			if schema, err := json.Marshal(candidate.Operation.Parameters); err == nil {
				fmt.Fprintf(&builder, "Parameter schema: %s\n", schema)
			}
		}

		fmt.Fprintf(&builder, "Score: %.4f\n", candidate.Score)

		parts = append(parts, builder.String())
	}

	return strings.Join(parts, "\n")
}

// buildCreatePrompt instructs the generator to author a new workflow
// restricted to the candidate operations.
func buildCreatePrompt(query string, candidates models.CandidateSet) string {
	return fmt.Sprintf(`You are a workflow automation expert. Generate a workflow JSON based on the user's request.

User request: %q

Available tools:
%s

Generate a workflow JSON with this structure:
{
  "nodes": [
    {
      "id": "node1",
      "type": "tool_slug.operation_slug",
      "displayName": "Operation Display Name",
      "parameters": {
        "param1": "value1"
      }
    }
  ],
  "connections": {
    "node1": {"next": "node2"}
  }
}

Rules:
1. Use the most relevant tools from the list above
2. Create unique node IDs (node1, node2, etc.)
3. Set node type as "tool_slug.operation_slug" (e.g., "gmail.send-email")
4. Fill parameters based on user's request
5. Connect nodes in logical order
6. If user mentions specific values (emails, channel names), include them in parameters

Output ONLY the JSON. No markdown, no explanations, no backticks.`, query, formatCandidates(candidates))
}

// buildEditPrompt hands the generator the complete prior document so it can
// preserve node ids, triggers and untouched branches while applying the edit.
func buildEditPrompt(current models.WorkflowDocument, instruction string, candidates models.CandidateSet) string {
	document, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		// A stored document always marshals; fall back to the compact form.
		document, _ = json.Marshal(current)
	}

	return fmt.Sprintf(`Current workflow:
%s

User wants to: %s

Available tools:
%s

Output the COMPLETE updated workflow as valid JSON.
Include all nodes and connections.
Output ONLY the JSON, no markdown, no explanations.`, document, instruction, formatCandidates(candidates))
}

// buildCorrectivePrompt is the single retry issued after a validation
// failure. It enumerates the allowed tools explicitly and forbids all
// others.
func buildCorrectivePrompt(request GenerationRequest, violation string) string {
	allowed := strings.Join(request.Candidates.ToolSlugs(), ", ")

	return fmt.Sprintf(`Your previous workflow was rejected: %s

You may ONLY use these tools: %s
Do not reference any other tool.

User request: %q

Available tools:
%s

Output ONLY valid JSON. No text before or after. No markdown code blocks.

Output workflow JSON:`, violation, allowed, request.Query, formatCandidates(request.Candidates))
}

// BuildSummaryPrompt asks the generator for a compact rolling summary of the
// turns leaving the kept window. The conversation state calls it when
// compressing history.
func BuildSummaryPrompt(turns []*models.ConversationTurn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}

	return fmt.Sprintf(`Summarize this conversation in 2-3 sentences.
Focus on: user's goal, tools discussed, key decisions made.

Conversation:
%s

Summary:`, strings.Join(lines, "\n"))
}
