// Package pipeline implements the retrieval-and-generation pipeline that
// turns a natural-language request into a validated workflow document.
package pipeline

import (
	"strings"

	"github.com/dukex/flowgen/pkg/models"
)

// historyUserTurns caps how many prior user turns enrich the retrieval
// query. Two turns resolve pronoun references ("change it to Slack") without
// dragging in stale topics.
const historyUserTurns = 2

// currentRequestMarker separates prior turns from the current request inside
// the composed query.
const currentRequestMarker = "Current request:"

// ComposeQuery builds the text submitted for embedding from the current
// request plus bounded conversation history. Only user turns qualify as
// history; assistant and summary turns never reach the embedding. With no
// history the current text is returned unchanged.
func ComposeQuery(conversation *models.Conversation, currentText string) string {
	if conversation == nil {
		return currentText
	}

	recent := conversation.RecentUserTurns(historyUserTurns)
	if len(recent) == 0 {
		return currentText
	}

	var builder strings.Builder

	for _, turn := range recent {
		builder.WriteString(turn.Content)
		builder.WriteString("\n")
	}

	builder.WriteString(currentRequestMarker)
	builder.WriteString("\n")
	builder.WriteString(currentText)

	return builder.String()
}
