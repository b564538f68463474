package models

import (
	"time"
)

// TurnRole identifies the author of a conversation turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one entry in a conversation's history. Turns are
// immutable once created; the only turn ever replaced is the rolling summary
// turn, which stands in for everything compressed out of the kept window.
type ConversationTurn struct {
	ID               string             `json:"id"`
	ConversationID   string             `json:"conversation_id"`
	Role             TurnRole           `json:"role"    validate:"required,oneof=user assistant"`
	Content          string             `json:"content" validate:"required"`
	Summary          bool               `json:"summary,omitempty"`
	ToolsRetrieved   []string           `json:"tools_retrieved,omitempty"`
	SimilarityScores map[string]float64 `json:"similarity_scores,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Conversation owns an ordered sequence of turns and the workflow version
// history produced from them. Deletion is soft: the row is retained for audit
// and excluded from lookups.
type Conversation struct {
	ID        string              `json:"id" validate:"required,uuid"`
	Turns     []*ConversationTurn `json:"turns"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	DeletedAt *time.Time          `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the conversation has been soft deleted.
func (c *Conversation) IsDeleted() bool {
	return c.DeletedAt != nil
}

// SummaryTurn returns the rolling summary turn, if one exists.
func (c *Conversation) SummaryTurn() *ConversationTurn {
	for _, turn := range c.Turns {
		if turn.Summary {
			return turn
		}
	}

	return nil
}

// VerbatimTurns returns the non-summary turns in chronological order.
func (c *Conversation) VerbatimTurns() []*ConversationTurn {
	turns := make([]*ConversationTurn, 0, len(c.Turns))
	for _, turn := range c.Turns {
		if !turn.Summary {
			turns = append(turns, turn)
		}
	}

	return turns
}

// RecentUserTurns returns up to limit of the most recent user turns in
// chronological order. Summary turns never qualify.
func (c *Conversation) RecentUserTurns(limit int) []*ConversationTurn {
	if limit <= 0 {
		return nil
	}

	recent := make([]*ConversationTurn, 0, limit)

	for i := len(c.Turns) - 1; i >= 0 && len(recent) < limit; i-- {
		turn := c.Turns[i]
		if turn.Role == TurnRoleUser && !turn.Summary {
			recent = append(recent, turn)
		}
	}

	// Reverse back to chronological order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	return recent
}
