// Package services provides the business layer orchestrating the
// retrieval-and-generation pipeline.
package services

import (
	"errors"
	"fmt"
)

// Error taxonomy of the pipeline. Collaborator failures keep their kind all
// the way to the transport layer; no-match and tool-hallucination are
// business outcomes with defined response shapes, not transport errors.
var (
	// ErrInvalidRequest marks malformed caller input (400-class).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConversationNotFound marks an unknown or soft-deleted conversation id.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMissingWorkflow marks an edit against a conversation that has no
	// current workflow version.
	ErrMissingWorkflow = errors.New("conversation has no workflow to edit")

	// ErrEmbeddingProvider marks a failure of the embedding collaborator.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrRetrievalProvider marks a failure of the vector store collaborator.
	ErrRetrievalProvider = errors.New("retrieval provider failed")

	// ErrGenerationFailure marks malformed or failed generator output after
	// any corrective attempt.
	ErrGenerationFailure = errors.New("generation failed")

	// ErrToolHallucination marks a document still referencing unretrieved
	// tools after the single corrective attempt. Nothing is persisted.
	ErrToolHallucination = errors.New("generated workflow references unretrieved tools")

	// ErrPersistence marks a failure of the persistence collaborator.
	ErrPersistence = errors.New("persistence failed")
)

// PipelineError wraps pipeline errors with the operation and conversation
// they occurred in.
type PipelineError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *PipelineError) Error() string {
	if e.ConversationID != "" {
		return fmt.Sprintf("%s failed for conversation %s: %v", e.Op, e.ConversationID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPipelineError creates a pipeline error with context.
func NewPipelineError(op, conversationID string, err error) *PipelineError {
	return &PipelineError{Op: op, ConversationID: conversationID, Err: err}
}

// IsNotFound checks if an error indicates an unknown conversation.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsMissingWorkflow checks if an error indicates an edit without a workflow.
func IsMissingWorkflow(err error) bool {
	return errors.Is(err, ErrMissingWorkflow)
}

// IsToolHallucination checks if an error indicates rejected generator output.
func IsToolHallucination(err error) bool {
	return errors.Is(err, ErrToolHallucination)
}

// IsGenerationFailure checks if an error indicates malformed generator output.
func IsGenerationFailure(err error) bool {
	return errors.Is(err, ErrGenerationFailure)
}

// IsProviderError checks if an error came from the embedding or retrieval
// collaborators.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider) || errors.Is(err, ErrRetrievalProvider)
}

// IsValidationError checks if an error indicates malformed caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
