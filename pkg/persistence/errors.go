// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrConversationNotFound indicates no live conversation exists for the
	// given identifier.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationExists indicates a create hit an id that already has a
	// record, live or soft-deleted. Soft-deleted records are retained for
	// audit and must not be overwritten.
	ErrConversationExists = errors.New("conversation already exists")

	// ErrVersionConflict indicates a workflow version number already exists
	// for the conversation. Version numbers are assigned under the
	// per-conversation guard, so a conflict means that guard was bypassed.
	ErrVersionConflict = errors.New("workflow version already exists")

	// ErrVersionNotFound indicates no workflow version exists for the
	// conversation.
	ErrVersionNotFound = errors.New("workflow version not found")
)

// ConversationError wraps conversation-related errors with additional context.
type ConversationError struct {
	Op             string // Operation being performed (e.g., "ByID", "AppendTurn")
	ConversationID string
	Err            error
}

func (e *ConversationError) Error() string {
	return fmt.Sprintf("%s operation failed for conversation %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

func (e *ConversationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewConversationError creates a new conversation error with context.
func NewConversationError(op, conversationID string, err error) *ConversationError {
	return &ConversationError{
		Op:             op,
		ConversationID: conversationID,
		Err:            err,
	}
}

// VersionError wraps workflow-version-related errors with additional context.
type VersionError struct {
	Op             string
	ConversationID string
	Version        int
	Err            error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s operation failed for version %d of conversation %s: %v",
		e.Op, e.Version, e.ConversationID, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

func (e *VersionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewVersionError creates a new version error with context.
func NewVersionError(op, conversationID string, version int, err error) *VersionError {
	return &VersionError{
		Op:             op,
		ConversationID: conversationID,
		Version:        version,
		Err:            err,
	}
}

// IsConversationNotFound checks if an error indicates a conversation was not found.
func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsConversationExists checks if an error indicates a duplicate conversation id.
func IsConversationExists(err error) bool {
	return errors.Is(err, ErrConversationExists)
}

// IsVersionConflict checks if an error indicates a duplicate version number.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
