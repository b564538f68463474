// Package models defines the core domain models for conversational workflow generation
package models

import (
	"errors"
	"fmt"
	"strings"
)

// OperationType represents the kind of catalog operation.
type OperationType string

const (
	OperationTypeAction  OperationType = "action"  // Regular action operations (send, create, append, etc.)
	OperationTypeTrigger OperationType = "trigger" // Trigger operations (webhook, schedule, form, etc.)
)

// NamespaceSeparator joins the tool slug and the operation slug inside an
// operation identifier, e.g. "gmail.send-email".
const NamespaceSeparator = "."

// ToolOperation is one addressable capability of an integration and the unit
// indexed for retrieval. Entries are loaded from the catalog at startup and
// never mutated afterwards.
type ToolOperation struct {
	ID                   string        `json:"id"             validate:"required"`
	ToolSlug             string        `json:"tool_slug"      validate:"required"`
	ToolName             string        `json:"tool_name"`
	ToolDisplayName      string        `json:"tool_display_name"`
	OperationSlug        string        `json:"operation_slug" validate:"required"`
	OperationName        string        `json:"operation_name"`
	OperationDisplayName string        `json:"operation_display_name"`
	Category             string        `json:"category"`
	Type                 OperationType `json:"operation_type"`
	Description          string        `json:"description"`
	UseCases             []string      `json:"use_cases,omitempty"`
	Keywords             []string      `json:"keywords,omitempty"`
	Parameters           *JSONSchema   `json:"parameters,omitempty"`
	RequiredFields       []string      `json:"required_fields,omitempty"`
	Tags                 []string      `json:"tags,omitempty"`
	AuthRequired         bool          `json:"auth_required"`
}

// OperationID builds the namespaced identifier for a tool/operation pair.
func OperationID(toolSlug, operationSlug string) string {
	return toolSlug + NamespaceSeparator + operationSlug
}

// SplitOperationID splits a namespaced identifier into its tool and operation
// slugs. The operation part keeps any further separators intact.
func SplitOperationID(id string) (toolSlug, operationSlug string, ok bool) {
	toolSlug, operationSlug, ok = strings.Cut(id, NamespaceSeparator)
	if !ok || toolSlug == "" || operationSlug == "" {
		return "", "", false
	}

	return toolSlug, operationSlug, true
}

// EmbeddingText renders the descriptive text indexed for this operation.
// The layout matches what the retrieval store is seeded with so that query
// and document vectors live in the same space.
func (op *ToolOperation) EmbeddingText() string {
	useCases := "General purpose"
	if len(op.UseCases) > 0 {
		useCases = strings.Join(op.UseCases, ", ")
	}

	keywords := "N/A"
	if len(op.Keywords) > 0 {
		keywords = strings.Join(op.Keywords, ", ")
	}

	required := "None"
	if len(op.RequiredFields) > 0 {
		required = strings.Join(op.RequiredFields, ", ")
	}

	optional := "None"
	if optionalFields := op.optionalFields(); len(optionalFields) > 0 {
		optional = strings.Join(optionalFields, ", ")
	}

	return fmt.Sprintf(`Tool: %s
Operation: %s
Description: %s

Use this when: %s

Common phrases: %s

Required inputs: %s
Optional inputs: %s

Category: %s
Type: %s`,
		op.ToolDisplayName,
		op.OperationDisplayName,
		op.Description,
		useCases,
		keywords,
		required,
		optional,
		op.Category,
		op.Type,
	)
}

func (op *ToolOperation) optionalFields() []string {
	if op.Parameters == nil {
		return nil
	}

	required := make(map[string]bool, len(op.RequiredFields))
	for _, name := range op.RequiredFields {
		required[name] = true
	}

	optional := make([]string, 0, len(op.Parameters.Properties))
	for name := range op.Parameters.Properties {
		if !required[name] {
			optional = append(optional, name)
		}
	}

	return optional
}

// Validate checks the invariants of a catalog entry.
func (op *ToolOperation) Validate() error {
	toolSlug, operationSlug, ok := SplitOperationID(op.ID)
	if !ok {
		return fmt.Errorf("%w: identifier %q is not namespaced", ErrInvalidToolOperation, op.ID)
	}

	if toolSlug != op.ToolSlug || operationSlug != op.OperationSlug {
		return fmt.Errorf("%w: identifier %q does not match slugs %q/%q",
			ErrInvalidToolOperation, op.ID, op.ToolSlug, op.OperationSlug)
	}

	return nil
}

// ErrInvalidToolOperation is returned when a catalog entry fails validation.
var ErrInvalidToolOperation = errors.New("invalid tool operation")
