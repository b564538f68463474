package models

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowNode is one step of a generated workflow. Type carries the
// namespaced operation identifier of the catalog entry it invokes.
type WorkflowNode struct {
	ID          string         `json:"id"   validate:"required"`
	Type        string         `json:"type" validate:"required"`
	DisplayName string         `json:"displayName,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolSlug returns the tool prefix of the node's operation identifier, or ""
// when the identifier is not namespaced.
func (n *WorkflowNode) ToolSlug() string {
	toolSlug, _, ok := SplitOperationID(n.Type)
	if !ok {
		return ""
	}

	return toolSlug
}

// NodeConnection names the node that follows the source node. Branching is
// not part of the document shape: each node has at most one successor.
type NodeConnection struct {
	Next string `json:"next"`
}

// WorkflowDocument is the declarative node-and-connection representation of
// an automation produced by generation. It is a document, not a runtime: the
// system never executes it.
type WorkflowDocument struct {
	Nodes       []*WorkflowNode           `json:"nodes"`
	Connections map[string]NodeConnection `json:"connections"`
}

// Validate checks the structural invariants of a generated document: at
// least one node, unique namespaced node ids, and connections that only
// reference known nodes. Acyclicity is part of the structure: a workflow
// that loops back on itself is never a valid automation document.
func (d *WorkflowDocument) Validate() error {
	if len(d.Nodes) == 0 {
		return fmt.Errorf("%w: workflow must have at least one node", ErrInvalidWorkflowDocument)
	}

	nodeIDs := make(map[string]bool, len(d.Nodes))

	for i, node := range d.Nodes {
		if node.ID == "" {
			return fmt.Errorf("%w: node at index %d is missing an id", ErrInvalidWorkflowDocument, i)
		}

		if nodeIDs[node.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidWorkflowDocument, node.ID)
		}

		nodeIDs[node.ID] = true

		if _, _, ok := SplitOperationID(node.Type); !ok {
			return fmt.Errorf("%w: node %q has invalid type %q (expected \"tool.operation\")",
				ErrInvalidWorkflowDocument, node.ID, node.Type)
		}
	}

	for sourceID, connection := range d.Connections {
		if !nodeIDs[sourceID] {
			return fmt.Errorf("%w: connection references unknown source node %q",
				ErrInvalidWorkflowDocument, sourceID)
		}

		if connection.Next != "" && !nodeIDs[connection.Next] {
			return fmt.Errorf("%w: connection from %q references unknown target node %q",
				ErrInvalidWorkflowDocument, sourceID, connection.Next)
		}
	}

	if cycle := d.findCycle(); len(cycle) > 0 {
		return fmt.Errorf("%w: connections form a cycle: %v", ErrInvalidWorkflowDocument, cycle)
	}

	return nil
}

// findCycle walks the successor chain from every node and returns the first
// cycle found, as the ordered list of node ids closing the loop.
func (d *WorkflowDocument) findCycle() []string {
	for start := range d.Connections {
		visited := make(map[string]bool)
		path := []string{}
		current := start

		for current != "" {
			if visited[current] {
				for i, id := range path {
					if id == current {
						return append(path[i:], current)
					}
				}

				return path
			}

			visited[current] = true
			path = append(path, current)
			current = d.Connections[current].Next
		}
	}

	return nil
}

// OperationIDs returns the distinct operation identifiers referenced by the
// document's nodes, in node order.
func (d *WorkflowDocument) OperationIDs() []string {
	seen := make(map[string]bool, len(d.Nodes))
	ids := make([]string, 0, len(d.Nodes))

	for _, node := range d.Nodes {
		if node.Type == "" || seen[node.Type] {
			continue
		}

		seen[node.Type] = true
		ids = append(ids, node.Type)
	}

	return ids
}

// WorkflowVersion is one accepted revision of a conversation's workflow.
// Versions are immutable once written; an edit produces a new version with
// the next number rather than changing this one.
type WorkflowVersion struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id" validate:"required,uuid"`
	Version        int              `json:"version"         validate:"required,min=1"`
	Document       WorkflowDocument `json:"document"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ErrInvalidWorkflowDocument is returned when a generated document violates
// the structural invariants.
var ErrInvalidWorkflowDocument = errors.New("invalid workflow document")
