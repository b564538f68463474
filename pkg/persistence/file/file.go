// Package file provides file-based persistence for conversations and
// workflow versions, for development and tests.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/dukex/flowgen/pkg/persistence"
)

// Persistence implements the persistence interfaces on top of a directory
// tree: one JSON file per conversation, one directory of version files per
// conversation. A single mutex serializes all file access; file persistence
// targets development and tests, not contended deployments.
type Persistence struct {
	root          string
	mu            sync.Mutex
	conversations *ConversationRepository
	workflows     *WorkflowRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped so database URLs work unchanged.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.conversations = &ConversationRepository{root: cleanRoot, mu: &p.mu}
	p.workflows = &WorkflowRepository{root: cleanRoot, mu: &p.mu}

	return p
}

// Conversations returns the conversation repository.
func (fp *Persistence) Conversations() persistence.ConversationRepository {
	return fp.conversations
}

// Workflows returns the workflow version repository.
func (fp *Persistence) Workflows() persistence.WorkflowRepository {
	return fp.workflows
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}
