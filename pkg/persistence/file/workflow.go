package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowgen/pkg/models"
	"github.com/dukex/flowgen/pkg/persistence"
)

// WorkflowRepository stores each workflow version as one JSON file under
// <root>/versions/<conversation-id>/<version>.json.
type WorkflowRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *WorkflowRepository) dir(conversationID string) string {
	return filepath.Join(r.root, "versions", conversationID)
}

// SaveVersion stores a new workflow version. Duplicate version numbers fail
// with ErrVersionConflict.
func (r *WorkflowRepository) SaveVersion(ctx context.Context, version *models.WorkflowVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
				fmt.Errorf("failed to generate version id: %w", err))
		}

		version.ID = id.String()
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	path := filepath.Join(r.dir(version.ConversationID), fmt.Sprintf("%06d.json", version.Version))

	if _, err := os.Stat(path); err == nil {
		return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
			persistence.ErrVersionConflict)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
			fmt.Errorf("failed to create versions directory: %w", err))
	}

	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
			fmt.Errorf("failed to marshal version: %w", err))
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return persistence.NewVersionError("SaveVersion", version.ConversationID, version.Version,
			fmt.Errorf("failed to write version file: %w", err))
	}

	return nil
}

// CurrentVersion returns the highest-numbered version, or nil when none
// exists.
func (r *WorkflowRepository) CurrentVersion(ctx context.Context, conversationID string) (*models.WorkflowVersion, error) {
	versions, err := r.Versions(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if len(versions) == 0 {
		return nil, nil
	}

	return versions[len(versions)-1], nil
}

// Versions returns all versions for the conversation, oldest first.
func (r *WorkflowRepository) Versions(ctx context.Context, conversationID string) ([]*models.WorkflowVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.WorkflowVersion{}, nil
		}

		return nil, persistence.NewVersionError("Versions", conversationID, 0,
			fmt.Errorf("failed to read versions directory: %w", err))
	}

	versions := make([]*models.WorkflowVersion, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir(conversationID), entry.Name()))
		if err != nil {
			return nil, persistence.NewVersionError("Versions", conversationID, 0,
				fmt.Errorf("failed to read version file %s: %w", entry.Name(), err))
		}

		var version models.WorkflowVersion
		if err := json.Unmarshal(data, &version); err != nil {
			return nil, persistence.NewVersionError("Versions", conversationID, 0,
				fmt.Errorf("failed to parse version file %s: %w", entry.Name(), err))
		}

		versions = append(versions, &version)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})

	return versions, nil
}
