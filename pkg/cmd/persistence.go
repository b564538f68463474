// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowgen/pkg/persistence"
	"github.com/dukex/flowgen/pkg/persistence/file"
	"github.com/dukex/flowgen/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from a database URL. A
// postgres:// or postgresql:// URL selects PostgreSQL; anything else is
// treated as a file root.
//
// nolint:ireturn // Callers program against the persistence interface.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
