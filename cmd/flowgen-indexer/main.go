// Package main provides the catalog indexer that seeds the vector store.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowgen/pkg/log"
)

func main() {
	logger := log.WithModule("indexer")

	command := &cli.Command{
		Name:                  "flowgen-indexer",
		Usage:                 "Embed the tool catalog and index it for retrieval",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			IndexCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
