// Package main provides the flowgen API server.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowgen/pkg/log"
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowgen-api",
		Usage:                 "Generate automation workflows from natural language",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunAPICommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
