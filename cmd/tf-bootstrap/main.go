package main

import (
	"context"
	"os"

	"github.com/savaki/tf-bootstrap/cmd/tf-bootstrap/commands"
	"github.com/savaki/tf-bootstrap/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "tf-bootstrap",
		Usage: "Bootstrap Terraform CI/CD pipelines on AWS",
		Description: `Provisions the shared Terraform backend for a repository and wires up
GitHub Actions pipelines to use it.

This tool provides commands for:
  - Creating the S3 state bucket, DynamoDB lock table, and GitHub OIDC role
  - Generating per-environment deploy workflows and backend stubs
  - Destroying a single environment's infrastructure
  - Uninstalling everything the tool created`,
		Commands: []*cli.Command{
			commands.InitCommand(&logger),
			commands.DestroyCommand(&logger),
			commands.UninstallCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
