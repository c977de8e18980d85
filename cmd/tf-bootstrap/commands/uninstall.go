package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/tf-bootstrap/internal/bootstrap"
	"github.com/savaki/tf-bootstrap/internal/di"
	"github.com/savaki/tf-bootstrap/internal/naming"
	"github.com/savaki/tf-bootstrap/internal/prompt"
	"github.com/savaki/tf-bootstrap/internal/services"
	"github.com/savaki/tf-bootstrap/internal/statestore"
)

// UninstallCommand returns the uninstall command: tear down everything the
// tool created for this repository.
func UninstallCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "uninstall",
		Usage: "Destroy all environments and remove the shared backend",
		Description: `Destroys every environment's managed infrastructure, then deletes the
OIDC roles, the lock table, the state bucket (including all state
history), the generated workflow files, and the inventory file.

Requires typing the exact phrase "` + bootstrap.UninstallPhrase + `" at the
confirmation prompt. After the gate, every step is best-effort: failures
are collected and reported at the end instead of stopping the teardown.

Examples:
  tf-bootstrap uninstall`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "terraform-bin",
				Usage: "Path to the terraform binary",
				Value: "terraform",
			},
		},
		Action: func(c *cli.Context) error {
			return uninstallAction(c, logger)
		},
	}
}

func uninstallAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := c.Context
	prompter := prompt.New(os.Stdin, os.Stdout)

	store := statestore.New(statestore.DefaultFilename)
	doc, err := store.Load()
	if err != nil {
		return err
	}

	org, repo, ok := strings.Cut(doc.Repo, "/")
	if !ok {
		return fmt.Errorf("malformed repo %q in %s", doc.Repo, store.Path())
	}

	destroyer, err := newDestroyer(store, doc, prompter, c.String("terraform-bin"))
	if err != nil {
		return err
	}

	container, err := di.New(doc.AWSRegion)
	if err != nil {
		return err
	}

	uninstaller := &bootstrap.Uninstaller{
		Store:     store,
		Doc:       doc,
		Names:     naming.New(org, repo),
		Destroyer: destroyer,
		Buckets:   di.MustGet[*services.S3Service](container),
		Tables:    di.MustGet[*services.DynamoDBService](container),
		Roles:     di.MustGet[*services.IAMService](container),
		Prompt:    prompter,
		RepoRoot:  ".",
	}

	failures, err := uninstaller.Uninstall(ctx)
	if err != nil {
		return err
	}
	return summarize(logger, failures)
}
