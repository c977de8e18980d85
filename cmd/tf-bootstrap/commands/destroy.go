package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/tf-bootstrap/internal/bootstrap"
	"github.com/savaki/tf-bootstrap/internal/dao/lockdao"
	"github.com/savaki/tf-bootstrap/internal/di"
	"github.com/savaki/tf-bootstrap/internal/prompt"
	"github.com/savaki/tf-bootstrap/internal/statestore"
	"github.com/savaki/tf-bootstrap/internal/terraform"
)

// DestroyCommand returns the destroy command: tear down one environment's
// managed infrastructure, or all of them.
func DestroyCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "destroy",
		Usage: "Destroy an environment's managed infrastructure",
		Description: `Runs terraform destroy for a registered environment against the shared
backend and removes the environment from the inventory. Passing "all"
destroys every environment sequentially.

Requires typing the exact phrase ` + bootstrap.DestroyPhrase + ` at the confirmation prompt.

Examples:
  tf-bootstrap destroy
  tf-bootstrap destroy --env staging
  tf-bootstrap destroy --env all`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   `Environment to destroy, or "all"`,
			},
			&cli.StringFlag{
				Name:  "terraform-bin",
				Usage: "Path to the terraform binary",
				Value: "terraform",
			},
		},
		Action: func(c *cli.Context) error {
			return destroyAction(c, logger)
		},
	}
}

func destroyAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := c.Context
	prompter := prompt.New(os.Stdin, os.Stdout)

	store := statestore.New(statestore.DefaultFilename)
	doc, err := store.Load()
	if err != nil {
		return err
	}
	if len(doc.Environments) == 0 {
		return fmt.Errorf("no environments registered in %s", store.Path())
	}

	target := c.String("env")
	if target == "" {
		target, err = pickEnvironment(prompter, doc)
		if err != nil {
			return err
		}
	}

	destroyer, err := newDestroyer(store, doc, prompter, c.String("terraform-bin"))
	if err != nil {
		return err
	}

	if target == "all" {
		failures := destroyer.DestroyAll(ctx)
		return summarize(logger, failures)
	}
	return destroyer.DestroyEnv(ctx, target)
}

// pickEnvironment lists the registered environments and asks which to
// destroy.
func pickEnvironment(prompter *prompt.Prompter, doc *statestore.Document) (string, error) {
	names := make([]string, 0, len(doc.Environments))
	for _, env := range doc.Environments {
		names = append(names, env.Name)
	}
	question := fmt.Sprintf("Environment to destroy (%s, or all)", strings.Join(names, ", "))
	return prompter.Ask(question, names[0])
}

// newDestroyer wires a Destroyer against the recorded backend. The AWS
// config comes from the ambient environment; init already exported the
// credentials it verified.
func newDestroyer(store *statestore.Store, doc *statestore.Document, prompter *prompt.Prompter, terraformBin string) (*bootstrap.Destroyer, error) {
	container, err := di.New(doc.AWSRegion)
	if err != nil {
		return nil, err
	}

	locks := lockdao.New(di.MustGet[*dynamodb.Client](container), doc.DynamoDBTable)

	return &bootstrap.Destroyer{
		Store:  store,
		Doc:    doc,
		Locks:  locks,
		Prompt: prompter,
		Out:    os.Stdout,
		NewRunner: func(dir string) bootstrap.TerraformRunner {
			return terraform.NewRunner(terraformBin, dir)
		},
	}, nil
}

// summarize reports collected per-environment failures at the end of a
// multi-environment run. Non-nil only when something failed.
func summarize(logger *zerolog.Logger, failures []bootstrap.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	for _, failure := range failures {
		logger.Error().Err(failure.Err).Str("name", failure.Name).Msg("teardown step failed")
	}
	return fmt.Errorf("%d teardown step(s) failed", len(failures))
}
