package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"

	"github.com/savaki/tf-bootstrap/internal/bootstrap"
	"github.com/savaki/tf-bootstrap/internal/di"
	"github.com/savaki/tf-bootstrap/internal/generate"
	"github.com/savaki/tf-bootstrap/internal/gitrepo"
	"github.com/savaki/tf-bootstrap/internal/naming"
	"github.com/savaki/tf-bootstrap/internal/policy"
	"github.com/savaki/tf-bootstrap/internal/prompt"
	"github.com/savaki/tf-bootstrap/internal/services"
	"github.com/savaki/tf-bootstrap/internal/statestore"
	"github.com/savaki/tf-bootstrap/internal/terraform"
)

// InitCommand returns the init command: the interactive wizard that
// provisions the backend and generates the pipelines.
func InitCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Provision the Terraform backend and generate CI pipelines",
		Description: `Walks through credential and environment setup, then provisions the
state bucket, lock table, and GitHub OIDC role(s), generates one deploy
workflow per environment, and records the inventory in ` + statestore.DefaultFilename + `.

Re-running init is safe: existing resources are imported and converged
rather than recreated.

Examples:
  tf-bootstrap init
  tf-bootstrap init --region us-west-2 --shared-role
  tf-bootstrap init --disable-inline-policies`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "region",
				Aliases: []string{"r"},
				Usage:   "AWS region for the backend resources",
				EnvVars: []string{"AWS_REGION", "AWS_DEFAULT_REGION"},
			},
			&cli.BoolFlag{
				Name:  "shared-role",
				Usage: "Create a single OIDC role shared by every environment",
			},
			&cli.BoolFlag{
				Name:  "disable-inline-policies",
				Usage: "Skip attaching the access policy to the role(s) (for SCP-managed accounts)",
			},
			&cli.StringFlag{
				Name:  "terraform-bin",
				Usage: "Path to the terraform binary",
				Value: "terraform",
			},
		},
		Action: func(c *cli.Context) error {
			return initAction(c, logger)
		},
	}
}

func initAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := c.Context
	prompter := prompt.New(os.Stdin, os.Stdout)

	identity, err := gitrepo.Resolve(".")
	if err != nil {
		return err
	}
	logger.Info().Str("repo", identity.FullName()).Msg("resolved repository")

	region := c.String("region")
	if region == "" {
		region, err = prompter.Ask("AWS region", "us-east-1")
		if err != nil {
			return err
		}
	}

	creds, err := collectCredentials(prompter)
	if err != nil {
		return err
	}

	credSvc := services.NewCredentialService()
	cfg, accountID, err := credSvc.Resolve(ctx, creds, region)
	if err != nil {
		return err
	}
	logger.Info().Str("account", accountID).Str("region", region).Msg("credentials verified")

	envs, err := collectEnvironments(prompter)
	if err != nil {
		return err
	}

	container, err := di.New(region, di.WithConfig(cfg))
	if err != nil {
		return err
	}

	workDir := filepath.Join(os.TempDir(), "tf-bootstrap-"+ksuid.New().String())
	if err := terraform.WriteBootstrapModule(workDir); err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	envNames := make([]string, 0, len(envs))
	for _, env := range envs {
		envNames = append(envNames, env.Name)
	}

	provisioner := &bootstrap.Provisioner{
		Names:              naming.New(identity.Org, identity.Repo),
		Region:             region,
		AccountID:          accountID,
		Environments:       envNames,
		SharedRole:         c.Bool("shared-role"),
		AttachInlinePolicy: !c.Bool("disable-inline-policies"),
		Buckets:            di.MustGet[*services.S3Service](container),
		Tables:             di.MustGet[*services.DynamoDBService](container),
		Roles:              di.MustGet[*services.IAMService](container),
		Validator:          di.MustGet[*policy.Validator](container),
		Runner:             terraform.NewRunner(c.String("terraform-bin"), workDir),
	}

	if err := provisioner.Provision(ctx); err != nil {
		return err
	}

	doc := provisioner.Inventory(envs)
	for _, env := range envs {
		params := generate.WorkflowParams{
			Env:       env.Name,
			WatchDir:  env.WatchDir,
			Branch:    env.Branch,
			RoleARN:   services.RoleARN(accountID, provisioner.RoleNameFor(env.Name)),
			Bucket:    doc.S3Bucket,
			LockTable: doc.DynamoDBTable,
			Region:    region,
			StateKey:  naming.StateKey(env.Name),
		}
		workflowPath, err := generate.WriteWorkflow(".", params)
		if err != nil {
			return err
		}
		logger.Info().Str("env", env.Name).Str("workflow", workflowPath).Msg("workflow generated")

		stubPath, written, err := generate.WriteBackendStub(env.WatchDir)
		if err != nil {
			return err
		}
		if written {
			logger.Info().Str("env", env.Name).Str("stub", stubPath).Msg("backend stub written")
		} else {
			logger.Info().Str("env", env.Name).Str("stub", stubPath).Msg("backend stub already present, left untouched")
		}
	}

	store := statestore.New(statestore.DefaultFilename)
	if err := store.Save(doc); err != nil {
		return err
	}

	logger.Info().Str("path", store.Path()).Msg("bootstrap complete")
	return nil
}

// collectCredentials resolves the credential mode: ambient environment keys
// win without prompting, otherwise the operator picks a shared-config
// profile or enters keys directly.
func collectCredentials(prompter *prompt.Prompter) (services.Credentials, error) {
	if services.EnvironmentCredentialsPresent() {
		prompter.Say("Using AWS credentials from the environment.")
		return services.Credentials{Mode: services.ModeEnvironment}, nil
	}

	useProfile, err := prompter.Confirm("No AWS credentials found in the environment. Use a shared config profile?")
	if err != nil {
		return services.Credentials{}, err
	}

	if useProfile {
		profile, err := prompter.Ask("Profile name", "default")
		if err != nil {
			return services.Credentials{}, err
		}
		return services.Credentials{Mode: services.ModeProfile, Profile: profile}, nil
	}

	accessKey, err := prompter.Ask("AWS access key ID", "")
	if err != nil {
		return services.Credentials{}, err
	}
	secretKey, err := prompter.Ask("AWS secret access key", "")
	if err != nil {
		return services.Credentials{}, err
	}
	sessionToken, err := prompter.Ask("AWS session token (leave empty if none)", "")
	if err != nil {
		return services.Credentials{}, err
	}

	return services.Credentials{
		Mode:            services.ModeStaticKeys,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    sessionToken,
	}, nil
}

// collectEnvironments prompts for the environment list: count, then name,
// watch directory, and trigger branch per entry.
func collectEnvironments(prompter *prompt.Prompter) ([]statestore.Environment, error) {
	countStr, err := prompter.Ask("How many environments", "1")
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		return nil, fmt.Errorf("invalid environment count %q", countStr)
	}

	doc := statestore.Document{}
	for i := 0; i < count; i++ {
		name, err := prompter.Ask(fmt.Sprintf("Environment %d name", i+1), defaultEnvName(i))
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("environment name must not be empty")
		}
		watchDir, err := prompter.Ask(fmt.Sprintf("Terraform directory for %q", name), filepath.Join("infra", name))
		if err != nil {
			return nil, err
		}
		branch, err := prompter.Ask(fmt.Sprintf("Trigger branch for %q", name), "main")
		if err != nil {
			return nil, err
		}
		doc.AddEnvironment(statestore.Environment{Name: name, WatchDir: watchDir, Branch: branch})
	}
	return doc.Environments, nil
}

func defaultEnvName(i int) string {
	if i == 0 {
		return "dev"
	}
	return ""
}
