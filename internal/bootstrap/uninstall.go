package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/savaki/tf-bootstrap/internal/generate"
	"github.com/savaki/tf-bootstrap/internal/naming"
	"github.com/savaki/tf-bootstrap/internal/statestore"
)

// UninstallPhrase is the confirmation for a full teardown. Deliberately
// longer than DestroyPhrase to match the severity.
const UninstallPhrase = "UNINSTALL EVERYTHING"

// tableDeleteWait bounds the wait for the lock table to finish deleting so
// a subsequent init can recreate it without a name collision.
const tableDeleteWait = 5 * time.Minute

type bucketDeleter interface {
	EmptyBucket(ctx context.Context, bucket string) (int, error)
	DeleteBucket(ctx context.Context, bucket string) error
}

type tableDeleter interface {
	DeleteTable(ctx context.Context, table string, maxWait time.Duration) error
}

type roleDeleter interface {
	DeleteRole(ctx context.Context, roleName string) error
}

// Uninstaller removes everything this tool created: every environment's
// managed infrastructure, the shared backend resources, the generated
// workflow files, and the state store itself. After the confirmation gate
// each step is best-effort - one unreachable resource must not strand the
// rest of the teardown - and failures are collected for an end-of-run
// summary rather than aborting.
type Uninstaller struct {
	Store     *statestore.Store
	Doc       *statestore.Document
	Names     naming.Names
	Destroyer *Destroyer
	Buckets   bucketDeleter
	Tables    tableDeleter
	Roles     roleDeleter
	Prompt    prompter

	// RepoRoot anchors the generated workflow file paths.
	RepoRoot string
}

// Uninstall runs the two-phase teardown. Only the confirmation gate is
// fatal; everything after returns a failure summary.
func (u *Uninstaller) Uninstall(ctx context.Context) ([]Failure, error) {
	logger := zerolog.Ctx(ctx)

	question := fmt.Sprintf(
		"This will destroy every environment of %s, delete the state bucket %s (including all state history), the lock table %s, and the OIDC roles.",
		u.Doc.Repo, u.Doc.S3Bucket, u.Doc.DynamoDBTable)
	if err := u.Prompt.ConfirmPhrase(question, UninstallPhrase); err != nil {
		return nil, err
	}

	// Phase 1 mutates the environment list, so remember it for the
	// role-name derivation and workflow cleanup in phase 2.
	envNames := make([]string, 0, len(u.Doc.Environments))
	for _, env := range u.Doc.Environments {
		envNames = append(envNames, env.Name)
	}

	u.Destroyer.SkipConfirmation = true
	failures := u.Destroyer.DestroyAll(ctx)

	for _, roleName := range u.roleNames(envNames) {
		if err := u.Roles.DeleteRole(ctx, roleName); err != nil {
			logger.Error().Err(err).Str("role", roleName).Msg("failed to delete role")
			failures = append(failures, Failure{Name: "role " + roleName, Err: err})
		}
	}

	if err := u.Tables.DeleteTable(ctx, u.Doc.DynamoDBTable, tableDeleteWait); err != nil {
		logger.Error().Err(err).Str("table", u.Doc.DynamoDBTable).Msg("failed to delete lock table")
		failures = append(failures, Failure{Name: "table " + u.Doc.DynamoDBTable, Err: err})
	}

	if deleted, err := u.Buckets.EmptyBucket(ctx, u.Doc.S3Bucket); err != nil {
		logger.Error().Err(err).Str("bucket", u.Doc.S3Bucket).Msg("failed to empty bucket")
		failures = append(failures, Failure{Name: "bucket " + u.Doc.S3Bucket, Err: err})
	} else {
		logger.Info().Int("deleted", deleted).Str("bucket", u.Doc.S3Bucket).Msg("bucket emptied")
		if err := u.Buckets.DeleteBucket(ctx, u.Doc.S3Bucket); err != nil {
			logger.Error().Err(err).Str("bucket", u.Doc.S3Bucket).Msg("failed to delete bucket")
			failures = append(failures, Failure{Name: "bucket " + u.Doc.S3Bucket, Err: err})
		}
	}

	for _, env := range envNames {
		path := generate.WorkflowPath(u.RepoRoot, env)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			failures = append(failures, Failure{Name: "workflow " + path, Err: err})
		}
	}

	if err := u.Store.Delete(); err != nil {
		failures = append(failures, Failure{Name: "state store", Err: err})
	}

	logger.Info().Int("failures", len(failures)).Msg("uninstall finished")
	return failures, nil
}

// roleNames derives every role this tool may have created for the
// repository: the shared role plus one per environment. Deleting a role
// that never existed is a no-op, so over-approximating is safe.
func (u *Uninstaller) roleNames(envs []string) []string {
	seen := map[string]bool{}
	var names []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	add(u.Names.RoleName("", true))
	for _, env := range envs {
		add(u.Names.RoleName(env, false))
	}
	return names
}
