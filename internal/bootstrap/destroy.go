package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/savaki/tf-bootstrap/internal/dao/lockdao"
	apperrors "github.com/savaki/tf-bootstrap/internal/errors"
	"github.com/savaki/tf-bootstrap/internal/naming"
	"github.com/savaki/tf-bootstrap/internal/statestore"
	"github.com/savaki/tf-bootstrap/internal/terraform"
)

// DestroyPhrase is the confirmation an operator must type before a single
// environment's infrastructure is destroyed. Exact, case-sensitive.
const DestroyPhrase = "DESTROY"

type lockRemover interface {
	Find(ctx context.Context, id lockdao.ID) (*lockdao.Record, error)
	Delete(ctx context.Context, id lockdao.ID) error
}

type prompter interface {
	Confirm(question string) (bool, error)
	ConfirmPhrase(question, phrase string) error
}

// Failure records one failed step of a multi-step teardown.
type Failure struct {
	Name string
	Err  error
}

// Destroyer drives the per-environment destroy state machine: check the
// lock, init against the shared backend, plan the destroy, confirm, run it,
// and drop the environment from the state store.
type Destroyer struct {
	Store  *statestore.Store
	Doc    *statestore.Document
	Locks  lockRemover
	Prompt prompter
	Out    io.Writer

	// NewRunner builds a terraform runner rooted at an environment's watch
	// directory.
	NewRunner func(dir string) TerraformRunner

	// SkipConfirmation bypasses the DESTROY phrase. Only the uninstall flow
	// sets this, after its own (stricter) confirmation gate.
	SkipConfirmation bool
}

// DestroyEnv runs the state machine for one environment. A converged
// environment (destroy plan reports no changes) or a missing watch
// directory just drops the entry from the store.
func (d *Destroyer) DestroyEnv(ctx context.Context, name string) error {
	logger := zerolog.Ctx(ctx)

	env := d.Doc.FindEnvironment(name)
	if env == nil {
		return fmt.Errorf("%w: %s", apperrors.ErrEnvironmentNotFound, name)
	}

	if err := d.checkLock(ctx, name); err != nil {
		return err
	}

	if _, err := os.Stat(env.WatchDir); os.IsNotExist(err) {
		logger.Warn().
			Str("env", name).
			Str("watch_dir", env.WatchDir).
			Msg("watch directory missing, removing environment from inventory")
		return d.removeFromStore(name)
	}

	runner := d.NewRunner(env.WatchDir)
	backend := terraform.Backend{
		Bucket:  d.Doc.S3Bucket,
		Key:     naming.StateKey(name),
		Region:  d.Doc.AWSRegion,
		Table:   d.Doc.DynamoDBTable,
		Encrypt: true,
	}
	if err := runner.InitBackend(ctx, backend); err != nil {
		return err
	}

	changes, plan, err := runner.PlanDestroy(ctx, nil)
	if err != nil {
		return err
	}
	if !changes {
		logger.Info().Str("env", name).Msg("nothing to destroy")
		return d.removeFromStore(name)
	}

	fmt.Fprintln(d.Out, plan)

	if !d.SkipConfirmation {
		question := fmt.Sprintf("This will destroy all managed infrastructure for %q.", name)
		if err := d.Prompt.ConfirmPhrase(question, DestroyPhrase); err != nil {
			return err
		}
	}

	if err := runner.Destroy(ctx, nil); err != nil {
		return err
	}

	logger.Info().Str("env", name).Msg("environment destroyed")
	return d.removeFromStore(name)
}

// DestroyAll runs DestroyEnv over every registered environment in order.
// A failure stops that environment but not the rest; the collected
// failures come back for an end-of-run summary. Prior destroys are never
// rolled back.
func (d *Destroyer) DestroyAll(ctx context.Context) []Failure {
	names := make([]string, 0, len(d.Doc.Environments))
	for _, env := range d.Doc.Environments {
		names = append(names, env.Name)
	}

	var failures []Failure
	for _, name := range names {
		if err := d.DestroyEnv(ctx, name); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("env", name).Msg("destroy failed")
			failures = append(failures, Failure{Name: name, Err: err})
		}
	}
	return failures
}

// checkLock looks for a stale backend lock on the environment's state and
// offers to remove it. Declining aborts the destroy: the operator must
// confirm no other run is active before the record is touched.
func (d *Destroyer) checkLock(ctx context.Context, env string) error {
	id := lockdao.NewID(d.Doc.S3Bucket, naming.StateKey(env))
	record, err := d.Locks.Find(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	fmt.Fprintf(d.Out, "Found a state lock for %q:\n  %s\n", env, record.LockID)
	if record.Info != "" {
		fmt.Fprintf(d.Out, "  %s\n", record.Info)
	}
	fmt.Fprintln(d.Out, "This usually means a previous terraform run crashed or was interrupted.")

	confirmed, err := d.Prompt.Confirm("Remove the lock and continue?")
	if err != nil {
		return err
	}
	if !confirmed {
		return fmt.Errorf("%w: %s (resolve manually with `terraform force-unlock` or re-run once the active run finishes)", apperrors.ErrLockHeld, id)
	}
	return d.Locks.Delete(ctx, id)
}

func (d *Destroyer) removeFromStore(name string) error {
	d.Doc.RemoveEnvironment(name)
	return d.Store.Save(d.Doc)
}
