// Package terraform shells out to the terraform binary through a typed
// request/result API. Callers never parse human-oriented output: plan
// convergence is read from -detailed-exitcode and every invocation carries a
// bounded timeout so a hung subprocess cannot hang the whole run.
package terraform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"
)

// DefaultTimeout bounds a single terraform invocation.
const DefaultTimeout = 15 * time.Minute

// Vars holds -var assignments. String values pass through as-is; any other
// type is rendered as a JSON/HCL literal.
type Vars map[string]any

// Backend carries the S3 backend overrides passed at init time. All state
// placement comes from here, never from committed backend configuration -
// that is what lets one bucket host isolated per-environment state.
type Backend struct {
	Bucket  string
	Key     string
	Region  string
	Table   string
	Encrypt bool
}

// Result is the structured outcome of one invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes terraform in a fixed working directory.
type Runner struct {
	bin     string
	dir     string
	timeout time.Duration

	// execFn runs the prepared command; replaced in tests.
	execFn func(ctx context.Context, bin, dir string, args []string) (Result, error)
}

// NewRunner returns a Runner for the given binary and working directory.
func NewRunner(bin, dir string) *Runner {
	if bin == "" {
		bin = "terraform"
	}
	return &Runner{
		bin:     bin,
		dir:     dir,
		timeout: DefaultTimeout,
		execFn:  execTerraform,
	}
}

// WithTimeout overrides the per-invocation timeout.
func (r *Runner) WithTimeout(timeout time.Duration) *Runner {
	r.timeout = timeout
	return r
}

// WithExec replaces the process launcher. This is useful for testing.
func (r *Runner) WithExec(fn func(ctx context.Context, bin, dir string, args []string) (Result, error)) *Runner {
	r.execFn = fn
	return r
}

func execTerraform(ctx context.Context, bin, dir string, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TF_IN_AUTOMATION=1", "TF_INPUT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run %s: %w", bin, err)
	}
	result.ExitCode = cmd.ProcessState.ExitCode()
	if ctx.Err() != nil {
		return result, fmt.Errorf("terraform %v: %w", args[:1], ctx.Err())
	}
	return result, nil
}

func (r *Runner) run(ctx context.Context, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.execFn(ctx, r.bin, r.dir, args)
}

// varArgs renders vars as -var arguments in stable order.
func varArgs(vars Vars) []string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		var literal string
		switch v := vars[key].(type) {
		case string:
			literal = v
		default:
			encoded, _ := json.Marshal(v)
			literal = string(encoded)
		}
		args = append(args, "-var", fmt.Sprintf("%s=%s", key, literal))
	}
	return args
}

// Init initializes the working directory with local state.
func (r *Runner) Init(ctx context.Context) error {
	result, err := r.run(ctx, "init", "-input=false")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("terraform init failed:\n%s", result.Stderr)
	}
	return nil
}

// InitBackend initializes the working directory against the shared S3
// backend, passing every backend parameter as an override.
func (r *Runner) InitBackend(ctx context.Context, backend Backend) error {
	args := []string{
		"init", "-input=false", "-reconfigure",
		"-backend-config", fmt.Sprintf("bucket=%s", backend.Bucket),
		"-backend-config", fmt.Sprintf("key=%s", backend.Key),
		"-backend-config", fmt.Sprintf("region=%s", backend.Region),
		"-backend-config", fmt.Sprintf("dynamodb_table=%s", backend.Table),
		"-backend-config", fmt.Sprintf("encrypt=%t", backend.Encrypt),
	}
	result, err := r.run(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("terraform init failed:\n%s", result.Stderr)
	}
	return nil
}

// Import binds an existing resource into state. The error return is advisory:
// callers typically swallow it because "already managed" surfaces as a
// failure and apply is attempted regardless.
func (r *Runner) Import(ctx context.Context, addr, id string, vars Vars) error {
	args := append([]string{"import", "-input=false"}, varArgs(vars)...)
	args = append(args, addr, id)

	result, err := r.run(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("terraform import %s failed:\n%s", addr, result.Stderr)
	}
	return nil
}

// Apply converges the targeted resources. The tool's stderr is surfaced
// verbatim on failure.
func (r *Runner) Apply(ctx context.Context, targets []string, vars Vars) error {
	args := []string{"apply", "-input=false", "-auto-approve"}
	for _, target := range targets {
		args = append(args, "-target", target)
	}
	args = append(args, varArgs(vars)...)

	result, err := r.run(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("terraform apply failed:\n%s", result.Stderr)
	}
	return nil
}

// PlanDestroy runs a destroy plan and reports whether any changes are
// pending. -detailed-exitcode makes the answer structural: 0 means
// converged, 2 means changes, anything else is a failure.
func (r *Runner) PlanDestroy(ctx context.Context, vars Vars) (changes bool, plan string, err error) {
	args := append([]string{"plan", "-destroy", "-input=false", "-detailed-exitcode"}, varArgs(vars)...)

	result, err := r.run(ctx, args...)
	if err != nil {
		return false, "", err
	}
	switch result.ExitCode {
	case 0:
		return false, result.Stdout, nil
	case 2:
		return true, result.Stdout, nil
	default:
		return false, "", fmt.Errorf("terraform plan failed:\n%s", result.Stderr)
	}
}

// Destroy tears down everything in the working directory's state.
func (r *Runner) Destroy(ctx context.Context, vars Vars) error {
	args := append([]string{"destroy", "-input=false", "-auto-approve"}, varArgs(vars)...)

	result, err := r.run(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("terraform destroy failed:\n%s", result.Stderr)
	}
	return nil
}
