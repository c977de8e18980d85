// Package bootstrap orchestrates the provisioning and teardown flows: the
// create-or-import reconciliation of the shared backend resources, the
// per-environment destroy state machine, and the two-phase uninstall.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/gox/slicex"

	"github.com/savaki/tf-bootstrap/internal/naming"
	"github.com/savaki/tf-bootstrap/internal/policy"
	"github.com/savaki/tf-bootstrap/internal/statestore"
	"github.com/savaki/tf-bootstrap/internal/terraform"
)

// TerraformRunner is the slice of the terraform runner the flows use.
type TerraformRunner interface {
	Init(ctx context.Context) error
	InitBackend(ctx context.Context, backend terraform.Backend) error
	Import(ctx context.Context, addr, id string, vars terraform.Vars) error
	Apply(ctx context.Context, targets []string, vars terraform.Vars) error
	PlanDestroy(ctx context.Context, vars terraform.Vars) (bool, string, error)
	Destroy(ctx context.Context, vars terraform.Vars) error
}

type bucketProber interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

type tableProber interface {
	TableExists(ctx context.Context, table string) (bool, error)
}

type roleProber interface {
	RoleExists(ctx context.Context, roleName string) (bool, error)
	OIDCProviderExists(ctx context.Context, providerARN string) (bool, error)
}

type policyValidator interface {
	ValidatePolicy(policyJSON, bucket, lockTable string) (*policy.ValidationResult, error)
}

// Provisioner converges the shared backend resources for one repository:
// the state bucket, the lock table, and the GitHub OIDC roles. Each
// resource follows the same protocol: probe for existence with a direct
// AWS call, import into terraform state when found, then apply - so a
// re-run against converged infrastructure changes nothing.
type Provisioner struct {
	Names        naming.Names
	Region       string
	AccountID    string
	Environments []string

	// SharedRole collapses the per-environment roles into a single role
	// every pipeline assumes.
	SharedRole bool

	// AttachInlinePolicy controls whether the access policy is attached to
	// the roles. Organizations that manage role permissions through SCPs
	// disable this.
	AttachInlinePolicy bool

	Buckets   bucketProber
	Tables    tableProber
	Roles     roleProber
	Validator policyValidator
	Runner    TerraformRunner
}

// RoleNames returns the distinct role names to provision. Env-suffixed
// names only appear when more than one environment exists and SharedRole
// has not collapsed them; a single environment gets the bare repo role.
func (p *Provisioner) RoleNames() []string {
	if p.SharedRole || len(p.Environments) <= 1 {
		return []string{p.Names.RoleName("", true)}
	}

	names := slicex.Map(p.Environments, func(env string) string {
		return p.Names.RoleName(env, false)
	})

	seen := map[string]bool{}
	distinct := names[:0]
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			distinct = append(distinct, name)
		}
	}
	return distinct
}

// RoleNameFor returns the role an environment's pipeline assumes.
func (p *Provisioner) RoleNameFor(env string) string {
	return p.Names.RoleName(env, p.SharedRole || len(p.Environments) <= 1)
}

// Provision converges bucket, lock table, and roles. The rendered role
// policy is validated against the guardrail before terraform ever sees it.
func (p *Provisioner) Provision(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	providerARN := policy.OIDCProviderARN(p.AccountID)
	trustPolicy := policy.BuildTrustPolicy(providerARN, p.Names.Org, p.Names.Repo)
	rolePolicy := policy.BuildRolePolicy(p.Region, p.AccountID, p.Names.Bucket, p.Names.Table)

	result, err := p.Validator.ValidatePolicy(rolePolicy, p.Names.Bucket, p.Names.Table)
	if err != nil {
		return fmt.Errorf("failed to validate role policy: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("role policy failed guardrail validation:\n  %s", strings.Join(result.Violations, "\n  "))
	}

	vars := terraform.Vars{
		"region":               p.Region,
		"org":                  p.Names.Org,
		"repo":                 p.Names.Repo,
		"bucket":               p.Names.Bucket,
		"lock_table":           p.Names.Table,
		"role_names":           p.RoleNames(),
		"trust_policy":         trustPolicy,
		"role_policy":          rolePolicy,
		"attach_inline_policy": p.AttachInlinePolicy,
	}

	if err := p.Runner.Init(ctx); err != nil {
		return err
	}

	if err := p.reconcileBucket(ctx, logger, vars); err != nil {
		return err
	}
	if err := p.reconcileTable(ctx, logger, vars); err != nil {
		return err
	}
	if err := p.reconcileRoles(ctx, logger, providerARN, vars); err != nil {
		return err
	}

	logger.Info().
		Str("bucket", p.Names.Bucket).
		Str("table", p.Names.Table).
		Strs("roles", p.RoleNames()).
		Msg("backend resources converged")
	return nil
}

func (p *Provisioner) reconcileBucket(ctx context.Context, logger *zerolog.Logger, vars terraform.Vars) error {
	exists, err := p.Buckets.BucketExists(ctx, p.Names.Bucket)
	if err != nil {
		return err
	}
	if exists {
		logger.Info().Str("bucket", p.Names.Bucket).Msg("state bucket exists, importing")
		p.importQuietly(ctx, logger, terraform.AddrBucket, p.Names.Bucket, vars)
	}
	return p.Runner.Apply(ctx, terraform.BucketTargets, vars)
}

func (p *Provisioner) reconcileTable(ctx context.Context, logger *zerolog.Logger, vars terraform.Vars) error {
	exists, err := p.Tables.TableExists(ctx, p.Names.Table)
	if err != nil {
		return err
	}
	if exists {
		logger.Info().Str("table", p.Names.Table).Msg("lock table exists, importing")
		p.importQuietly(ctx, logger, terraform.AddrLockTable, p.Names.Table, vars)
	}
	return p.Runner.Apply(ctx, terraform.TableTargets, vars)
}

func (p *Provisioner) reconcileRoles(ctx context.Context, logger *zerolog.Logger, providerARN string, vars terraform.Vars) error {
	exists, err := p.Roles.OIDCProviderExists(ctx, providerARN)
	if err != nil {
		return err
	}
	if exists {
		logger.Info().Str("arn", providerARN).Msg("OIDC provider exists, importing")
		p.importQuietly(ctx, logger, terraform.AddrOIDCProvider, providerARN, vars)
	}

	for _, roleName := range p.RoleNames() {
		exists, err := p.Roles.RoleExists(ctx, roleName)
		if err != nil {
			return err
		}
		if exists {
			logger.Info().Str("role", roleName).Msg("role exists, importing")
			addr := fmt.Sprintf("%s[%q]", terraform.AddrRole, roleName)
			p.importQuietly(ctx, logger, addr, roleName, vars)
		}
	}

	return p.Runner.Apply(ctx, terraform.RoleTargets, vars)
}

// importQuietly runs an import and swallows the error: a failure usually
// means the resource is already bound into state, and the apply that always
// follows is authoritative either way.
func (p *Provisioner) importQuietly(ctx context.Context, logger *zerolog.Logger, addr, id string, vars terraform.Vars) {
	if err := p.Runner.Import(ctx, addr, id, vars); err != nil {
		logger.Debug().Err(err).Str("addr", addr).Msg("import failed, continuing to apply")
	}
}

// Inventory assembles the state store document recorded after a successful
// provision.
func (p *Provisioner) Inventory(envs []statestore.Environment) *statestore.Document {
	return &statestore.Document{
		Version:       statestore.Version,
		Repo:          fmt.Sprintf("%s/%s", p.Names.Org, p.Names.Repo),
		AWSRegion:     p.Region,
		S3Bucket:      p.Names.Bucket,
		DynamoDBTable: p.Names.Table,
		IAMRole:       p.Names.RoleName("", true),
		Environments:  envs,
	}
}
