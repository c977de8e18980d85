package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/tf-bootstrap/internal/dao/lockdao"
	"github.com/savaki/tf-bootstrap/internal/naming"
	"github.com/savaki/tf-bootstrap/internal/policy"
	"github.com/savaki/tf-bootstrap/internal/terraform"
)

type fakeRunner struct {
	initCalls  int
	backends   []terraform.Backend
	imports    []string
	applies    [][]string
	destroys   int
	planCalls  int
	planChange bool
	planOutput string

	importErr  error
	applyErr   error
	destroyErr error
	planErr    error
}

func (f *fakeRunner) Init(ctx context.Context) error {
	f.initCalls++
	return nil
}

func (f *fakeRunner) InitBackend(ctx context.Context, backend terraform.Backend) error {
	f.backends = append(f.backends, backend)
	return nil
}

func (f *fakeRunner) Import(ctx context.Context, addr, id string, vars terraform.Vars) error {
	f.imports = append(f.imports, addr)
	return f.importErr
}

func (f *fakeRunner) Apply(ctx context.Context, targets []string, vars terraform.Vars) error {
	f.applies = append(f.applies, targets)
	return f.applyErr
}

func (f *fakeRunner) PlanDestroy(ctx context.Context, vars terraform.Vars) (bool, string, error) {
	f.planCalls++
	return f.planChange, f.planOutput, f.planErr
}

func (f *fakeRunner) Destroy(ctx context.Context, vars terraform.Vars) error {
	f.destroys++
	return f.destroyErr
}

type fakeProbes struct {
	bucketExists   bool
	tableExists    bool
	providerExists bool
	rolesExisting  map[string]bool
}

func (f *fakeProbes) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeProbes) TableExists(ctx context.Context, table string) (bool, error) {
	return f.tableExists, nil
}

func (f *fakeProbes) OIDCProviderExists(ctx context.Context, providerARN string) (bool, error) {
	return f.providerExists, nil
}

func (f *fakeProbes) RoleExists(ctx context.Context, roleName string) (bool, error) {
	return f.rolesExisting[roleName], nil
}

type fakeValidator struct {
	result policy.ValidationResult
}

func (f *fakeValidator) ValidatePolicy(policyJSON, bucket, lockTable string) (*policy.ValidationResult, error) {
	return &f.result, nil
}

type fakeLocks struct {
	record  *lockdao.Record
	deleted []lockdao.ID
}

func (f *fakeLocks) Find(ctx context.Context, id lockdao.ID) (*lockdao.Record, error) {
	return f.record, nil
}

func (f *fakeLocks) Delete(ctx context.Context, id lockdao.ID) error {
	f.deleted = append(f.deleted, id)
	f.record = nil
	return nil
}

func newProvisioner(runner *fakeRunner, probes *fakeProbes) *Provisioner {
	return &Provisioner{
		Names:              naming.New("acme", "widgets"),
		Region:             "us-west-2",
		AccountID:          "123456789012",
		Environments:       []string{"staging", "production"},
		AttachInlinePolicy: true,
		Buckets:            probes,
		Tables:             probes,
		Roles:              probes,
		Validator:          &fakeValidator{result: policy.ValidationResult{Allowed: true}},
		Runner:             runner,
	}
}

func TestProvision_FreshAccount(t *testing.T) {
	runner := &fakeRunner{}
	p := newProvisioner(runner, &fakeProbes{})

	require.NoError(t, p.Provision(context.Background()))

	assert.Equal(t, 1, runner.initCalls)
	assert.Empty(t, runner.imports, "nothing exists, nothing to import")
	require.Len(t, runner.applies, 3)
	assert.Equal(t, terraform.BucketTargets, runner.applies[0])
	assert.Equal(t, terraform.TableTargets, runner.applies[1])
	assert.Equal(t, terraform.RoleTargets, runner.applies[2])
}

func TestProvision_ImportsExistingResources(t *testing.T) {
	runner := &fakeRunner{}
	probes := &fakeProbes{
		bucketExists:   true,
		tableExists:    true,
		providerExists: true,
		rolesExisting: map[string]bool{
			"github-actions-widgets-staging": true,
		},
	}
	p := newProvisioner(runner, probes)

	require.NoError(t, p.Provision(context.Background()))

	assert.Equal(t, []string{
		terraform.AddrBucket,
		terraform.AddrLockTable,
		terraform.AddrOIDCProvider,
		`aws_iam_role.github["github-actions-widgets-staging"]`,
	}, runner.imports)
	assert.Len(t, runner.applies, 3, "apply always follows import")
}

func TestProvision_ImportFailureIsSwallowed(t *testing.T) {
	runner := &fakeRunner{importErr: errors.New("Resource already managed")}
	p := newProvisioner(runner, &fakeProbes{bucketExists: true})

	require.NoError(t, p.Provision(context.Background()))
	assert.Len(t, runner.applies, 3)
}

func TestProvision_GuardrailRejectionIsFatal(t *testing.T) {
	runner := &fakeRunner{}
	p := newProvisioner(runner, &fakeProbes{})
	p.Validator = &fakeValidator{result: policy.ValidationResult{
		Allowed:    false,
		Violations: []string{"policy must deny iam mutation actions"},
	}}

	err := p.Provision(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deny iam mutation")
	assert.Zero(t, runner.initCalls, "terraform must not run with a rejected policy")
}

func TestRoleNames(t *testing.T) {
	p := newProvisioner(&fakeRunner{}, &fakeProbes{})
	assert.Equal(t, []string{
		"github-actions-widgets-staging",
		"github-actions-widgets-production",
	}, p.RoleNames())

	p.SharedRole = true
	assert.Equal(t, []string{"github-actions-widgets"}, p.RoleNames())
	assert.Equal(t, "github-actions-widgets", p.RoleNameFor("staging"))
}

func TestRoleNames_SingleEnvironmentGetsBareRole(t *testing.T) {
	p := newProvisioner(&fakeRunner{}, &fakeProbes{})
	p.Environments = []string{"dev"}

	assert.Equal(t, []string{"github-actions-widgets"}, p.RoleNames())
	assert.Equal(t, "github-actions-widgets", p.RoleNameFor("dev"))
}

func TestInventory(t *testing.T) {
	p := newProvisioner(&fakeRunner{}, &fakeProbes{})

	doc := p.Inventory(nil)
	assert.Equal(t, "acme/widgets", doc.Repo)
	assert.Equal(t, "us-west-2", doc.AWSRegion)
	assert.Equal(t, "tf-state-widgets-d782c874", doc.S3Bucket)
	assert.Equal(t, "tf-lock-widgets-d782c874", doc.DynamoDBTable)
	assert.Equal(t, "github-actions-widgets", doc.IAMRole)
}
