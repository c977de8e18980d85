package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	apperrors "github.com/savaki/tf-bootstrap/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSTS struct {
	account string
	err     error
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func TestEnvironmentCredentialsPresent(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	assert.False(t, EnvironmentCredentialsPresent())

	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	assert.True(t, EnvironmentCredentialsPresent())
}

func TestResolve_StaticKeys(t *testing.T) {
	// Registered with t.Setenv so the exports Resolve performs are undone.
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_REGION", "")

	svc := NewCredentialServiceWithSTS(func(cfg aws.Config) stsAPI {
		return &fakeSTS{account: "123456789012"}
	})

	cfg, account, err := svc.Resolve(context.Background(), Credentials{
		Mode:            ModeStaticKeys,
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
	}, "us-west-2")
	require.NoError(t, err)
	assert.Equal(t, "123456789012", account)
	assert.Equal(t, "us-west-2", cfg.Region)

	// Exported for terraform subprocesses
	assert.Equal(t, "AKIAEXAMPLE", getenv(t, "AWS_ACCESS_KEY_ID"))
	assert.Equal(t, "us-west-2", getenv(t, "AWS_REGION"))
}

func TestResolve_VerificationFailure(t *testing.T) {
	svc := NewCredentialServiceWithSTS(func(cfg aws.Config) stsAPI {
		return &fakeSTS{err: errors.New("InvalidClientTokenId")}
	})

	_, _, err := svc.Resolve(context.Background(), Credentials{
		Mode:            ModeStaticKeys,
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "bad",
	}, "us-west-2")
	assert.ErrorIs(t, err, apperrors.ErrCredentialVerification)
}

func TestResolve_UnknownMode(t *testing.T) {
	svc := NewCredentialServiceWithSTS(func(cfg aws.Config) stsAPI {
		return &fakeSTS{account: "123456789012"}
	})

	_, _, err := svc.Resolve(context.Background(), Credentials{Mode: "bogus"}, "us-west-2")
	assert.Error(t, err)
}

func getenv(t *testing.T, key string) string {
	t.Helper()
	value := os.Getenv(key)
	require.NotEmpty(t, value, "expected %s to be set", key)
	return value
}
