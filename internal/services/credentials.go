package services

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	apperrors "github.com/savaki/tf-bootstrap/internal/errors"
)

// CredentialMode identifies how AWS credentials were resolved.
type CredentialMode string

const (
	ModeEnvironment CredentialMode = "environment"
	ModeProfile     CredentialMode = "profile"
	ModeStaticKeys  CredentialMode = "static"
)

// Credentials is the resolved credential choice. Exactly one mode applies;
// the remaining fields are meaningful only for their mode.
type Credentials struct {
	Mode            CredentialMode
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// EnvironmentCredentialsPresent reports whether the ambient environment
// already carries a usable key pair, in which case no prompting happens.
func EnvironmentCredentialsPresent() bool {
	return os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != ""
}

// stsAPI is the slice of the STS client used for identity verification.
type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// CredentialService resolves credentials into an aws.Config and verifies
// them with a live identity check.
type CredentialService struct {
	newSTS func(cfg aws.Config) stsAPI
}

// NewCredentialService returns a CredentialService using real STS.
func NewCredentialService() *CredentialService {
	return &CredentialService{
		newSTS: func(cfg aws.Config) stsAPI { return sts.NewFromConfig(cfg) },
	}
}

// NewCredentialServiceWithSTS creates a CredentialService with a custom STS
// factory. This is useful for testing.
func NewCredentialServiceWithSTS(newSTS func(cfg aws.Config) stsAPI) *CredentialService {
	return &CredentialService{newSTS: newSTS}
}

// Resolve builds an aws.Config for the chosen credentials, verifies it via
// GetCallerIdentity, and returns the config plus the account ID. For profile
// and static modes the choice is exported to the process environment so
// spawned terraform subprocesses authenticate the same way. Secrets are
// never written to disk.
func (s *CredentialService) Resolve(ctx context.Context, creds Credentials, region string) (aws.Config, string, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	switch creds.Mode {
	case ModeProfile:
		opts = append(opts, config.WithSharedConfigProfile(creds.Profile))
	case ModeStaticKeys:
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	case ModeEnvironment:
		// LoadDefaultConfig picks the env vars up on its own.
	default:
		return aws.Config{}, "", fmt.Errorf("unknown credential mode %q", creds.Mode)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	identity, err := s.newSTS(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return aws.Config{}, "", fmt.Errorf("%w: %v", apperrors.ErrCredentialVerification, err)
	}
	if identity.Account == nil {
		return aws.Config{}, "", fmt.Errorf("%w: caller identity returned no account", apperrors.ErrCredentialVerification)
	}

	if err := exportCredentialEnv(creds, region); err != nil {
		return aws.Config{}, "", err
	}

	return cfg, *identity.Account, nil
}

func exportCredentialEnv(creds Credentials, region string) error {
	pairs := map[string]string{"AWS_REGION": region}
	switch creds.Mode {
	case ModeProfile:
		pairs["AWS_PROFILE"] = creds.Profile
	case ModeStaticKeys:
		pairs["AWS_ACCESS_KEY_ID"] = creds.AccessKeyID
		pairs["AWS_SECRET_ACCESS_KEY"] = creds.SecretAccessKey
		if creds.SessionToken != "" {
			pairs["AWS_SESSION_TOKEN"] = creds.SessionToken
		}
	}

	for key, value := range pairs {
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to export %s: %w", key, err)
		}
	}
	return nil
}
