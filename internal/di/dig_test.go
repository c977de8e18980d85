package di

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/savaki/tf-bootstrap/internal/policy"
	"github.com/savaki/tf-bootstrap/internal/services"
)

func TestNew_ProvidesRegion(t *testing.T) {
	container, err := New("us-west-2", WithConfig(aws.Config{}))
	require.NoError(t, err)

	var region string
	require.NoError(t, container.Invoke(func(r string) {
		region = r
	}))
	assert.Equal(t, "us-west-2", region)
}

func TestWithConfig_OverridesAmbientLoading(t *testing.T) {
	// The pre-resolved config carries a region different from the container's,
	// so resolving it proves WithConfig won over ProvideAWSConfig.
	preResolved := aws.Config{Region: "eu-central-1"}

	container, err := New("us-west-2", WithConfig(preResolved))
	require.NoError(t, err)

	cfg := MustGet[aws.Config](container)
	assert.Equal(t, "eu-central-1", cfg.Region)
}

func TestWithConfig_FeedsServices(t *testing.T) {
	container, err := New("us-west-2", WithConfig(aws.Config{Region: "us-west-2"}))
	require.NoError(t, err)

	assert.NotNil(t, MustGet[*services.S3Service](container))
	assert.NotNil(t, MustGet[*services.DynamoDBService](container))
	assert.NotNil(t, MustGet[*services.IAMService](container))
	assert.NotNil(t, MustGet[*policy.Validator](container))
}

func TestNew_WithoutConfigRegistersLoader(t *testing.T) {
	container, err := New("us-west-2")
	require.NoError(t, err)

	// The aws.Config slot is already taken by the ambient loader, so a second
	// provider for it must collide. Nothing resolves the config here: the
	// loader only runs when a dependency asks for it.
	err = container.Provide(func() aws.Config { return aws.Config{} })
	assert.Error(t, err)
}

func TestWithProviders(t *testing.T) {
	type teardown struct {
		buckets *services.S3Service
	}

	container, err := New("us-west-2",
		WithConfig(aws.Config{}),
		WithProviders(func(svc *services.S3Service) *teardown {
			return &teardown{buckets: svc}
		}),
	)
	require.NoError(t, err)

	td := MustGet[*teardown](container)
	assert.NotNil(t, td.buckets)
}

func TestMustGet_PanicsWhenMissing(t *testing.T) {
	type unregistered struct{}

	container, err := New("us-west-2", WithConfig(aws.Config{}))
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = MustGet[*unregistered](container)
	})
}

func TestContainer_Interface(t *testing.T) {
	var _ Container = (*dig.Container)(nil)
}
