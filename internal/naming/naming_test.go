package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceHash(t *testing.T) {
	// Regression anchor: first 8 hex chars of sha256("acme/widgets")
	assert.Equal(t, "d782c874", ResourceHash("acme", "widgets"))

	// Stable across calls
	assert.Equal(t, ResourceHash("acme", "widgets"), ResourceHash("acme", "widgets"))

	// Distinct pairs produce distinct hashes
	assert.NotEqual(t, ResourceHash("acme", "widgets"), ResourceHash("acme", "gizmos"))
	assert.NotEqual(t, ResourceHash("acme", "widgets"), ResourceHash("other", "widgets"))

	// org/repo boundary matters: "a/bc" vs "ab/c"
	assert.NotEqual(t, ResourceHash("a", "bc"), ResourceHash("ab", "c"))
}

func TestNew(t *testing.T) {
	names := New("acme", "widgets")
	assert.Equal(t, "tf-state-widgets-d782c874", names.Bucket)
	assert.Equal(t, "tf-lock-widgets-d782c874", names.Table)
}

func TestRoleName(t *testing.T) {
	names := New("acme", "widgets")
	assert.Equal(t, "github-actions-widgets-staging", names.RoleName("staging", false))
	assert.Equal(t, "github-actions-widgets-production", names.RoleName("production", false))
	assert.Equal(t, "github-actions-widgets", names.RoleName("staging", true))
	assert.Equal(t, "github-actions-widgets", names.RoleName("", false))
}

func TestLockID(t *testing.T) {
	names := New("acme", "widgets")
	assert.Equal(t, "staging/terraform.tfstate", StateKey("staging"))
	assert.Equal(t, "tf-state-widgets-d782c874/staging/terraform.tfstate-md5", names.LockID("staging"))
}
