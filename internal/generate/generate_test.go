package generate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testParams(env string) WorkflowParams {
	return WorkflowParams{
		Env:       env,
		WatchDir:  "infra/" + env,
		Branch:    "main",
		RoleARN:   "arn:aws:iam::123456789012:role/github-actions-widgets-" + env,
		Bucket:    "tf-state-widgets-d782c874",
		LockTable: "tf-lock-widgets-d782c874",
		Region:    "us-west-2",
		StateKey:  env + "/terraform.tfstate",
	}
}

func TestWriteWorkflow_SubstitutesAllPlaceholders(t *testing.T) {
	root := t.TempDir()

	path, err := WriteWorkflow(root, testParams("staging"))
	require.NoError(t, err)
	assert.Equal(t, WorkflowPath(root, "staging"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	for _, want := range []string{
		"deploy-staging",
		"infra/staging",
		"main",
		"arn:aws:iam::123456789012:role/github-actions-widgets-staging",
		"bucket=tf-state-widgets-d782c874",
		"dynamodb_table=tf-lock-widgets-d782c874",
		"region=us-west-2",
		"key=staging/terraform.tfstate",
	} {
		assert.Contains(t, content, want)
	}
	assert.NotContains(t, content, "{{")

	var doc map[string]any
	assert.NoError(t, yaml.Unmarshal(data, &doc))
}

func TestWriteWorkflow_OverwritesUnconditionally(t *testing.T) {
	root := t.TempDir()

	path, err := WriteWorkflow(root, testParams("staging"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("# user edit"), 0o644))

	_, err = WriteWorkflow(root, testParams("staging"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "# user edit")
}

func TestWriteWorkflow_DistinctFilesPerEnv(t *testing.T) {
	root := t.TempDir()

	stagingPath, err := WriteWorkflow(root, testParams("staging"))
	require.NoError(t, err)
	productionPath, err := WriteWorkflow(root, testParams("production"))
	require.NoError(t, err)

	assert.NotEqual(t, stagingPath, productionPath)
	assert.True(t, strings.HasSuffix(stagingPath, "deploy-staging.yml"))
	assert.True(t, strings.HasSuffix(productionPath, "deploy-production.yml"))
}

func TestWriteBackendStub(t *testing.T) {
	watchDir := filepath.Join(t.TempDir(), "infra", "staging")

	path, written, err := WriteBackendStub(watchDir)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `backend "s3" {}`)
	assert.Contains(t, string(data), "required_version")
}

func TestWriteBackendStub_NeverClobbers(t *testing.T) {
	watchDir := t.TempDir()
	path := BackendStubPath(watchDir)
	require.NoError(t, os.WriteFile(path, []byte("# user owned"), 0o644))

	_, written, err := WriteBackendStub(watchDir)
	require.NoError(t, err)
	assert.False(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# user owned", string(data))
}
