// Package generate renders the per-environment pipeline workflow and the
// Terraform backend stub. The workflow is derived output and is overwritten
// on every run; the backend stub accumulates user edits and is written only
// when absent.
package generate

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/workflow.yml.tmpl
var workflowTemplate string

// WorkflowParams are the substitutions for one environment's workflow.
type WorkflowParams struct {
	Env       string
	WatchDir  string
	Branch    string
	RoleARN   string
	Bucket    string
	LockTable string
	Region    string
	StateKey  string
}

// WorkflowPath returns the workflow location for an environment, keyed by
// environment name.
func WorkflowPath(root, env string) string {
	return filepath.Join(root, ".github", "workflows", fmt.Sprintf("deploy-%s.yml", env))
}

// WriteWorkflow renders and writes the workflow for params, overwriting any
// previous version. The rendered document is parsed as YAML before writing
// so a bad substitution fails here instead of in CI.
func WriteWorkflow(root string, params WorkflowParams) (string, error) {
	tmpl, err := template.New("workflow").Option("missingkey=error").Parse(workflowTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse workflow template: %w", err)
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, params); err != nil {
		return "", fmt.Errorf("failed to render workflow for %s: %w", params.Env, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(rendered.Bytes(), &doc); err != nil {
		return "", fmt.Errorf("rendered workflow for %s is not valid YAML: %w", params.Env, err)
	}

	path := WorkflowPath(root, params.Env)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create workflows dir: %w", err)
	}
	if err := os.WriteFile(path, rendered.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write workflow %s: %w", path, err)
	}
	return path, nil
}

// backendStub declares required versions and an intentionally empty s3
// backend block. The block must be syntactically present for terraform to
// use remote state at all - every actual parameter arrives as an init-time
// override - and omitting it silently downgrades the run to local-only
// state.
const backendStub = `terraform {
  required_version = ">= 1.5.0"

  required_providers {
    aws = {
      source  = "hashicorp/aws"
      version = ">= 5.0"
    }
  }

  # Backend parameters (bucket, key, region, dynamodb_table) are supplied
  # by the pipeline at init time. This block must stay, even empty.
  backend "s3" {}
}
`

// BackendStubPath returns the stub location inside a watch directory.
func BackendStubPath(watchDir string) string {
	return filepath.Join(watchDir, "main.tf")
}

// WriteBackendStub writes the backend stub into watchDir unless a file
// already exists there. Returns the path and whether a file was written.
func WriteBackendStub(watchDir string) (string, bool, error) {
	path := BackendStubPath(watchDir)

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("failed to check %s: %w", path, err)
	}

	if err := os.MkdirAll(watchDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create watch dir %s: %w", watchDir, err)
	}
	if err := os.WriteFile(path, []byte(backendStub), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write backend stub %s: %w", path, err)
	}
	return path, true, nil
}
