package terraform

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed bootstrap/*.tf
var bootstrapFS embed.FS

// Resource addresses within the bootstrap module, used for import and
// targeted apply.
const (
	AddrBucket       = "aws_s3_bucket.state"
	AddrLockTable    = "aws_dynamodb_table.lock"
	AddrOIDCProvider = "aws_iam_openid_connect_provider.github"
	AddrRole         = "aws_iam_role.github"
)

// BucketTargets covers the bucket and its converged sub-configuration.
var BucketTargets = []string{
	AddrBucket,
	"aws_s3_bucket_versioning.state",
	"aws_s3_bucket_server_side_encryption_configuration.state",
	"aws_s3_bucket_lifecycle_configuration.state",
	"aws_s3_bucket_public_access_block.state",
}

// TableTargets covers the lock table.
var TableTargets = []string{AddrLockTable}

// RoleTargets covers the OIDC provider, the roles, and their inline policy.
var RoleTargets = []string{
	AddrOIDCProvider,
	AddrRole,
	"aws_iam_role_policy.github",
}

// WriteBootstrapModule materializes the embedded bootstrap configuration
// into dir. Files are tool-owned and overwritten unconditionally.
func WriteBootstrapModule(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create bootstrap dir %s: %w", dir, err)
	}

	entries, err := fs.ReadDir(bootstrapFS, "bootstrap")
	if err != nil {
		return fmt.Errorf("failed to read embedded bootstrap module: %w", err)
	}

	for _, entry := range entries {
		data, err := bootstrapFS.ReadFile("bootstrap/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read embedded %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dir, entry.Name()), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", entry.Name(), err)
		}
	}
	return nil
}
