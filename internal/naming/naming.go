// Package naming derives deterministic AWS resource names from a repository
// identity. Names embed a short digest of "{org}/{repo}" so that two
// repositories with the same name in different orgs never collide, and so
// that a re-run of init rediscovers the same resources.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const hashLen = 8

// Names holds the resource names derived for one repository.
type Names struct {
	Org    string
	Repo   string
	Bucket string
	Table  string
}

// ResourceHash returns the first 8 hex characters of sha256("{org}/{repo}").
func ResourceHash(org, repo string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s", org, repo)))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// New derives the bucket and lock table names for org/repo.
func New(org, repo string) Names {
	hash := ResourceHash(org, repo)
	return Names{
		Org:    org,
		Repo:   repo,
		Bucket: fmt.Sprintf("tf-state-%s-%s", repo, hash),
		Table:  fmt.Sprintf("tf-lock-%s-%s", repo, hash),
	}
}

// RoleName returns the GitHub Actions role name. With a shared role the env
// suffix is omitted so every environment assumes the same role.
func (n Names) RoleName(env string, shared bool) string {
	if shared || env == "" {
		return fmt.Sprintf("github-actions-%s", n.Repo)
	}
	return fmt.Sprintf("github-actions-%s-%s", n.Repo, env)
}

// StateKey returns the per-environment object key within the state bucket.
func StateKey(env string) string {
	return fmt.Sprintf("%s/terraform.tfstate", env)
}

// LockID returns the DynamoDB item key Terraform's S3 backend uses for the
// state digest record of the given environment.
func (n Names) LockID(env string) string {
	return fmt.Sprintf("%s/%s-md5", n.Bucket, StateKey(env))
}
