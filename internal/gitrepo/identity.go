// Package gitrepo resolves the owning org/repo pair for a local working tree
// from its origin remote. The identity seeds every derived resource name, so
// resolution happens once at startup and the result is treated as immutable.
package gitrepo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	apperrors "github.com/savaki/tf-bootstrap/internal/errors"
)

// Identity is the org/repo pair parsed from the origin remote URL.
type Identity struct {
	Org  string
	Repo string
}

// FullName returns "org/repo".
func (id Identity) FullName() string {
	return fmt.Sprintf("%s/%s", id.Org, id.Repo)
}

// remotePattern matches the last two path segments of both URL styles:
//
//	https://github.com/acme/widgets.git
//	git@github.com:acme/widgets.git
var remotePattern = regexp.MustCompile(`[:/]([^/:]+)/([^/:]+?)(?:\.git)?/?$`)

// Resolve opens the working tree at dir and derives the identity from its
// origin remote. No network access is performed.
func Resolve(dir string) (Identity, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s", apperrors.ErrNotAGitRepo, dir)
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: no origin remote", apperrors.ErrNotAGitRepo)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return Identity{}, fmt.Errorf("%w: origin remote has no URL", apperrors.ErrNotAGitRepo)
	}

	return ParseRemoteURL(urls[0])
}

// ParseRemoteURL extracts org and repo from an HTTPS or SSH style remote URL.
func ParseRemoteURL(url string) (Identity, error) {
	m := remotePattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil || m[1] == "" || m[2] == "" {
		return Identity{}, fmt.Errorf("%w: %q", apperrors.ErrUnparsableRemote, url)
	}
	return Identity{Org: m[1], Repo: m[2]}, nil
}
