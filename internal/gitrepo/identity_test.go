package gitrepo

import (
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	apperrors "github.com/savaki/tf-bootstrap/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Identity
		wantErr error
	}{
		{
			name: "ssh style",
			url:  "git@github.com:acme/widgets.git",
			want: Identity{Org: "acme", Repo: "widgets"},
		},
		{
			name: "https style",
			url:  "https://github.com/acme/widgets.git",
			want: Identity{Org: "acme", Repo: "widgets"},
		},
		{
			name: "https without .git suffix",
			url:  "https://github.com/acme/widgets",
			want: Identity{Org: "acme", Repo: "widgets"},
		},
		{
			name: "https with trailing slash",
			url:  "https://github.com/acme/widgets/",
			want: Identity{Org: "acme", Repo: "widgets"},
		},
		{
			name: "self-hosted with nested group takes last two segments",
			url:  "https://git.example.com/group/acme/widgets.git",
			want: Identity{Org: "acme", Repo: "widgets"},
		},
		{
			name:    "garbage",
			url:     "not-a-remote",
			wantErr: apperrors.ErrUnparsableRemote,
		},
		{
			name:    "empty",
			url:     "",
			wantErr: apperrors.ErrUnparsableRemote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemoteURL(tt.url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Org+"/"+tt.want.Repo, got.FullName())
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{"git@github.com:acme/widgets.git"},
	})
	require.NoError(t, err)

	id, err := Resolve(dir)
	assert.NoError(t, err)
	assert.Equal(t, Identity{Org: "acme", Repo: "widgets"}, id)
}

func TestResolve_NotARepo(t *testing.T) {
	_, err := Resolve(t.TempDir())
	assert.ErrorIs(t, err, apperrors.ErrNotAGitRepo)
}

func TestResolve_NoRemote(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = Resolve(dir)
	assert.ErrorIs(t, err, apperrors.ErrNotAGitRepo)
}
