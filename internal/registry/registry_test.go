package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fontcatalog/font-sources/internal/git"
	"github.com/fontcatalog/font-sources/internal/git/mocks"
)

func TestLoadMetadata(t *testing.T) {
	t.Parallel()

	root := NewTestRegistry(t,
		WithFamily("ofl", "beta", "Beta Serif",
			WithRepoURL("https://github.com/fontorg/beta"),
			WithCommit("abc123")),
		WithFamily("apache", "alpha", "Alpha Sans",
			WithRepoURL("github.com/fontorg/alpha/"),
			WithConfigYAML("sources/alpha.yaml")),
		WithFamily("ufl", "gamma", "Gamma Mono"),
		WithFamily("ofl", "broken", "", WithRawMetadata("designer: \"nobody\"\n")),
		WithFamily("other", "ignored", "Ignored",
			WithRepoURL("https://github.com/fontorg/ignored")),
	)

	records, err := LoadMetadata(root, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// ordered by path: apache, ofl, ufl
	assert.Equal(t, "Alpha Sans", records[0].Name)
	assert.Equal(t, "https://github.com/fontorg/alpha", records[0].RepoURL)
	assert.Equal(t, "sources/alpha.yaml", records[0].ConfigYAML)
	assert.Equal(t, "Beta Serif", records[1].Name)
	assert.Equal(t, "abc123", records[1].Commit)
	assert.Equal(t, "Gamma Mono", records[2].Name)
	assert.Empty(t, records[2].RepoURL)
}

func TestLoadMetadata_LicenseDirs(t *testing.T) {
	t.Parallel()

	root := NewTestRegistry(t,
		WithFamily("ofl", "alpha", "Alpha"),
		WithFamily("apache", "beta", "Beta"),
	)

	records, err := LoadMetadata(root, []string{"ofl"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alpha", records[0].Name)
}

func TestValidateRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []TestRegistryOption
		wantErr bool
	}{
		{name: "ofl only", opts: []TestRegistryOption{WithLicenseDir("ofl")}},
		{name: "apache only", opts: []TestRegistryOption{WithLicenseDir("apache")}},
		{name: "no license dir", opts: []TestRegistryOption{WithLicenseDir("docs")}, wantErr: true},
		{name: "empty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRoot(NewTestRegistry(t, tt.opts...), DefaultLicenseDirs)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotARegistry)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOpen_LocalPath(t *testing.T) {
	t.Parallel()

	t.Run("git checkout", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "fonts")
		hashes := git.CreateTestRepoAt(t, dir, git.TestRepoConfig{Files: map[string]string{
			"ofl/alpha/METADATA.pb": "name: \"Alpha\"\n",
		}})

		checkout, err := Open(context.Background(), git.NewDefaultGitClient(), WithLocalPath(dir))
		require.NoError(t, err)
		assert.Equal(t, dir, checkout.Path)
		assert.Equal(t, hashes[0], checkout.Rev)

		require.NoError(t, checkout.Cleanup())
		assert.DirExists(t, dir, "a local checkout is never removed")
	})

	t.Run("plain directory", func(t *testing.T) {
		t.Parallel()

		root := NewTestRegistry(t, WithLicenseDir("ofl"))
		checkout, err := Open(context.Background(), git.NewDefaultGitClient(), WithLocalPath(root))
		require.NoError(t, err)
		assert.Empty(t, checkout.Rev)
	})

	t.Run("not a registry", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)

		_, err := Open(context.Background(), client, WithLocalPath(t.TempDir()))
		assert.ErrorIs(t, err, ErrNotARegistry)
	})
}

func TestOpen_CloneRetries(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	const url = "https://example.com/fonts/registry"
	var hash string
	gomock.InOrder(
		client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, cfg *git.CloneConfig) (*git.RepositoryInfo, error) {
				// leave a partial checkout behind
				require.NoError(t, os.MkdirAll(filepath.Join(cfg.Directory, "ofl"), 0750))
				return nil, &git.Error{Op: "clone", Path: cfg.Directory, Message: "failed to clone " + url}
			}),
		client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, cfg *git.CloneConfig) (*git.RepositoryInfo, error) {
				assert.Equal(t, url, cfg.URL)
				assert.Equal(t, 1, cfg.Depth)
				assert.NoDirExists(t, cfg.Directory, "partial checkout is removed before retrying")
				hash = git.CreateTestRepoAt(t, cfg.Directory, git.TestRepoConfig{Files: map[string]string{
					"ofl/alpha/METADATA.pb": "name: \"Alpha\"\n",
				}})[0]
				return git.NewDefaultGitClient().Open(cfg.Directory)
			}),
	)

	checkout, err := Open(context.Background(), client,
		WithURL(url),
		WithInitialRetryInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, hash, checkout.Rev)
	assert.DirExists(t, checkout.Path)

	require.NoError(t, checkout.Cleanup())
	assert.NoDirExists(t, filepath.Dir(checkout.Path))
}

func TestOpen_CloneGivesUp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	cloneErr := errors.New("connection refused")
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(nil, cloneErr).Times(2)

	_, err := Open(context.Background(), client,
		WithCloneAttempts(2),
		WithInitialRetryInterval(time.Millisecond))
	assert.ErrorIs(t, err, cloneErr)
}
