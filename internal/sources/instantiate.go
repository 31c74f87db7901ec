package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fontcatalog/font-sources/internal/fontconfig"
	"github.com/fontcatalog/font-sources/internal/git"
)

// AuthTokenEnv names the environment variable holding the token used for
// sources marked as needing authentication
const AuthTokenEnv = "GITHUB_TOKEN"

// authTokenPassword is the password GitHub expects alongside a token username
const authTokenPassword = "x-oauth-basic"

var (
	// ErrMissingAuth is returned when a source needs credentials and none are set
	ErrMissingAuth = errors.New(AuthTokenEnv + " is not set")
	// ErrNoConfigFile is returned when none of a source's config files exist in its checkout
	ErrNoConfigFile = errors.New("config file not found in checkout")
)

// AuthConfig returns the credentials used to clone s, or nil for public
// repositories. lookupEnv is os.LookupEnv outside of tests.
func (s *FontSource) AuthConfig(lookupEnv func(string) (string, bool)) (*git.AuthConfig, error) {
	if !s.auth {
		return nil, nil
	}
	token, _ := lookupEnv(AuthTokenEnv)
	auth := TokenAuth(token)
	if auth == nil {
		return nil, ErrMissingAuth
	}
	return auth, nil
}

// TokenAuth returns the git credentials for a GitHub token, or nil when the
// token is blank
func TokenAuth(token string) *git.AuthConfig {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return &git.AuthConfig{Username: token, Password: authTokenPassword}
}

// Instantiate makes sure a checkout of s exists at RepoPath(cacheDir) with its
// revision checked out, cloning and fetching as needed. It returns the
// checkout path.
//
// A leftover empty directory at the checkout path is removed before cloning;
// a non-empty one is left alone and the open fails.
func (s *FontSource) Instantiate(ctx context.Context, client git.Client, cacheDir string) (string, error) {
	repoDir := s.RepoPath(cacheDir)

	auth, err := s.AuthConfig(os.LookupEnv)
	if err != nil {
		return "", err
	}

	info, err := client.Open(repoDir)
	if errors.Is(err, git.ErrNotARepository) {
		if _, statErr := os.Stat(repoDir); statErr == nil {
			slog.Debug("Checkout path exists but is not a repository, removing", "path", repoDir)
			// os.Remove refuses non-empty directories
			if rmErr := os.Remove(repoDir); rmErr != nil {
				slog.Warn("Could not remove stale checkout path", "path", repoDir, "error", rmErr)
			}
		}
		if mkErr := os.MkdirAll(filepath.Dir(repoDir), 0750); mkErr != nil {
			return "", fmt.Errorf("failed to create cache directory: %w", mkErr)
		}
		slog.Info("Cloning font source", "repo_url", s.repoURL, "path", repoDir)
		info, err = client.Clone(ctx, &git.CloneConfig{
			URL:       s.repoURL,
			Directory: repoDir,
			Auth:      auth,
		})
	}
	if err != nil {
		return "", err
	}

	if err := git.EnsureRevision(ctx, client, info, s.rev, auth); err != nil {
		return "", fmt.Errorf("failed to check out %s at %s: %w", s.repoURL, s.rev, err)
	}
	return repoDir, nil
}

// ConfigPath instantiates s and returns the absolute path of its primary
// config file
func (s *FontSource) ConfigPath(ctx context.Context, client git.Client, cacheDir string) (string, error) {
	repoDir, err := s.Instantiate(ctx, client, cacheDir)
	if err != nil {
		return "", err
	}
	for _, rel := range s.configFiles {
		path := resolveConfigFile(repoDir, rel)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoConfigFile, s.repoURL)
}

// resolveConfigFile returns the path of a catalog config entry. Older catalogs
// store a bare filename, which lives in the sources directory.
func resolveConfigFile(repoDir, rel string) string {
	rel = filepath.FromSlash(rel)
	if filepath.Dir(rel) == "." {
		if sourcesDir, err := FindSourcesDir(repoDir); err == nil {
			return filepath.Join(sourcesDir, rel)
		}
	}
	return filepath.Join(repoDir, rel)
}

// GetSources instantiates s and returns the font source files listed by its
// primary config that exist in the checkout, sorted and de-duplicated.
// Source paths are resolved relative to the config file's directory.
func (s *FontSource) GetSources(ctx context.Context, client git.Client, cacheDir string) ([]string, error) {
	configPath, err := s.ConfigPath(ctx, client, cacheDir)
	if err != nil {
		return nil, err
	}
	cfg, err := fontconfig.Load(configPath)
	if err != nil {
		return nil, err
	}

	configDir := filepath.Dir(configPath)
	var found []string
	for _, src := range cfg.Sources {
		path := filepath.Join(configDir, filepath.FromSlash(src))
		if _, err := os.Stat(path); err != nil {
			slog.Debug("Listed source missing from checkout", "repo_url", s.repoURL, "source", src)
			continue
		}
		found = append(found, path)
	}
	slices.Sort(found)
	return slices.Compact(found), nil
}
