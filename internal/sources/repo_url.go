package sources

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrBadRepoURL is returned for repository URLs that do not end in an
// '<org>/<name>' pair of path segments
var ErrBadRepoURL = errors.New("unexpected repository url")

// ParseRepoURL splits a repository URL into the org and repository name, the
// last two path segments. A trailing slash is ignored.
//
// For 'https://github.com/googlefonts/google-fonts-sources' it returns
// ('googlefonts', 'google-fonts-sources').
func ParseRepoURL(repoURL string) (org, name string, err error) {
	trimmed := strings.TrimRight(repoURL, "/")
	rest, name, ok := cutLast(trimmed, "/")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: '%s'", ErrBadRepoURL, repoURL)
	}
	host, org, ok := cutLast(rest, "/")
	// 'https://github.com/name' has a host where the org should be
	if !ok || org == "" || strings.HasSuffix(host, ":/") {
		return "", "", fmt.Errorf("%w: '%s'", ErrBadRepoURL, repoURL)
	}
	return org, name, nil
}

// ValidateRepoURL reports whether repoURL decomposes into an org and name
func ValidateRepoURL(repoURL string) error {
	_, _, err := ParseRepoURL(repoURL)
	return err
}

// CachePath returns the canonical checkout location of repoURL under cacheDir,
// '{cacheDir}/{org}/{name}'.
func CachePath(cacheDir, repoURL string) (string, error) {
	org, name, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, org, name), nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
