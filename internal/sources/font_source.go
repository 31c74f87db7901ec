package sources

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
)

// conflictRevLen is how much of the revision disambiguates a conflicted checkout
const conflictRevLen = 10

// Candidate is a repository to run discovery against, built from a family's
// metadata. Commit and ConfigPath are empty when the metadata does not pin them.
type Candidate struct {
	// Name is the family name the candidate was read from
	Name string
	// RepoURL is the normalized upstream repository URL
	RepoURL string
	// Commit is the pinned upstream commit
	Commit string
	// ConfigPath is the build config path named by the metadata, relative to the repo root
	ConfigPath string
}

// FontSource is a git repository containing font sources and at least one
// build config file.
//
// Fields are unexported so that every FontSource goes through NewFontSource
// or JSON decoding, both of which reject malformed repository URLs.
type FontSource struct {
	repoURL        string
	rev            string
	configFiles    []string
	auth           bool
	hasRevConflict bool
}

// fontSourceJSON is the serialized form of a FontSource
type fontSourceJSON struct {
	RepoURL        string   `json:"repo_url"`
	Rev            string   `json:"rev"`
	ConfigFiles    []string `json:"config_files"`
	Auth           bool     `json:"auth,omitempty"`
	HasRevConflict bool     `json:"has_rev_conflict,omitempty"`
}

// NewFontSource creates a FontSource after validating the repository URL.
// configFiles are paths relative to the repository root.
func NewFontSource(repoURL, rev string, configFiles []string) (*FontSource, error) {
	if err := ValidateRepoURL(repoURL); err != nil {
		slog.Warn("Rejecting font source", "repo_url", repoURL, "error", err)
		return nil, err
	}
	return &FontSource{
		repoURL:     repoURL,
		rev:         rev,
		configFiles: slices.Clone(configFiles),
	}, nil
}

// WithAuth returns a copy of s that is checked out with the GITHUB_TOKEN credentials
func (s FontSource) WithAuth(auth bool) FontSource {
	s.auth = auth
	return s
}

// RepoURL returns the repository's url
func (s *FontSource) RepoURL() string {
	return s.repoURL
}

// Rev returns the pinned commit of the repository
func (s *FontSource) Rev() string {
	return s.rev
}

// ConfigFiles returns the config file paths relative to the repository root,
// shortest (primary) first
func (s *FontSource) ConfigFiles() []string {
	return slices.Clone(s.configFiles)
}

// Auth reports whether this is a private repository needing credentials
func (s *FontSource) Auth() bool {
	return s.auth
}

// HasRevConflict reports whether other sources pin the same repository at a
// different, more common revision
func (s *FontSource) HasRevConflict() bool {
	return s.hasRevConflict
}

// RepoOrg returns the user or org the repository lives under.
//
// This is 'googlefonts' for 'https://github.com/googlefonts/google-fonts-sources'
func (s *FontSource) RepoOrg() string {
	org, _, _ := ParseRepoURL(s.repoURL)
	return org
}

// RepoName returns the repository name, the last segment of the URL
func (s *FontSource) RepoName() string {
	_, name, _ := ParseRepoURL(s.repoURL)
	return name
}

// RepoPath returns the local checkout location of this source under cacheDir.
//
// This is '{cacheDir}/{org}/{name}', or '{cacheDir}/{org}/{name}_{rev[:10]}'
// when the source has a revision conflict, so that several revisions of one
// repository can be checked out side by side.
func (s *FontSource) RepoPath(cacheDir string) string {
	name := s.RepoName()
	if s.hasRevConflict {
		rev := s.rev
		if len(rev) > conflictRevLen {
			rev = rev[:conflictRevLen]
		}
		name = fmt.Sprintf("%s_%s", name, rev)
	}
	return filepath.Join(cacheDir, s.RepoOrg(), name)
}

// MarshalJSON implements json.Marshaler
func (s FontSource) MarshalJSON() ([]byte, error) {
	files := s.configFiles
	if files == nil {
		files = []string{}
	}
	return json.Marshal(fontSourceJSON{
		RepoURL:        s.repoURL,
		Rev:            s.rev,
		ConfigFiles:    files,
		Auth:           s.auth,
		HasRevConflict: s.hasRevConflict,
	})
}

// UnmarshalJSON implements json.Unmarshaler, rejecting malformed repository URLs
func (s *FontSource) UnmarshalJSON(data []byte) error {
	var raw fontSourceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := ValidateRepoURL(raw.RepoURL); err != nil {
		return err
	}
	*s = FontSource{
		repoURL:        raw.RepoURL,
		rev:            raw.Rev,
		configFiles:    raw.ConfigFiles,
		auth:           raw.Auth,
		hasRevConflict: raw.HasRevConflict,
	}
	return nil
}

// Compare orders sources by repository URL, then revision
func Compare(a, b FontSource) int {
	if a.repoURL != b.repoURL {
		if a.repoURL < b.repoURL {
			return -1
		}
		return 1
	}
	switch {
	case a.rev < b.rev:
		return -1
	case a.rev > b.rev:
		return 1
	}
	return 0
}
