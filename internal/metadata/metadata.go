// Package metadata reads the per-family METADATA.pb records of the Google Fonts
// registry.
//
// The records are protobuf text format. Only the handful of fields needed to
// locate a family's upstream sources are extracted, using a key-prefix plus
// quoted-literal grammar rather than a conformant text-format parser.
package metadata

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	nameKey       = "name: "
	repoURLKey    = "repository_url: "
	commitKey     = "commit: "
	configYAMLKey = "config_yaml: "
)

// ErrNoName is returned when a record lacks the required 'name' field
var ErrNoName = errors.New("missing required field 'name'")

// knownHosts are hosts for which a scheme-less repository URL is upgraded to https
var knownHosts = []string{"github.com", "gitlab.com", "bitbucket.org"}

// Metadata is the subset of a family's METADATA.pb used for source discovery.
// Optional fields are empty when absent.
type Metadata struct {
	// Name is the family name
	Name string
	// RepoURL is the normalized upstream repository URL
	RepoURL string
	// Commit is the upstream commit the family was built from
	Commit string
	// ConfigYAML is the path of the build config, relative to the repo root
	ConfigYAML string
}

// Parser turns the text of a metadata record into a Metadata
type Parser interface {
	Parse(text string) (*Metadata, error)
}

// ParseFunc adapts a function to the Parser interface
type ParseFunc func(text string) (*Metadata, error)

// Parse calls f(text)
func (f ParseFunc) Parse(text string) (*Metadata, error) {
	return f(text)
}

// DefaultParser is the key-prefix parser used by Load
var DefaultParser Parser = ParseFunc(Parse)

// New builds a Metadata, normalizing the optional fields
func New(name, repoURL, commit, configYAML string) *Metadata {
	return &Metadata{
		Name:       name,
		RepoURL:    NormalizeRepoURL(repoURL),
		Commit:     strings.TrimSpace(commit),
		ConfigYAML: strings.TrimSpace(configYAML),
	}
}

// Parse extracts a Metadata from the text of a METADATA.pb file
func Parse(text string) (*Metadata, error) {
	name, ok := field(text, nameKey)
	if !ok {
		return nil, ErrNoName
	}
	repoURL, _ := field(text, repoURLKey)
	commit, _ := field(text, commitKey)
	configYAML, _ := field(text, configYAMLKey)
	return New(name, repoURL, commit, configYAML), nil
}

// Load reads and parses the metadata file at path
func Load(path string) (*Metadata, error) {
	// #nosec G304 -- path comes from globbing the registry checkout
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file %s: %w", path, err)
	}
	md, err := DefaultParser.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata file %s: %w", path, err)
	}
	return md, nil
}

// field finds the first occurrence of key and extracts the literal after it
func field(text, key string) (string, bool) {
	pos := strings.Index(text, key)
	if pos < 0 {
		return "", false
	}
	return ExtractLiteral(text[pos+len(key):])
}

// ExtractLiteral returns the contents of the quoted string literal at the
// start of s, ignoring leading whitespace.
//
// Escape sequences are skipped over when looking for the closing quote but are
// not decoded: the returned text is the raw slice between the quotes. It
// reports false if s does not start with a quote or the literal is unterminated.
func ExtractLiteral(s string) (string, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, `"`) {
		return "", false
	}
	s = s[1:]

	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			return s[:i], true
		}
	}
	return "", false
}

// NormalizeRepoURL cleans up a repository URL as written in a metadata file.
// It returns the empty string when nothing is left.
func NormalizeRepoURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}

	if scheme, rest, ok := strings.Cut(u, "://"); ok {
		return scheme + "://" + strings.TrimPrefix(rest, "www.")
	}

	// we've seen a few of these without a scheme
	host := strings.TrimPrefix(u, "www.")
	for _, known := range knownHosts {
		if strings.HasPrefix(host, known) {
			return "https://" + host
		}
	}
	return u
}

// UnknownRepoURL returns the repo URL if it is set but is not a well formed
// github URL, and the empty string otherwise. Used for diagnostics.
func (m *Metadata) UnknownRepoURL() string {
	if m.RepoURL == "" {
		return ""
	}
	if !strings.HasPrefix(m.RepoURL, "https://github.com") {
		return m.RepoURL
	}
	if u, err := url.Parse(m.RepoURL); err != nil || strings.ContainsAny(u.Path, " \t") {
		return m.RepoURL
	}
	return ""
}
