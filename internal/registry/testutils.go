package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestFamily describes one family directory of a test registry
type TestFamily struct {
	License    string
	Dir        string
	Name       string
	RepoURL    string
	Commit     string
	ConfigYAML string
	// Raw replaces the generated METADATA.pb text when set
	Raw string
}

// TestRegistryOption configures NewTestRegistry
type TestRegistryOption func(*testRegistry)

// TestFamilyOption configures one TestFamily
type TestFamilyOption func(*TestFamily)

type testRegistry struct {
	root     string
	families []TestFamily
	dirs     []string
}

// NewTestRegistry writes a registry tree into a temporary directory and returns its root
func NewTestRegistry(t *testing.T, opts ...TestRegistryOption) string {
	t.Helper()

	reg := &testRegistry{root: t.TempDir()}
	for _, opt := range opts {
		opt(reg)
	}

	for _, dir := range reg.dirs {
		if err := os.MkdirAll(filepath.Join(reg.root, dir), 0750); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	for _, family := range reg.families {
		dir := filepath.Join(reg.root, family.License, family.Dir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			t.Fatalf("Failed to create family dir %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, MetadataFileName), []byte(family.Text()), 0600); err != nil {
			t.Fatalf("Failed to write metadata for %s: %v", family.Dir, err)
		}
	}
	return reg.root
}

// WithLicenseDir creates an empty license directory
func WithLicenseDir(license string) TestRegistryOption {
	return func(r *testRegistry) {
		r.dirs = append(r.dirs, license)
	}
}

// WithFamily adds a family at '<license>/<dir>/METADATA.pb'
func WithFamily(license, dir, name string, opts ...TestFamilyOption) TestRegistryOption {
	return func(r *testRegistry) {
		family := TestFamily{License: license, Dir: dir, Name: name}
		for _, opt := range opts {
			opt(&family)
		}
		r.families = append(r.families, family)
	}
}

// WithRepoURL sets the family's source repository
func WithRepoURL(url string) TestFamilyOption {
	return func(f *TestFamily) {
		f.RepoURL = url
	}
}

// WithCommit pins the family's source revision
func WithCommit(commit string) TestFamilyOption {
	return func(f *TestFamily) {
		f.Commit = commit
	}
}

// WithConfigYAML sets the family's explicit build config
func WithConfigYAML(path string) TestFamilyOption {
	return func(f *TestFamily) {
		f.ConfigYAML = path
	}
}

// WithRawMetadata replaces the generated record text
func WithRawMetadata(raw string) TestFamilyOption {
	return func(f *TestFamily) {
		f.Raw = raw
	}
}

// Text renders the family as METADATA.pb text
func (f TestFamily) Text() string {
	if f.Raw != "" {
		return f.Raw
	}

	var b strings.Builder
	fmt.Fprintf(&b, "name: %q\n", f.Name)
	fmt.Fprintf(&b, "designer: %q\n", "Test Designer")
	fmt.Fprintf(&b, "license: %q\n", strings.ToUpper(f.License))
	if f.RepoURL == "" && f.Commit == "" && f.ConfigYAML == "" {
		return b.String()
	}

	b.WriteString("source {\n")
	if f.RepoURL != "" {
		fmt.Fprintf(&b, "  repository_url: %q\n", f.RepoURL)
	}
	if f.Commit != "" {
		fmt.Fprintf(&b, "  commit: %q\n", f.Commit)
	}
	if f.ConfigYAML != "" {
		fmt.Fprintf(&b, "  config_yaml: %q\n", f.ConfigYAML)
	}
	b.WriteString("}\n")
	return b.String()
}
