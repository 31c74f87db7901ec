package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, []byte("sources: [a.glyphs]\n"), 0600))
	}
}

func TestIsConfigFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{name: "config.yaml", want: true},
		{name: "config.yml", want: true},
		{name: "config-italic.yaml", want: true},
		{name: "configuration.yml", want: true},
		{name: "config.json", want: false},
		{name: "myconfig.yaml", want: false},
		{name: "Config.yaml", want: false},
		{name: "config", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsConfigFile(tt.name))
		})
	}
}

func TestScanConfigFiles(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	writeFiles(t, repo,
		"sources/config-italic.yaml",
		"sources/config.yml",
		"sources/config.yaml",
		"sources/notes.txt",
		"sources/nested/config.yaml",
		"config.yaml",
	)

	files, err := ScanConfigFiles(repo)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sources/config.yml",
		"sources/config.yaml",
		"sources/config-italic.yaml",
	}, files)
}

func TestScanConfigFiles_PreservesOnDiskCase(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	writeFiles(t, repo, "Sources/config.yaml")

	files, err := ScanConfigFiles(repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sources/config.yaml"}, files)

	dir, err := FindSourcesDir(repo)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repo, "Sources"), dir)
}

func TestScanConfigFiles_NoSourcesDir(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	writeFiles(t, repo, "config.yaml")

	files, err := ScanConfigFiles(repo)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = FindSourcesDir(repo)
	require.ErrorIs(t, err, ErrNoSourcesDir)
}

func TestScanConfigFiles_MissingCheckout(t *testing.T) {
	t.Parallel()

	_, err := ScanConfigFiles(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read checkout")
}

func TestPreferConfig(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	writeFiles(t, repo, "sources/config.yaml", "sources/config-full.yaml", "build/custom.yaml")
	scanned := []string{"sources/config.yaml", "sources/config-full.yaml"}

	tests := []struct {
		name     string
		explicit string
		want     []string
	}{
		{name: "empty keeps order", explicit: "", want: scanned},
		{name: "scanned file moved first", explicit: "sources/config-full.yaml", want: []string{"sources/config-full.yaml", "sources/config.yaml"}},
		{name: "file outside sources prepended", explicit: "build/custom.yaml", want: []string{"build/custom.yaml", "sources/config.yaml", "sources/config-full.yaml"}},
		{name: "missing file ignored", explicit: "sources/missing.yaml", want: scanned},
		{name: "directory ignored", explicit: "sources", want: scanned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PreferConfig(repo, scanned, tt.explicit))
		})
	}
}
