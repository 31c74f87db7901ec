package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SourcesDirName is the conventional directory holding a project's build config
const SourcesDirName = "sources"

// ErrNoSourcesDir is returned when a checkout has no sources directory
var ErrNoSourcesDir = errors.New("no sources directory")

// FindSourcesDir locates the sources directory at the root of a checkout,
// matching the name case-insensitively and returning the path with its
// on-disk casing.
func FindSourcesDir(repoDir string) (string, error) {
	entries, err := os.ReadDir(repoDir)
	if err != nil {
		return "", fmt.Errorf("failed to read checkout '%s': %w", repoDir, err)
	}

	// On a case-insensitive filesystem the conventional name resolves to the
	// real directory; compare by identity so the real casing is kept.
	if want, statErr := os.Stat(filepath.Join(repoDir, SourcesDirName)); statErr == nil && want.IsDir() {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			info, infoErr := os.Stat(filepath.Join(repoDir, entry.Name()))
			if infoErr == nil && os.SameFile(want, info) {
				return filepath.Join(repoDir, entry.Name()), nil
			}
		}
	}

	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), SourcesDirName) {
			return filepath.Join(repoDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w in '%s'", ErrNoSourcesDir, repoDir)
}

// IsConfigFile reports whether name looks like a build config file: a
// basename starting with 'config' and a yaml or yml extension.
func IsConfigFile(name string) bool {
	ext := filepath.Ext(name)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	return strings.HasPrefix(name, "config")
}

// ScanConfigFiles returns the config files in the checkout's sources
// directory as paths relative to repoDir, shortest filename first.
//
// A missing sources directory yields no files and no error.
func ScanConfigFiles(repoDir string) ([]string, error) {
	sourcesDir, err := FindSourcesDir(repoDir)
	if err != nil {
		if errors.Is(err, ErrNoSourcesDir) {
			return nil, nil
		}
		return nil, err
	}

	entries, err := os.ReadDir(sourcesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources directory '%s': %w", sourcesDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsConfigFile(entry.Name()) {
			continue
		}
		rel, err := filepath.Rel(repoDir, filepath.Join(sourcesDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to relativize '%s': %w", entry.Name(), err)
		}
		files = append(files, filepath.ToSlash(rel))
	}
	SortConfigFiles(files)
	return files, nil
}

// SortConfigFiles orders config paths by filename length, ties broken
// lexicographically. The first entry is the primary config.
func SortConfigFiles(files []string) {
	slices.SortFunc(files, func(a, b string) int {
		la, lb := len(filepath.Base(a)), len(filepath.Base(b))
		if la != lb {
			return la - lb
		}
		return strings.Compare(a, b)
	})
}

// PreferConfig moves explicit to the front of files when it names an
// existing file in repoDir. The explicit path is added if the scan missed it.
func PreferConfig(repoDir string, files []string, explicit string) []string {
	explicit = filepath.ToSlash(filepath.Clean(strings.TrimPrefix(explicit, "/")))
	if explicit == "" || explicit == "." {
		return files
	}
	if info, err := os.Stat(filepath.Join(repoDir, filepath.FromSlash(explicit))); err != nil || info.IsDir() {
		return files
	}
	out := make([]string, 0, len(files)+1)
	out = append(out, explicit)
	for _, f := range files {
		if f != explicit {
			out = append(out, f)
		}
	}
	return out
}
