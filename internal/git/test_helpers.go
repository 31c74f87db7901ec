package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestRepoConfig contains configuration for one commit of a test repository
type TestRepoConfig struct {
	Files  map[string]string // Map of filename to content
	Author *object.Signature // Author for commits (uses default if nil)
}

// CreateTestRepoAt initializes a repository at dir with one commit per entry
// of commits and returns the commit hashes in order.
func CreateTestRepoAt(t *testing.T, dir string, commits ...TestRepoConfig) []string {
	t.Helper()

	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("Failed to create repository dir %s: %v", dir, err)
	}

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}

	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}

	hashes := make([]string, 0, len(commits))
	for i, commitConfig := range commits {
		author := commitConfig.Author
		if author == nil {
			author = &object.Signature{
				Name:  "Test Author",
				Email: "test@example.com",
			}
		}

		for filename, content := range commitConfig.Files {
			filePath := filepath.Join(dir, filename)
			if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
				t.Fatalf("Failed to create directory for %s: %v", filename, err)
			}
			if err := os.WriteFile(filePath, []byte(content), 0600); err != nil {
				t.Fatalf("Failed to write file %s: %v", filename, err)
			}
			if _, err := workTree.Add(filename); err != nil {
				t.Fatalf("Failed to add file %s: %v", filename, err)
			}
		}

		hash, err := workTree.Commit("Commit "+string(rune('A'+i)), &git.CommitOptions{
			Author: author,
		})
		if err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
		hashes = append(hashes, hash.String())
	}

	return hashes
}

// CreateTestRepo creates a repository in a fresh temporary directory laid out
// as <tmp>/<org>/<name>, so the returned path decomposes like a repository URL.
func CreateTestRepo(t *testing.T, org, name string, commits ...TestRepoConfig) (string, []string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), org, name)
	return dir, CreateTestRepoAt(t, dir, commits...)
}
