package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

var (
	// ErrNotARepository is returned by Open when the path holds no git checkout
	ErrNotARepository = errors.New("not a git repository")

	// ErrRevisionNotFound is returned when a revision cannot be resolved locally
	ErrRevisionNotFound = errors.New("revision not found")
)

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone
	URL string

	// Directory is where the checkout is created
	Directory string

	// Depth limits fetched history, 0 means full history
	Depth int

	// Auth is the authentication configuration (optional)
	Auth *AuthConfig
}

// AuthConfig contains authentication settings for Git operations
type AuthConfig struct {
	// Username is the username for HTTP Basic authentication
	Username string

	// Password is the password or token for HTTP Basic authentication
	Password string
}

// RepositoryInfo contains information about an on-disk Git repository
type RepositoryInfo struct {
	// Repository is the go-git repository instance
	Repository *git.Repository

	// Path is the checkout directory
	Path string

	// Branch is the current branch name, empty when HEAD is detached
	Branch string

	// RemoteURL is the remote repository URL
	RemoteURL string
}

// Head returns the hash HEAD currently points at
func (r *RepositoryInfo) Head() (string, error) {
	if r == nil || r.Repository == nil {
		return "", fmt.Errorf("repository is nil")
	}
	ref, err := r.Repository.Head()
	if err != nil {
		return "", &Error{Op: "rev-parse", Path: r.Path, Message: "failed to get HEAD reference", Err: err}
	}
	return ref.Hash().String(), nil
}

// Error is a failed git operation. Message holds the diagnostic text reported
// for the operation and Path the checkout (or URL) it targeted.
type Error struct {
	Op      string
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("git %s failed for '%s': %s: %v", e.Op, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("git %s failed for '%s': %s", e.Op, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
