package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const remoteName = "origin"

var fullHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Client defines the interface for Git operations
type Client interface {
	// Clone clones a repository into config.Directory
	Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error)

	// Open opens an existing checkout, returning ErrNotARepository if there is none
	Open(path string) (*RepositoryInfo, error)

	// RemoteHead returns the hash of the remote's default branch, like 'git ls-remote <url> HEAD'
	RemoteHead(ctx context.Context, url string, auth *AuthConfig) (string, error)

	// Fetch fetches rev and all branches into the checkout, deepening a shallow clone
	Fetch(ctx context.Context, repoInfo *RepositoryInfo, rev string, auth *AuthConfig) error

	// Checkout detaches HEAD at rev, returning ErrRevisionNotFound if it is not present locally
	Checkout(repoInfo *RepositoryInfo, rev string) error
}

// defaultGitClient implements Client using go-git
type defaultGitClient struct{}

// NewDefaultGitClient creates a new defaultGitClient
func NewDefaultGitClient() Client {
	return &defaultGitClient{}
}

func basicAuth(auth *AuthConfig) *githttp.BasicAuth {
	if auth == nil || auth.Username == "" {
		return nil
	}
	return &githttp.BasicAuth{
		Username: auth.Username,
		Password: auth.Password,
	}
}

// Clone clones a repository with the given configuration
func (c *defaultGitClient) Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error) {
	if config == nil || config.URL == "" || config.Directory == "" {
		return nil, fmt.Errorf("clone configuration requires a URL and a directory")
	}

	cloneOptions := &git.CloneOptions{
		URL:          config.URL,
		Depth:        config.Depth,
		SingleBranch: config.Depth > 0,
		Tags:         git.NoTags,
	}
	if auth := basicAuth(config.Auth); auth != nil {
		cloneOptions.Auth = auth
		slog.Debug("Using Git HTTP Basic authentication", "repository", config.URL)
	}

	repo, err := git.PlainCloneContext(ctx, config.Directory, false, cloneOptions)
	if err != nil {
		return nil, &Error{Op: "clone", Path: config.Directory, Message: "failed to clone " + config.URL, Err: err}
	}

	repoInfo := &RepositoryInfo{
		Repository: repo,
		Path:       config.Directory,
		RemoteURL:  config.URL,
	}
	if err := c.updateRepositoryInfo(repoInfo); err != nil {
		return nil, fmt.Errorf("failed to update repository info: %w", err)
	}
	return repoInfo, nil
}

// Open opens the checkout at path
func (c *defaultGitClient) Open(path string) (*RepositoryInfo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotARepository)
		}
		return nil, &Error{Op: "open", Path: path, Message: "failed to open repository", Err: err}
	}

	repoInfo := &RepositoryInfo{
		Repository: repo,
		Path:       path,
	}
	if remote, err := repo.Remote(remoteName); err == nil && len(remote.Config().URLs) > 0 {
		repoInfo.RemoteURL = remote.Config().URLs[0]
	}
	if err := c.updateRepositoryInfo(repoInfo); err != nil {
		// typically a clone that was interrupted before its first checkout
		return nil, &Error{Op: "open", Path: path, Message: "checkout has no HEAD commit", Err: err}
	}
	return repoInfo, nil
}

// RemoteHead lists the remote's references and resolves HEAD
func (*defaultGitClient) RemoteHead(ctx context.Context, url string, auth *AuthConfig) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: remoteName,
		URLs: []string{url},
	})

	listOptions := &git.ListOptions{}
	if a := basicAuth(auth); a != nil {
		listOptions.Auth = a
	}
	refs, err := remote.ListContext(ctx, listOptions)
	if err != nil {
		return "", &Error{Op: "ls-remote", Path: url, Message: "failed to list remote references", Err: err}
	}

	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, ref := range refs {
		byName[ref.Name()] = ref
	}

	head, ok := byName[plumbing.HEAD]
	if !ok {
		return "", &Error{Op: "ls-remote", Path: url, Message: "remote did not advertise HEAD"}
	}
	if head.Type() == plumbing.SymbolicReference {
		target, ok := byName[head.Target()]
		if !ok {
			return "", &Error{Op: "ls-remote", Path: url, Message: "remote HEAD points at missing " + head.Target().String()}
		}
		return target.Hash().String(), nil
	}
	return head.Hash().String(), nil
}

// Fetch fetches from origin. A full commit hash is requested directly first,
// since servers will not advertise commits that are no longer on a branch.
// A shallow checkout is deepened to full history, like 'git fetch --unshallow'.
func (*defaultGitClient) Fetch(ctx context.Context, repoInfo *RepositoryInfo, rev string, auth *AuthConfig) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	depth := 0
	if isShallow(repoInfo.Repository) {
		slog.Debug("Deepening shallow checkout", "path", repoInfo.Path)
		depth = math.MaxInt32
	}

	fetch := func(specs ...gitconfig.RefSpec) error {
		opts := &git.FetchOptions{
			RemoteName: remoteName,
			RefSpecs:   specs,
			Depth:      depth,
			Tags:       git.AllTags,
			Force:      true,
		}
		if a := basicAuth(auth); a != nil {
			opts.Auth = a
		}
		err := repoInfo.Repository.FetchContext(ctx, opts)
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return err
		}
		return nil
	}

	if fullHashPattern.MatchString(rev) {
		spec := gitconfig.RefSpec(fmt.Sprintf("%s:refs/pinned/%s", rev, rev))
		err := fetch(spec)
		if err == nil {
			return nil
		}
		slog.Debug("Fetching commit directly failed, fetching all branches",
			"path", repoInfo.Path,
			"rev", rev,
			"error", err)
	}

	if err := fetch(gitconfig.RefSpec("+refs/heads/*:refs/remotes/origin/*")); err != nil {
		return &Error{Op: "fetch", Path: repoInfo.Path, Message: "failed to fetch from " + remoteName, Err: err}
	}
	return nil
}

// isShallow reports whether the repository has a shallow history boundary
func isShallow(repo *git.Repository) bool {
	shallows, err := repo.Storer.Shallow()
	return err == nil && len(shallows) > 0
}

// Checkout resolves rev and detaches HEAD at it
func (c *defaultGitClient) Checkout(repoInfo *RepositoryInfo, rev string) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	hash, err := repoInfo.Repository.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return fmt.Errorf("%s in %s: %w", rev, repoInfo.Path, ErrRevisionNotFound)
	}
	if _, err := repoInfo.Repository.CommitObject(*hash); err != nil {
		// shallow clones know about parent hashes they do not have
		return fmt.Errorf("%s in %s: %w", rev, repoInfo.Path, ErrRevisionNotFound)
	}

	workTree, err := repoInfo.Repository.Worktree()
	if err != nil {
		return &Error{Op: "checkout", Path: repoInfo.Path, Message: "failed to get worktree", Err: err}
	}
	if err := workTree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return &Error{Op: "checkout", Path: repoInfo.Path, Message: "failed to checkout " + rev, Err: err}
	}
	return c.updateRepositoryInfo(repoInfo)
}

// updateRepositoryInfo updates the repository info with current state
func (*defaultGitClient) updateRepositoryInfo(repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	repoInfo.Branch = ""
	if ref.Name().IsBranch() {
		repoInfo.Branch = ref.Name().Short()
	}
	return nil
}

// EnsureRevision checks out rev, fetching from the remote first if it is not
// available locally. It returns an error wrapping ErrRevisionNotFound if rev
// is still missing after the fetch.
func EnsureRevision(ctx context.Context, client Client, repoInfo *RepositoryInfo, rev string, auth *AuthConfig) error {
	if rev == "" {
		return nil
	}

	err := client.Checkout(repoInfo, rev)
	if err == nil || !errors.Is(err, ErrRevisionNotFound) {
		return err
	}

	slog.Debug("Revision not in checkout, fetching", "path", repoInfo.Path, "rev", rev)
	if fetchErr := client.Fetch(ctx, repoInfo, rev, auth); fetchErr != nil {
		slog.Warn("Fetch failed", "path", repoInfo.Path, "error", fetchErr)
	}
	return client.Checkout(repoInfo, rev)
}
