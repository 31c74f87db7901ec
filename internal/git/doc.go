// Package git provides the on-disk Git operations used to discover and
// materialize font source repositories.
//
// This package is a thin wrapper around the go-git library. The Client
// interface covers everything the discovery engine and the checkout command
// need from git:
//   - Clone: shallow (or full) clone into a cache directory
//   - Open: open an existing checkout
//   - RemoteHead: resolve the remote default branch without cloning (ls-remote)
//   - Fetch: fetch a pinned commit or all branches into an existing checkout
//   - Checkout: detach HEAD at a revision
//
// Failures are reported as *Error values carrying the operation, the target
// path and the diagnostic text, so callers can key diagnostics by repository
// without the run being aborted.
//
// # Example Usage
//
//	client := git.NewDefaultGitClient()
//	repoInfo, err := client.Clone(ctx, &git.CloneConfig{
//	    URL:       "https://github.com/PaoloBiagini/Joan",
//	    Directory: "/var/cache/fonts/PaoloBiagini/Joan",
//	    Depth:     1,
//	})
//	if err != nil {
//	    return err
//	}
//	rev, err := repoInfo.Head()
//
// EnsureRevision combines Checkout and Fetch for pinned commits that a
// shallow clone does not contain.
package git
