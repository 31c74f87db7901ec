package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/backoff/v5"

	"github.com/fontcatalog/font-sources/internal/git"
	"github.com/fontcatalog/font-sources/internal/metadata"
)

const (
	// DefaultURL is the upstream font registry repository
	DefaultURL = "https://github.com/google/fonts"
	// MetadataFileName is the per-family metadata record
	MetadataFileName = "METADATA.pb"
	// DefaultCloneAttempts bounds the clone retries of Open
	DefaultCloneAttempts = 4
)

// DefaultLicenseDirs are the top-level directories holding font families
var DefaultLicenseDirs = []string{"ofl", "apache", "ufl"}

// ErrNotARegistry is returned for a local path without any license directory
var ErrNotARegistry = errors.New("not a font registry checkout")

// Checkout is a registry checkout on disk
type Checkout struct {
	// Path is the checkout root
	Path string
	// Rev is the checked out commit, empty when the path is not a git repository
	Rev string

	temporary bool
}

// Cleanup removes a temporary clone. It is a no-op for local checkouts.
func (c *Checkout) Cleanup() error {
	if c == nil || !c.temporary {
		return nil
	}
	if err := os.RemoveAll(filepath.Dir(c.Path)); err != nil {
		return fmt.Errorf("failed to remove registry clone: %w", err)
	}
	return nil
}

type options struct {
	url             string
	localPath       string
	licenseDirs     []string
	attempts        uint
	initialInterval time.Duration
}

// Option configures Open
type Option func(*options)

// WithURL sets the repository cloned when no local path is given
func WithURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.url = url
		}
	}
}

// WithLocalPath uses an existing checkout instead of cloning
func WithLocalPath(path string) Option {
	return func(o *options) {
		o.localPath = path
	}
}

// WithLicenseDirs overrides DefaultLicenseDirs for validating a local checkout
func WithLicenseDirs(dirs []string) Option {
	return func(o *options) {
		if len(dirs) > 0 {
			o.licenseDirs = dirs
		}
	}
}

// WithCloneAttempts sets how many times a clone is attempted
func WithCloneAttempts(n uint) Option {
	return func(o *options) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithInitialRetryInterval sets the first backoff interval between clone attempts
func WithInitialRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.initialInterval = d
		}
	}
}

// Open returns a registry checkout, cloning the registry when no local path is configured
func Open(ctx context.Context, client git.Client, opts ...Option) (*Checkout, error) {
	o := &options{
		url:         DefaultURL,
		licenseDirs: DefaultLicenseDirs,
		attempts:    DefaultCloneAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.localPath != "" {
		return openLocal(client, o.localPath, o.licenseDirs)
	}
	return cloneTemporary(ctx, client, o)
}

func openLocal(client git.Client, path string, licenseDirs []string) (*Checkout, error) {
	if err := ValidateRoot(path, licenseDirs); err != nil {
		return nil, err
	}

	checkout := &Checkout{Path: path}
	info, err := client.Open(path)
	switch {
	case err == nil:
		if checkout.Rev, err = info.Head(); err != nil {
			return nil, fmt.Errorf("failed to read registry revision: %w", err)
		}
	case errors.Is(err, git.ErrNotARepository):
		slog.Debug("Registry path is not a git repository", "path", path)
	default:
		return nil, fmt.Errorf("failed to open registry checkout: %w", err)
	}

	slog.Info("Using local registry checkout", "path", path, "rev", checkout.Rev)
	return checkout, nil
}

func cloneTemporary(ctx context.Context, client git.Client, o *options) (*Checkout, error) {
	tmp, err := os.MkdirTemp("", "font-sources-registry-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	dir := filepath.Join(tmp, "fonts")

	expBackoff := backoff.NewExponentialBackOff()
	if o.initialInterval > 0 {
		expBackoff.InitialInterval = o.initialInterval
	}

	startTime := time.Now()
	slog.Info("Starting registry clone", "repository", o.url)

	info, err := backoff.Retry(ctx, func() (*git.RepositoryInfo, error) {
		// a failed attempt can leave a partial checkout behind
		if err := os.RemoveAll(dir); err != nil {
			return nil, backoff.Permanent(err)
		}
		return client.Clone(ctx, &git.CloneConfig{URL: o.url, Directory: dir, Depth: 1})
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(o.attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Registry clone failed, retrying",
				"repository", o.url,
				"retry_in", next.String(),
				"error", err)
		}))
	if err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to clone registry %s: %w", o.url, err)
	}

	checkout := &Checkout{Path: dir, temporary: true}
	if checkout.Rev, err = info.Head(); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to read registry revision: %w", err)
	}

	slog.Info("Registry clone completed",
		"repository", o.url,
		"rev", checkout.Rev,
		"duration", time.Since(startTime).String())
	return checkout, nil
}

// ValidateRoot checks that root contains at least one of licenseDirs
func ValidateRoot(root string, licenseDirs []string) error {
	for _, dir := range licenseDirs {
		if fi, err := os.Stat(filepath.Join(root, dir)); err == nil && fi.IsDir() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has none of %s", ErrNotARegistry, root, strings.Join(licenseDirs, ", "))
}

// LoadMetadata parses every '<license>/*/METADATA.pb' below root, ordered by path.
// Unreadable or unparsable records are logged and skipped.
func LoadMetadata(root string, licenseDirs []string) ([]metadata.Metadata, error) {
	if len(licenseDirs) == 0 {
		licenseDirs = DefaultLicenseDirs
	}
	pattern := fmt.Sprintf("{%s}/*/%s", strings.Join(licenseDirs, ","), MetadataFileName)

	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob registry metadata: %w", err)
	}
	slices.Sort(matches)

	records := make([]metadata.Metadata, 0, len(matches))
	skipped := 0
	for _, match := range matches {
		md, err := metadata.Load(filepath.Join(root, filepath.FromSlash(match)))
		if err != nil {
			slog.Warn("Skipping metadata record", "path", match, "error", err)
			skipped++
			continue
		}
		records = append(records, *md)
	}

	slog.Info("Loaded registry metadata", "records", len(records), "skipped", skipped)
	return records, nil
}
