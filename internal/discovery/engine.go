// Package discovery finds the build config files and revision of an upstream
// font repository.
//
// Strategies are tried in order, stopping at the first definitive answer:
//
//  1. An existing checkout in the cache is authoritative and is scanned.
//  2. A HEAD probe of the two conventional config locations on the default
//     branch answers without cloning when the host serves them.
//  3. Otherwise the repository is shallow-cloned into the cache and scanned.
//
// A rate-limited probe is reported as a *RateLimitedError so that the caller
// can back off and retry; every other failure is terminal for the repository
// only.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fontcatalog/font-sources/internal/git"
	"github.com/fontcatalog/font-sources/internal/httpclient"
	"github.com/fontcatalog/font-sources/internal/otel"
	"github.com/fontcatalog/font-sources/internal/sources"
	"github.com/fontcatalog/font-sources/internal/telemetry"
)

// Strategy names the way a result was obtained
type Strategy string

const (
	// StrategyLocal reads an existing checkout
	StrategyLocal Strategy = "local"
	// StrategyProbe asks the hosting service over HTTP
	StrategyProbe Strategy = "probe"
	// StrategyClone clones the repository and scans it
	StrategyClone Strategy = "clone"
)

const (
	// DefaultRetryAfter is the backoff used when a 429 carries no Retry-After
	DefaultRetryAfter = 60 * time.Second
	// DefaultGitTimeout bounds each clone, fetch or ls-remote
	DefaultGitTimeout = 5 * time.Minute
	// cloneDepth keeps clones shallow; history is fetched only for pinned commits
	cloneDepth = 1
)

// probeFiles are the conventional config file names, in probe order
var probeFiles = []string{"config.yaml", "config.yml"}

// Result is what discovery learned about one repository
type Result struct {
	RepoURL     string
	Rev         string
	ConfigFiles []string
	Strategy    Strategy
}

// Discoverer runs discovery for one candidate
type Discoverer interface {
	Discover(ctx context.Context, candidate sources.Candidate) (*Result, error)
}

// DiscoverFunc adapts a function to the Discoverer interface
type DiscoverFunc func(ctx context.Context, candidate sources.Candidate) (*Result, error)

// Discover calls f(ctx, candidate)
func (f DiscoverFunc) Discover(ctx context.Context, candidate sources.Candidate) (*Result, error) {
	return f(ctx, candidate)
}

// Engine implements Discoverer on top of the git and HTTP capabilities
type Engine struct {
	git               git.Client
	http              httpclient.Client
	cacheDir          string
	probeHosts        []string
	defaultRetryAfter time.Duration
	gitTimeout        time.Duration
	auth              *git.AuthConfig
	metrics           *telemetry.DiscoveryMetrics
	tracer            trace.Tracer
}

var _ Discoverer = (*Engine)(nil)

// Option configures an Engine
type Option func(*Engine)

// WithProbeHosts limits the HTTP probe to these hosts; empty probes every host
func WithProbeHosts(hosts []string) Option {
	return func(e *Engine) {
		e.probeHosts = hosts
	}
}

// WithDefaultRetryAfter sets the backoff used when a 429 carries no Retry-After
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultRetryAfter = d
		}
	}
}

// WithGitTimeout bounds each network git operation
func WithGitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.gitTimeout = d
		}
	}
}

// WithAuth sets the credentials used for clones, fetches and ls-remote
func WithAuth(auth *git.AuthConfig) Option {
	return func(e *Engine) {
		e.auth = auth
	}
}

// WithMetrics records discovery outcomes
func WithMetrics(metrics *telemetry.DiscoveryMetrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithTracer wraps each discovery in a span
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New creates an Engine that keeps checkouts under cacheDir
func New(gitClient git.Client, httpClient httpclient.Client, cacheDir string, opts ...Option) *Engine {
	e := &Engine{
		git:               gitClient,
		http:              httpClient,
		cacheDir:          cacheDir,
		defaultRetryAfter: DefaultRetryAfter,
		gitTimeout:        DefaultGitTimeout,
		tracer:            noop.NewTracerProvider().Tracer(telemetry.DiscoveryTracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover finds the config files and revision of the candidate's repository
func (e *Engine) Discover(ctx context.Context, candidate sources.Candidate) (*Result, error) {
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, e.tracer, "discovery.Discover",
		trace.WithAttributes(
			otel.AttrRepoURL.String(candidate.RepoURL),
			otel.AttrFamily.String(candidate.Name),
		))
	defer span.End()

	result, strategy, err := e.discover(ctx, candidate)

	outcome := Outcome(err)
	span.SetAttributes(
		otel.AttrStrategy.String(string(strategy)),
		otel.AttrOutcome.String(outcome),
	)
	if result != nil {
		span.SetAttributes(otel.AttrRev.String(result.Rev), otel.AttrConfigs.Int(len(result.ConfigFiles)))
	}
	otel.RecordError(span, err, outcome)
	e.metrics.RecordDiscovery(ctx, string(strategy), outcome, time.Since(start))
	return result, err
}

// Outcome classifies a discovery error for metrics and reports
func Outcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, ErrNoConfigFound):
		return "no_config"
	case errors.Is(err, git.ErrRevisionNotFound):
		return "missing_rev"
	}
	if _, ok := IsRateLimited(err); ok {
		return "rate_limited"
	}
	return "error"
}

func (e *Engine) discover(ctx context.Context, candidate sources.Candidate) (*Result, Strategy, error) {
	repoDir, err := sources.CachePath(e.cacheDir, candidate.RepoURL)
	if err != nil {
		return nil, "", err
	}

	info, err := e.git.Open(repoDir)
	switch {
	case err == nil:
		slog.Debug("Using existing checkout", "repo_url", candidate.RepoURL, "path", repoDir)
		result, err := e.scanCheckout(ctx, candidate, info, StrategyLocal)
		return result, StrategyLocal, err
	case isBrokenCheckout(err):
		return nil, StrategyLocal, removeStale(candidate, repoDir)
	case !errors.Is(err, git.ErrNotARepository):
		return nil, StrategyLocal, err
	}

	if e.shouldProbe(candidate.RepoURL) {
		result, err := e.probe(ctx, candidate)
		if !errors.Is(err, errProbeMiss) {
			return result, StrategyProbe, err
		}
		slog.Debug("Probe found no config, cloning", "repo_url", candidate.RepoURL)
	}

	result, err := e.cloneAndScan(ctx, candidate, repoDir)
	return result, StrategyClone, err
}

// shouldProbe reports whether repoURL is an http(s) URL on a probed host
func (e *Engine) shouldProbe(repoURL string) bool {
	u, err := url.Parse(repoURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return false
	}
	if len(e.probeHosts) == 0 {
		return true
	}
	return slices.ContainsFunc(e.probeHosts, func(h string) bool {
		return strings.EqualFold(h, u.Hostname())
	})
}

// probe looks for the conventional config files on the default branch
func (e *Engine) probe(ctx context.Context, candidate sources.Candidate) (*Result, error) {
	base := strings.TrimRight(candidate.RepoURL, "/")
	for _, name := range probeFiles {
		probeURL := base + "/tree/HEAD/" + sources.SourcesDirName + "/" + name
		resp, err := e.http.Head(ctx, probeURL)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", probeURL, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			rev, err := e.probeRev(ctx, candidate)
			if err != nil {
				return nil, err
			}
			return &Result{
				RepoURL:     candidate.RepoURL,
				Rev:         rev,
				ConfigFiles: []string{sources.SourcesDirName + "/" + name},
				Strategy:    StrategyProbe,
			}, nil
		case http.StatusNotFound:
			continue
		case http.StatusTooManyRequests:
			retryAfter := resp.RetryAfter
			if !resp.HasRetryAfter {
				retryAfter = e.defaultRetryAfter
			}
			return nil, &RateLimitedError{RetryAfter: retryAfter}
		default:
			return nil, httpclient.NewHTTPError(resp.StatusCode, probeURL, http.StatusText(resp.StatusCode))
		}
	}
	return nil, errProbeMiss
}

// probeRev is the pinned commit, or the remote HEAD when nothing is pinned
func (e *Engine) probeRev(ctx context.Context, candidate sources.Candidate) (string, error) {
	if candidate.Commit != "" {
		return candidate.Commit, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.gitTimeout)
	defer cancel()
	return e.git.RemoteHead(ctx, candidate.RepoURL, e.auth)
}

// cloneAndScan shallow-clones the repository into repoDir and scans it. A
// leftover non-checkout at repoDir is removed and the attempt fails, so that
// nothing is ever cloned into a dirty directory.
func (e *Engine) cloneAndScan(ctx context.Context, candidate sources.Candidate, repoDir string) (*Result, error) {
	if _, err := os.Stat(repoDir); err == nil {
		return nil, removeStale(candidate, repoDir)
	}

	if err := os.MkdirAll(filepath.Dir(repoDir), 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, e.gitTimeout)
	defer cancel()
	info, err := e.git.Clone(cloneCtx, &git.CloneConfig{
		URL:       candidate.RepoURL,
		Directory: repoDir,
		Depth:     cloneDepth,
		Auth:      e.auth,
	})
	if err != nil {
		return nil, err
	}
	return e.scanCheckout(ctx, candidate, info, StrategyClone)
}

// isBrokenCheckout reports whether Open found a repository it could not use,
// such as one left without a HEAD commit by an interrupted clone
func isBrokenCheckout(err error) bool {
	var gitErr *git.Error
	return errors.As(err, &gitErr) && gitErr.Op == "open"
}

// removeStale deletes a path that is not a usable checkout. The attempt
// always fails; the next run starts from a clean path.
func removeStale(candidate sources.Candidate, repoDir string) error {
	slog.Warn("Removing stale checkout path", "repo_url", candidate.RepoURL, "path", repoDir)
	if err := os.RemoveAll(repoDir); err != nil {
		return &git.Error{Op: "stale-checkout", Path: repoDir, Message: "failed to remove stale checkout", Err: err}
	}
	return &git.Error{Op: "stale-checkout", Path: repoDir, Message: "path existed but was not a checkout"}
}

// scanCheckout resolves the revision of a checkout and lists its config files.
// A pinned commit is checked out, fetching it first if the checkout lacks it.
func (e *Engine) scanCheckout(
	ctx context.Context,
	candidate sources.Candidate,
	info *git.RepositoryInfo,
	strategy Strategy,
) (*Result, error) {
	rev := candidate.Commit
	if rev != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, e.gitTimeout)
		defer cancel()
		if err := git.EnsureRevision(fetchCtx, e.git, info, rev, e.auth); err != nil {
			return nil, err
		}
	} else {
		head, err := info.Head()
		if err != nil {
			return nil, err
		}
		rev = head
	}

	files, err := sources.ScanConfigFiles(info.Path)
	if err != nil {
		return nil, err
	}
	files = sources.PreferConfig(info.Path, files, candidate.ConfigPath)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoConfigFound, candidate.RepoURL)
	}

	return &Result{
		RepoURL:     candidate.RepoURL,
		Rev:         rev,
		ConfigFiles: files,
		Strategy:    strategy,
	}, nil
}
