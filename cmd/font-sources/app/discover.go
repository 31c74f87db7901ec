package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fontcatalog/font-sources/internal/candidates"
	"github.com/fontcatalog/font-sources/internal/catalog"
	"github.com/fontcatalog/font-sources/internal/config"
	"github.com/fontcatalog/font-sources/internal/coordinator"
	"github.com/fontcatalog/font-sources/internal/discovery"
	"github.com/fontcatalog/font-sources/internal/filtering"
	"github.com/fontcatalog/font-sources/internal/git"
	"github.com/fontcatalog/font-sources/internal/httpclient"
	"github.com/fontcatalog/font-sources/internal/registry"
	"github.com/fontcatalog/font-sources/internal/sources"
	"github.com/fontcatalog/font-sources/internal/status"
	"github.com/fontcatalog/font-sources/internal/telemetry"
	"github.com/fontcatalog/font-sources/internal/versions"
)

// LockFileName is the lock taken on the cache directory by discover and checkout
const LockFileName = ".font-sources.lock"

// shutdownTimeout bounds flushing telemetry at the end of a run
const shutdownTimeout = 10 * time.Second

func newDiscoverCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [CACHE_DIR]",
		Short: "Find the build configs of every registry family and write the catalog",
		Long: `Discover reads every METADATA.pb of the font registry, and for each distinct
upstream repository finds the config*.yaml / config*.yml files in its 'sources'
directory, trying an existing checkout in the cache directory, a cheap HTTP
probe and finally a shallow clone. The resulting catalog is written to --out
or stdout.

The cache directory should be dedicated to this tool; anything in it may be
modified or deleted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.load()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.CacheDir = args[0]
			}
			if list, _ := cmd.Flags().GetBool("list"); list {
				cfg.Output.Format = string(catalog.FormatList)
			}
			tokenFile, _ := cmd.Flags().GetString("token-file")

			token, err := readToken(tokenFile, os.LookupEnv)
			if err != nil {
				return err
			}

			r := &discoverRun{
				cfg:    cfg,
				git:    git.NewDefaultGitClient(),
				token:  token,
				out:    cmd.OutOrStdout(),
				errOut: cmd.ErrOrStderr(),
				styled: isTerminal(cmd.ErrOrStderr()),
			}
			return r.run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringP("out", "o", "", "Path to write the catalog; stdout if omitted")
	flags.BoolP("list", "l", false, "Just print a list of repository URLs")
	flags.String("format", "", "Catalog format: json, yaml or list")
	flags.String("registry-path", "", "Path to a local checkout of the font registry")
	flags.String("registry-url", "", "Registry repository cloned when --registry-path is not set")
	flags.Int("workers", 0, "Number of concurrent repository discoveries")
	flags.StringSlice("probe-hosts", nil, "Hosts the HTTP probe is used for")
	flags.StringSlice("include", nil, "Catalog files whose sources are merged into the result")
	flags.StringSlice("family", nil, "Only consider families matching these glob patterns")
	flags.StringSlice("exclude-family", nil, "Skip families matching these glob patterns")
	flags.String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	flags.String("token-file", "", "File holding the GitHub token; defaults to $"+sources.AuthTokenEnv)

	s.bind(flags, keyOutPath, "out")
	s.bind(flags, keyFormat, "format")
	s.bind(flags, keyRegistryPath, "registry-path")
	s.bind(flags, keyRegistryURL, "registry-url")
	s.bind(flags, keyWorkers, "workers")
	s.bind(flags, keyProbeHosts, "probe-hosts")
	s.bind(flags, keyInclude, "include")
	s.bind(flags, keyIncludeFamily, "family")
	s.bind(flags, keyExcludeFamily, "exclude-family")
	s.bind(flags, keyMetricsFile, "metrics-file")

	return cmd
}

// discoverRun is one execution of the discover command
type discoverRun struct {
	cfg *config.Config
	git git.Client
	// http overrides the probe client built from the configuration
	http   httpclient.Client
	token  string
	out    io.Writer
	errOut io.Writer
	styled bool
}

func (r *discoverRun) run(ctx context.Context) (err error) {
	cfg := r.cfg
	if cfg.CacheDir == "" {
		return errNoCacheDir
	}
	if err := os.MkdirAll(cfg.CacheDir, 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	unlock, err := lockCacheDir(cfg.CacheDir)
	if err != nil {
		return err
	}
	defer unlock()

	runID := uuid.NewString()
	restore := slog.Default()
	slog.SetDefault(restore.With("run_id", runID))
	defer slog.SetDefault(restore)

	startedAt := time.Now().UTC()
	runStatus := &status.RunStatus{
		RunID:     runID,
		Phase:     status.RunPhaseRunning,
		StartedAt: &startedAt,
		Output:    cfg.Output.Path,
	}
	statusStore := status.NewFileStatusPersistence(cfg.CacheDir)
	r.saveStatus(ctx, statusStore, runStatus)
	defer func() {
		finishedAt := time.Now().UTC()
		runStatus.FinishedAt = &finishedAt
		runStatus.Phase = status.RunPhaseComplete
		if err != nil {
			runStatus.Phase = status.RunPhaseFailed
			runStatus.Message = err.Error()
		}
		r.saveStatus(ctx, statusStore, runStatus)
	}()

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(telemetryConfig(cfg.Telemetry)),
		telemetry.WithRunID(runID),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down telemetry", "error", err)
		}
	}()
	metrics, err := telemetry.NewDiscoveryMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	slog.Info("Starting font-sources discovery",
		"version", versions.GetVersionInfo().Version,
		"cache_dir", cfg.CacheDir)

	checkout, err := registry.Open(ctx, r.git,
		registry.WithURL(cfg.GetRegistryURL()),
		registry.WithLocalPath(cfg.Registry.Path),
		registry.WithLicenseDirs(cfg.GetLicenseDirs()),
		registry.WithCloneAttempts(cfg.Registry.CloneAttempts))
	if err != nil {
		return fmt.Errorf("failed to open font registry: %w", err)
	}
	defer func() {
		if err := checkout.Cleanup(); err != nil {
			slog.Warn("Failed to clean up registry checkout", "error", err)
		}
	}()
	runStatus.RegistryRev = checkout.Rev

	records, err := registry.LoadMetadata(checkout.Path, cfg.GetLicenseDirs())
	if err != nil {
		return err
	}

	include, exclude := cfg.GetNameFilter()
	nameFilter, err := filtering.NewNameFilter(include, exclude)
	if err != nil {
		return fmt.Errorf("invalid family filter: %w", err)
	}
	cands, candStats := candidates.Reduce(records, candidates.WithNameFilter(nameFilter))
	runStatus.Candidates = len(cands)

	if r.token == "" {
		slog.Warn("No GitHub token set, probes and clones are more likely to be rate limited",
			"env", sources.AuthTokenEnv)
	}

	engine := discovery.New(r.git, r.httpClient(), cfg.CacheDir,
		discovery.WithProbeHosts(cfg.GetProbeHosts()),
		discovery.WithDefaultRetryAfter(cfg.GetDefaultRetryAfter()),
		discovery.WithGitTimeout(cfg.GetGitTimeout()),
		discovery.WithAuth(sources.TokenAuth(r.token)),
		discovery.WithMetrics(metrics),
		discovery.WithTracer(tel.Tracer(telemetry.DiscoveryTracerName)))
	pool := coordinator.New(engine,
		coordinator.WithWorkers(cfg.GetWorkers()),
		coordinator.WithMaxRateLimitRetries(cfg.GetMaxRateLimitRetries()),
		coordinator.WithPollInterval(cfg.GetPollInterval()),
		coordinator.WithMetrics(metrics))
	result := pool.Run(ctx, cands)

	srcs := result.Sources
	for _, path := range cfg.Discovery.Include {
		included, err := catalog.Load(path)
		if err != nil {
			return fmt.Errorf("failed to include sources: %w", err)
		}
		slog.Info("Including sources", "path", path, "sources", len(included.Sources))
		srcs = append(srcs, included.Sources...)
	}
	srcs = dedupSources(srcs)
	sources.MarkRevConflicts(srcs)

	format, err := catalog.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	out := catalog.New(srcs)
	if cfg.Output.Path != "" {
		if err := out.WriteFile(cfg.Output.Path, format); err != nil {
			return fmt.Errorf("failed to write catalog: %w", err)
		}
		slog.Info("Catalog written", "path", cfg.Output.Path, "sources", len(srcs))
	} else if err := out.Encode(r.out, format); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	runStatus.Sources = len(srcs)
	runStatus.Failures = len(result.Failures)
	runStatus.Outcomes = result.Outcomes
	runStatus.Cooldowns = result.Cooldowns

	metrics.RecordCatalogSources(ctx, int64(len(srcs)))
	if err := tel.WriteTextfile(); err != nil {
		slog.Warn("Failed to write metrics", "error", err)
	}

	writeReport(r.errOut, r.styled, candStats, result, srcs)
	return nil
}

func (r *discoverRun) httpClient() httpclient.Client {
	if r.http != nil {
		return r.http
	}
	var opts []httpclient.Option
	if r.token != "" {
		opts = append(opts, httpclient.WithAuthToken(r.token))
	}
	return httpclient.NewDefaultClient(r.cfg.GetHTTPTimeout(), opts...)
}

func (*discoverRun) saveStatus(ctx context.Context, store status.StatusPersistence, s *status.RunStatus) {
	if err := store.SaveStatus(ctx, s); err != nil {
		slog.Warn("Failed to save run status", "error", err)
	}
}

// dedupSources drops exact repeats of a (repo URL, revision) pair, keeping the first
func dedupSources(srcs []sources.FontSource) []sources.FontSource {
	seen := make(map[[2]string]bool, len(srcs))
	out := srcs[:0:0]
	for i := range srcs {
		key := [2]string{srcs[i].RepoURL(), srcs[i].Rev()}
		if seen[key] {
			slog.Debug("Dropping repeated source", "repo_url", key[0], "rev", key[1])
			continue
		}
		seen[key] = true
		out = append(out, srcs[i])
	}
	slices.SortFunc(out, sources.Compare)
	return out
}

// lockCacheDir takes the cache directory lock, failing if another run holds it
func lockCacheDir(cacheDir string) (func(), error) {
	lock := flock.New(filepath.Join(cacheDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cache directory %s is in use by another font-sources run", cacheDir)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release cache lock", "error", err)
		}
	}, nil
}

// readToken returns the GitHub token from tokenFile, or from the environment
func readToken(tokenFile string, lookupEnv func(string) (string, bool)) (string, error) {
	if tokenFile != "" {
		// #nosec G304 -- the token file is provided by the operator
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", errors.New("token file is empty")
		}
		return token, nil
	}
	token, _ := lookupEnv(sources.AuthTokenEnv)
	return strings.TrimSpace(token), nil
}

// telemetryConfig fills in the service version for the run
func telemetryConfig(cfg *telemetry.Config) *telemetry.Config {
	if cfg == nil {
		return nil
	}
	out := *cfg
	if out.ServiceVersion == "" {
		out.ServiceVersion = versions.GetVersionInfo().Version
	}
	return &out
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
