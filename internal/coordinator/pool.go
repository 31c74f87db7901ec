package coordinator

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fontcatalog/font-sources/internal/discovery"
	"github.com/fontcatalog/font-sources/internal/git"
	"github.com/fontcatalog/font-sources/internal/sources"
	"github.com/fontcatalog/font-sources/internal/telemetry"
)

const (
	// DefaultWorkers is the default number of concurrent discoveries
	DefaultWorkers = 8
	// DefaultMaxRateLimitRetries bounds how often one task backs off
	DefaultMaxRateLimitRetries = 5
	// DefaultPollInterval is how often an idle task re-checks the cooldown flag
	DefaultPollInterval = 100 * time.Millisecond
	// progressEvery is how many outcomes pass between progress logs
	progressEvery = 50
)

// Pool runs discovery for a fixed set of candidates on a bounded number of
// workers that share one RateLimiter.
type Pool struct {
	discoverer   discovery.Discoverer
	workers      int
	maxRetries   int
	pollInterval time.Duration
	limiter      *RateLimiter
	metrics      *telemetry.DiscoveryMetrics
}

// Option configures a Pool
type Option func(*Pool)

// WithWorkers sets the number of workers
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxRateLimitRetries sets how many cooldowns a task may wait through
func WithMaxRateLimitRetries(n int) Option {
	return func(p *Pool) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithPollInterval sets how often idle tasks re-check the cooldown flag
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithMetrics records cooldowns
func WithMetrics(metrics *telemetry.DiscoveryMetrics) Option {
	return func(p *Pool) {
		p.metrics = metrics
	}
}

// New creates a Pool around discoverer
func New(discoverer discovery.Discoverer, opts ...Option) *Pool {
	p := &Pool{
		discoverer:   discoverer,
		workers:      DefaultWorkers,
		maxRetries:   DefaultMaxRateLimitRetries,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = NewRateLimiter(p.metrics)
	return p
}

// Limiter returns the pool's shared cooldown signal
func (p *Pool) Limiter() *RateLimiter {
	return p.limiter
}

// Failure is a candidate that produced no source
type Failure struct {
	Candidate sources.Candidate
	Err       error
}

// RunResult is the collected outcome of a Run
type RunResult struct {
	// Sources are the discovered sources sorted by repo URL, then revision
	Sources []sources.FontSource
	// Failures are the candidates without a source, sorted by repo URL
	Failures []Failure
	// Outcomes counts tasks by discovery.Outcome
	Outcomes map[string]int
	// Cooldowns is the number of rate limit cooldowns taken
	Cooldowns int64
}

// Run discovers every candidate and blocks until each has reported exactly
// one terminal outcome. The context bounds the underlying git and HTTP
// operations; it does not stop the run.
func (p *Pool) Run(ctx context.Context, candidates []sources.Candidate) *RunResult {
	total := len(candidates)
	slog.Info("Starting discovery", "repositories", total, "workers", p.workers)

	tasks := make(chan sources.Candidate, total)
	for _, c := range candidates {
		tasks <- c
	}
	close(tasks)

	outcomes := make(chan outcome)
	var wg sync.WaitGroup
	for range min(p.workers, max(total, 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range tasks {
				outcomes <- newTask(c).run(ctx, p)
			}
		}()
	}

	result := p.collect(outcomes, total)
	wg.Wait()
	return result
}

// collect receives exactly total outcomes
func (p *Pool) collect(outcomes <-chan outcome, total int) *RunResult {
	result := &RunResult{Outcomes: make(map[string]int)}

	for done := 1; done <= total; done++ {
		o := <-outcomes
		if o.err == nil && (o.result == nil || len(o.result.ConfigFiles) == 0) {
			o.err = discovery.ErrNoConfigFound
		}

		if o.err == nil {
			src, err := sources.NewFontSource(o.result.RepoURL, o.result.Rev, o.result.ConfigFiles)
			if err != nil {
				o.err = err
			} else {
				slog.Debug("Found config",
					"repo_url", o.result.RepoURL,
					"rev", o.result.Rev,
					"config", o.result.ConfigFiles[0],
					"strategy", o.result.Strategy)
				result.Sources = append(result.Sources, *src)
			}
		}
		if o.err != nil {
			logFailure(o)
			result.Failures = append(result.Failures, Failure{Candidate: o.candidate, Err: o.err})
		}
		result.Outcomes[discovery.Outcome(o.err)]++

		if done%progressEvery == 0 || done == total {
			slog.Info("Discovery progress",
				"done", done,
				"total", total,
				"found", len(result.Sources))
		}
	}

	slices.SortFunc(result.Sources, sources.Compare)
	slices.SortFunc(result.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Candidate.RepoURL, b.Candidate.RepoURL)
	})
	result.Cooldowns = p.limiter.Cooldowns()
	return result
}

func logFailure(o outcome) {
	attrs := []any{"repo_url", o.candidate.RepoURL, "name", o.candidate.Name, "error", o.err}
	switch {
	case errors.Is(o.err, discovery.ErrNoConfigFound):
		slog.Info("No config found", attrs...)
	case errors.Is(o.err, git.ErrRevisionNotFound):
		slog.Warn("Pinned revision not found, excluding repository", attrs...)
	default:
		slog.Warn("Discovery failed", append(attrs, "attempts", o.attempts)...)
	}
}
