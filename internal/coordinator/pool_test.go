package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fontcatalog/font-sources/internal/discovery"
	"github.com/fontcatalog/font-sources/internal/git"
	"github.com/fontcatalog/font-sources/internal/sources"
)

func candidates(n int) []sources.Candidate {
	out := make([]sources.Candidate, n)
	for i := range out {
		out[i] = sources.Candidate{
			Name:    fmt.Sprintf("Family %02d", i),
			RepoURL: fmt.Sprintf("https://github.com/fontorg/family-%02d", i),
		}
	}
	return out
}

func found(c sources.Candidate, rev string) *discovery.Result {
	return &discovery.Result{
		RepoURL:     c.RepoURL,
		Rev:         rev,
		ConfigFiles: []string{"sources/config.yaml"},
		Strategy:    discovery.StrategyProbe,
	}
}

func TestPool_RateLimitHandledOnce(t *testing.T) {
	t.Parallel()

	const n = 8
	var (
		arrived  atomic.Int32
		release  = make(chan struct{})
		mu       sync.Mutex
		attempts = map[string]int{}
	)

	discoverer := discovery.DiscoverFunc(func(_ context.Context, c sources.Candidate) (*discovery.Result, error) {
		mu.Lock()
		attempts[c.RepoURL]++
		attempt := attempts[c.RepoURL]
		mu.Unlock()

		if attempt == 1 {
			// every probe is in flight before any of them reports the rate limit
			if arrived.Add(1) == n {
				close(release)
			}
			<-release
			return nil, &discovery.RateLimitedError{RetryAfter: 20 * time.Millisecond}
		}
		return found(c, "abc"), nil
	})

	pool := New(discoverer, WithWorkers(n), WithPollInterval(time.Millisecond))
	result := pool.Run(context.Background(), candidates(n))

	assert.Len(t, result.Sources, n)
	assert.Empty(t, result.Failures)
	assert.Equal(t, int64(1), result.Cooldowns)
	assert.Equal(t, int64(1), pool.Limiter().Cooldowns())
	assert.False(t, pool.Limiter().Active())
	assert.Equal(t, uint64(1), pool.Limiter().Generation())
	for url, count := range attempts {
		assert.Equal(t, 2, count, "attempts for %s", url)
	}
}

func TestPool_RateLimitRetriesAreBounded(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	discoverer := discovery.DiscoverFunc(func(context.Context, sources.Candidate) (*discovery.Result, error) {
		calls.Add(1)
		return nil, &discovery.RateLimitedError{RetryAfter: time.Millisecond}
	})

	pool := New(discoverer,
		WithWorkers(1),
		WithMaxRateLimitRetries(2),
		WithPollInterval(time.Millisecond))
	result := pool.Run(context.Background(), candidates(1))

	require.Len(t, result.Failures, 1)
	_, ok := discovery.IsRateLimited(result.Failures[0].Err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(2), result.Cooldowns)
	assert.Equal(t, 1, result.Outcomes["rate_limited"])
	assert.False(t, pool.Limiter().Active())
}

func TestPool_CollectsAndSortsOutcomes(t *testing.T) {
	t.Parallel()

	cands := candidates(5)
	discoverer := discovery.DiscoverFunc(func(_ context.Context, c sources.Candidate) (*discovery.Result, error) {
		switch c.RepoURL {
		case cands[0].RepoURL:
			return nil, fmt.Errorf("%w in %s", discovery.ErrNoConfigFound, c.RepoURL)
		case cands[1].RepoURL:
			return nil, &git.Error{Op: "clone", Path: "/cache/fontorg/family-01", Message: "failed to clone"}
		case cands[2].RepoURL:
			return nil, git.ErrRevisionNotFound
		}
		return found(c, "rev-"+c.Name), nil
	})

	// reverse the input to check that results do not follow input order
	input := []sources.Candidate{cands[4], cands[3], cands[2], cands[1], cands[0]}
	result := New(discoverer, WithWorkers(3)).Run(context.Background(), input)

	require.Len(t, result.Sources, 2)
	assert.Equal(t, cands[3].RepoURL, result.Sources[0].RepoURL())
	assert.Equal(t, cands[4].RepoURL, result.Sources[1].RepoURL())

	require.Len(t, result.Failures, 3)
	assert.Equal(t, cands[0].RepoURL, result.Failures[0].Candidate.RepoURL)
	assert.ErrorIs(t, result.Failures[0].Err, discovery.ErrNoConfigFound)
	var gitErr *git.Error
	assert.ErrorAs(t, result.Failures[1].Err, &gitErr)
	assert.ErrorIs(t, result.Failures[2].Err, git.ErrRevisionNotFound)

	assert.Equal(t, map[string]int{"found": 2, "no_config": 1, "error": 1, "missing_rev": 1}, result.Outcomes)
	assert.Zero(t, result.Cooldowns)
}

func TestPool_SameRepoAtSeveralRevisionsSortedByRev(t *testing.T) {
	t.Parallel()

	const repo = "https://github.com/fontorg/family"
	discoverer := discovery.DiscoverFunc(func(_ context.Context, c sources.Candidate) (*discovery.Result, error) {
		return found(c, c.Commit), nil
	})

	result := New(discoverer).Run(context.Background(), []sources.Candidate{
		{Name: "B", RepoURL: repo, Commit: "bbb"},
		{Name: "A", RepoURL: repo, Commit: "aaa"},
	})

	require.Len(t, result.Sources, 2)
	assert.Equal(t, "aaa", result.Sources[0].Rev())
	assert.Equal(t, "bbb", result.Sources[1].Rev())
}

func TestPool_MalformedResultBecomesFailure(t *testing.T) {
	t.Parallel()

	discoverer := discovery.DiscoverFunc(func(_ context.Context, c sources.Candidate) (*discovery.Result, error) {
		if c.Name == "Empty" {
			return &discovery.Result{RepoURL: c.RepoURL}, nil
		}
		return &discovery.Result{RepoURL: "https://github.com", ConfigFiles: []string{"sources/config.yaml"}}, nil
	})

	result := New(discoverer).Run(context.Background(), []sources.Candidate{
		{Name: "Empty", RepoURL: "https://github.com/a/empty"},
		{Name: "Bad", RepoURL: "https://github.com/a/bad"},
	})

	assert.Empty(t, result.Sources)
	require.Len(t, result.Failures, 2)
	assert.ErrorIs(t, result.Failures[0].Err, sources.ErrBadRepoURL)
	assert.ErrorIs(t, result.Failures[1].Err, discovery.ErrNoConfigFound)
}

func TestPool_NoCandidates(t *testing.T) {
	t.Parallel()

	result := New(discovery.DiscoverFunc(func(context.Context, sources.Candidate) (*discovery.Result, error) {
		return nil, errors.New("unexpected call")
	})).Run(context.Background(), nil)

	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Failures)
}
