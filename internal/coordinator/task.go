package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/fontcatalog/font-sources/internal/discovery"
	"github.com/fontcatalog/font-sources/internal/sources"
)

// State is the phase of a discovery task
type State int

const (
	// StateIdle waits for any cooldown to finish
	StateIdle State = iota
	// StateProbing runs discovery once
	StateProbing
	// StateBackoff handles a rate limit
	StateBackoff
	// StateDone holds the terminal outcome
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateBackoff:
		return "backoff"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// task drives discovery of one candidate to a terminal outcome
type task struct {
	candidate  sources.Candidate
	state      State
	gen        uint64
	retries    int
	retryAfter time.Duration
	result     *discovery.Result
	err        error
}

// outcome is what a task reports to the collector
type outcome struct {
	candidate sources.Candidate
	result    *discovery.Result
	err       error
	attempts  int
}

func newTask(candidate sources.Candidate) *task {
	return &task{candidate: candidate, state: StateIdle}
}

// run steps the task until it is done
func (t *task) run(ctx context.Context, p *Pool) outcome {
	attempts := 0
	for t.state != StateDone {
		if t.state == StateProbing {
			attempts++
		}
		t.step(ctx, p)
	}
	return outcome{candidate: t.candidate, result: t.result, err: t.err, attempts: attempts}
}

// step performs one state transition
func (t *task) step(ctx context.Context, p *Pool) {
	switch t.state {
	case StateIdle:
		for p.limiter.Active() {
			time.Sleep(p.pollInterval)
		}
		t.gen = p.limiter.Generation()
		t.state = StateProbing

	case StateProbing:
		t.result, t.err = p.discoverer.Discover(ctx, t.candidate)
		if rl, ok := discovery.IsRateLimited(t.err); ok {
			t.retryAfter = rl.RetryAfter
			t.state = StateBackoff
			return
		}
		t.state = StateDone

	case StateBackoff:
		t.retries++
		if t.retries > p.maxRetries {
			slog.Warn("Giving up after repeated rate limits",
				"repo_url", t.candidate.RepoURL,
				"retries", p.maxRetries)
			t.state = StateDone
			return
		}
		p.limiter.Cooldown(t.gen, t.retryAfter)
		t.result, t.err = nil, nil
		t.state = StateIdle

	case StateDone:
	}
}
