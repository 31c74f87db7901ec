package coordinator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fontcatalog/font-sources/internal/telemetry"
)

// RateLimiter is the cooldown signal shared by the workers of one Pool.
//
// The flag is only ever set by a CompareAndSwap from false to true and only
// cleared by a Store of false. The generation counter is bumped once per
// completed cooldown, so a worker whose probe started before a cooldown can
// tell that its rate limit was already handled.
type RateLimiter struct {
	active     atomic.Bool
	generation atomic.Uint64
	cooldowns  atomic.Int64

	sleep   func(time.Duration)
	metrics *telemetry.DiscoveryMetrics
}

// NewRateLimiter creates a clear RateLimiter
func NewRateLimiter(metrics *telemetry.DiscoveryMetrics) *RateLimiter {
	return &RateLimiter{
		sleep:   time.Sleep,
		metrics: metrics,
	}
}

// Active reports whether a cooldown is in progress
func (r *RateLimiter) Active() bool {
	return r.active.Load()
}

// Generation returns the number of completed cooldowns. Workers read it
// before probing and hand it back to Cooldown.
func (r *RateLimiter) Generation() uint64 {
	return r.generation.Load()
}

// Cooldowns returns how many cooldowns have been announced
func (r *RateLimiter) Cooldowns() int64 {
	return r.cooldowns.Load()
}

// Cooldown sleeps for d on behalf of every worker and returns true, unless a
// cooldown is already running or one has completed since gen was read, in
// which case it returns false at once.
func (r *RateLimiter) Cooldown(gen uint64, d time.Duration) bool {
	if !r.active.CompareAndSwap(false, true) {
		return false
	}
	if r.generation.Load() != gen {
		// this rate limit was handled by a cooldown that already finished
		r.active.Store(false)
		return false
	}

	r.cooldowns.Add(1)
	r.metrics.RecordCooldown(context.Background())
	slog.Warn("Rate limited, pausing all workers", "retry_after", d)

	r.sleep(d)

	r.generation.Add(1)
	r.active.Store(false)
	slog.Info("Rate limit cooldown finished")
	return true
}
