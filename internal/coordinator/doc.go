// Package coordinator runs repository discovery on a bounded worker pool.
//
// Each candidate becomes one task, and each task is a small state machine:
//
//	Idle -> Probing -> Done
//	           |
//	           v
//	        Backoff -> Idle   (at most MaxRateLimitRetries times)
//
// An idle task waits while the pool's RateLimiter is active, then probes
// once. A rate-limited probe moves the task to Backoff, where the first task
// to claim the limiter sleeps for the requested duration on behalf of all
// workers; the others go straight back to Idle and wait for the flag to
// clear. A rate limit is therefore announced and slept through once no
// matter how many workers hit it.
//
// Every task reports exactly one terminal outcome to a single collector,
// which logs progress and failures and returns the sorted results.
package coordinator
