package discovery

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoConfigFound is returned when a repository has no build config. The
// repository is left out of the catalog; this is not a failure of the run.
var ErrNoConfigFound = errors.New("no config file was found")

// errProbeMiss means neither conventional config location exists upstream
var errProbeMiss = errors.New("config not found by probe")

// RateLimitedError is returned when the upstream host asks us to slow down.
// It is retryable: the caller should wait RetryAfter and try again.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// IsRateLimited reports whether err is a RateLimitedError and returns it
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
