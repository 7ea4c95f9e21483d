// Package retry wraps sethvargo/go-retry with the bounded linear policy used
// for remote lookups.
package retry

import (
	"context"
	"sync/atomic"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"reelshelf/internal/config"
	"reelshelf/internal/services"
)

// Policy retries transient failures a bounded number of times, waiting
// Backoff, 2*Backoff, 3*Backoff ... between attempts.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// FromConfig reads the [retry] section.
func FromConfig(cfg *config.Config) Policy {
	return Policy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.RetryBackoff()}
}

// Linear returns a go-retry backoff growing by step on every call.
func Linear(step time.Duration) goretry.Backoff {
	var attempt uint64
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		n := atomic.AddUint64(&attempt, 1)
		return time.Duration(n) * step, false
	})
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Only services.IsRetryable errors are retried.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := goretry.WithMaxRetries(uint64(attempts-1), Linear(p.Backoff))
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if services.IsRetryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}
