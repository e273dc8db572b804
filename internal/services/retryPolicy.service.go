package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"dgisync/config"
)

// RetryPolicy governs how often one candidate address is retried.
// Backoff receives the number of failed attempts so far (1-based).
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(failures int) time.Duration
	Retryable   func(err error) bool
}

// NewRetryPolicy builds the production policy: a fixed base delay plus uniform
// random jitter, retrying only transient fetch errors.
func NewRetryPolicy(config config.Config) RetryPolicy {
	base := time.Duration(config.RetryBaseDelayMs) * time.Millisecond
	jitterMin := time.Duration(config.RetryJitterMinMs) * time.Millisecond
	jitterMax := time.Duration(config.RetryJitterMaxMs) * time.Millisecond

	return RetryPolicy{
		MaxAttempts: config.MaxRetries,
		Backoff: func(int) time.Duration {
			return base + jitter(jitterMin, jitterMax)
		},
		Retryable: IsTransient,
	}
}

// NoDelayRetryPolicy retries transient errors without sleeping.
func NoDelayRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     func(int) time.Duration { return 0 },
		Retryable:   IsTransient,
	}
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// Do runs attempt until it succeeds, returns a non-retryable error, the budget
// is spent, or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, attempt func(n int) error) error {
	maxAttempts := max(p.MaxAttempts, 1)

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		lastErr = attempt(n)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if n == maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return lastErr
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(n)
		}
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}

	return lastErr
}
