package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 100 * time.Millisecond

	// maxBackoff caps the doubling delay; jitterFraction spreads each
	// delay by up to ±10% so colliding retriers do not stay in lockstep.
	maxBackoff     = 10 * time.Second
	jitterFraction = 0.1
)

// RetryConfig controls Retry. The delay starts at InitialBackoff and
// doubles per attempt, jittered and capped.
type RetryConfig struct {
	// MaxAttempts counts the first call too: 2 means one retry.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// RetryIf decides whether an error is worth retrying. Nil retries
	// everything except context cancellation and expiry.
	RetryIf func(error) bool
	// OnRetry, if set, is called before each retry sleep.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// Retry calls fn until it succeeds, the error is not retryable, the
// attempts run out, or ctx ends. It returns fn's result or the error
// that stopped the retrying.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}

	backoff := cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !cfg.RetryIf(err) || attempt == cfg.MaxAttempts {
			return zero, err
		}

		delay := withJitter(backoff)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func withJitter(d time.Duration) time.Duration {
	spread := 1 + jitterFraction*(rand.Float64()*2-1)
	return time.Duration(float64(d) * spread)
}
