package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), RetryConfig{}, func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	result, err := Retry(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Errorf("expected ok after 3 calls, got %q after %d", result, calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}
	_, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("always")
	})
	if err == nil || err.Error() != "always" {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_RetryIfStopsEarly(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		RetryIf:        func(err error) bool { return !errors.Is(err, permanent) },
	}
	_, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, RetryConfig{}, func() (int, error) {
		return 0, errors.New("never retried")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			attempts = append(attempts, attempt)
		},
	}
	_, _ = Retry(context.Background(), cfg, func() (int, error) {
		return 0, errors.New("fail")
	})
	if len(attempts) != 2 {
		t.Errorf("expected OnRetry called twice, got %v", attempts)
	}
}

func TestRetry_BackoffGrowsAndCaps(t *testing.T) {
	var delays []time.Duration
	cfg := RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			delays = append(delays, backoff)
		},
	}
	_, _ = Retry(context.Background(), cfg, func() (int, error) {
		return 0, errors.New("fail")
	})
	if len(delays) != 3 {
		t.Fatalf("expected 3 delays, got %v", delays)
	}
	// Doubling with ±10% jitter: each delay stays within its bracket.
	for i, base := range []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond} {
		lo := time.Duration(float64(base) * 0.9)
		hi := time.Duration(float64(base) * 1.1)
		if delays[i] < lo || delays[i] > hi {
			t.Errorf("delay %d = %v, want within [%v, %v]", i, delays[i], lo, hi)
		}
	}
}
