package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryStopsOnContextErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := fastRetry()
	cfg.InitialDelay = time.Hour
	err = Retry(ctx, cfg, func(context.Context) error { return errBoom })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled retry = %v", err)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return Permanent(errBoom)
	})
	if err != errBoom || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		if got := Backoff(i, cfg); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
}
