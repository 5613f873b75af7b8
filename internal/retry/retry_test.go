package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"podflow/internal/retry"
	"podflow/internal/services"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestDoStopsAfterBudget(t *testing.T) {
	policy := retry.New(2, time.Millisecond, time.Second, retry.WithSleeper(noSleep))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt != calls {
			t.Fatalf("attempt counter out of sync: attempt=%d calls=%d", attempt, calls)
		}
		return services.Wrap(services.ErrTimeout, "stage", "apply", "page timed out", nil)
	})

	if calls != 3 {
		t.Fatalf("expected 1+2 attempts, got %d", calls)
	}
	if !errors.Is(err, services.ErrRetriesExhausted) {
		t.Fatalf("expected retries-exhausted marker, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected original cause preserved, got %v", err)
	}
	if services.Classify(err) != services.ClassPermanent {
		t.Fatalf("exhausted transient must classify permanent, got %s", services.Classify(err))
	}
}

func TestDoPermanentFailureNotRetried(t *testing.T) {
	policy := retry.New(3, time.Millisecond, time.Second, retry.WithSleeper(noSleep))

	calls := 0
	wantErr := services.Wrap(services.ErrValidation, "shop", "submit", "rejected", nil)
	err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return wantErr
	})

	if calls != 1 {
		t.Fatalf("permanent failure must not be retried, got %d calls", calls)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDoSucceedsAfterTransient(t *testing.T) {
	policy := retry.New(3, time.Millisecond, time.Second, retry.WithSleeper(noSleep))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return services.Wrap(services.ErrTransient, "stage", "apply", "flaky", nil)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected third attempt to succeed, got %d calls", calls)
	}
}

func TestDoBackoffGrowsAndCaps(t *testing.T) {
	var delays []time.Duration
	policy := retry.New(4, time.Second, 4*time.Second, retry.WithSleeper(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}))

	_ = policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return services.Wrap(services.ErrTransient, "stage", "apply", "flaky", nil)
	})

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d backoff waits, got %d", len(want), len(delays))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Fatalf("delay %d: expected %s, got %s", i, want[i], d)
		}
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.New(5, time.Millisecond, time.Second, retry.WithSleeper(noSleep))

	calls := 0
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return services.Wrap(services.ErrTransient, "stage", "apply", "flaky", nil)
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no further attempts after cancel, got %d", calls)
	}
}

func TestMaxAttempts(t *testing.T) {
	if got := retry.New(0, time.Second, time.Second).MaxAttempts(); got != 1 {
		t.Fatalf("zero retries must mean a single attempt, got %d", got)
	}
}
