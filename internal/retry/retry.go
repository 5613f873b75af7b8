package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podflow/internal/config"
	"podflow/internal/logging"
	"podflow/internal/services"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 60 * time.Second
)

// Operation is one attempt of a retryable call. The attempt counter starts at
// 1; adapters that need an idempotency probe before re-submitting inspect it.
type Operation func(ctx context.Context, attempt int) error

// Policy retries transient failures with capped exponential backoff. Permanent
// failures return immediately; a transient failure that survives the whole
// budget is escalated to permanent via services.ErrRetriesExhausted.
type Policy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Option customizes a Policy.
type Option func(*Policy)

// WithSleeper overrides how backoff waits are performed (used in tests).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithLogger attaches a logger for per-attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New constructs a Policy. maxRetries counts re-attempts, so an operation runs
// at most 1+maxRetries times.
func New(maxRetries int, baseDelay, maxDelay time.Duration, opts ...Option) *Policy {
	p := &Policy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		sleep:      sleepContext,
		logger:     logging.NewNop(),
	}
	if p.maxRetries < 0 {
		p.maxRetries = defaultMaxRetries
	}
	if p.baseDelay <= 0 {
		p.baseDelay = defaultBaseDelay
	}
	if p.maxDelay < p.baseDelay {
		p.maxDelay = defaultMaxDelay
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromConfig builds a Policy from the retry section of the configuration.
func FromConfig(cfg *config.Config, opts ...Option) *Policy {
	if cfg == nil {
		return New(defaultMaxRetries, defaultBaseDelay, defaultMaxDelay, opts...)
	}
	return New(
		cfg.Retry.MaxRetries,
		time.Duration(cfg.Retry.BaseDelaySecs)*time.Second,
		time.Duration(cfg.Retry.MaxDelaySecs)*time.Second,
		opts...,
	)
}

// MaxAttempts reports the attempt bound (1 + retry budget).
func (p *Policy) MaxAttempts() int {
	return 1 + p.maxRetries
}

// Do executes op under the policy. Context cancellation aborts between
// attempts and during backoff; the in-flight attempt is never interrupted by
// the policy itself.
func (p *Policy) Do(ctx context.Context, op Operation) error {
	attempts := p.MaxAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if services.Classify(lastErr) != services.ClassTransient {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := p.delayFor(attempt)
		logging.WithContext(ctx, p.logger).Warn(
			"transient failure, backing off",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(lastErr),
		)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", services.ErrRetriesExhausted, attempts, lastErr)
}

func (p *Policy) delayFor(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	if delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
