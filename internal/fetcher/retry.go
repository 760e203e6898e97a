package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 100 * time.Millisecond
	defaultMaxDelay    = 2 * time.Second
)

// RetryConfig bounds a retry loop. The delay before attempt n+1 is
// min(BaseDelay * 2^(n-1), MaxDelay), binary exponential backoff without
// jitter.
type RetryConfig struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	return c
}

// newExponential builds the deterministic backoff schedule for cfg.
func newExponential(cfg RetryConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = cfg.MaxDelay
	return b
}

// Retry invokes op until it succeeds or cfg.MaxAttempts invocations have
// failed, sleeping the configured backoff between attempts. The final error
// is returned unchanged. Every error kind is retried identically; the
// combinator deliberately does not distinguish retryable from terminal
// failures. Cancelling ctx aborts the loop at the next suspension point.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	attempt := uint(0)
	return backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			return op()
		},
		backoff.WithBackOff(newExponential(cfg)),
		backoff.WithMaxTries(cfg.MaxAttempts),
		backoff.WithNotify(func(err error, delay time.Duration) {
			slog.Warn("attempt failed, backing off",
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"delay", delay,
				"error", err)
		}),
	)
}
