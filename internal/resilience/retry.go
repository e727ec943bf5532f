// Package resilience provides bounded retries and a circuit breaker for calls
// to rate-limited providers.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how many times a call is attempted and how long to
// wait between attempts.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// Wait is the pause before the first retry. Default: 2s.
	Wait time.Duration

	// Multiplier scales Wait after each retry. 1 keeps the wait fixed.
	// Default: 1.
	Multiplier float64

	// MaxWait caps the pause when Multiplier > 1. Zero means no cap.
	MaxWait time.Duration

	// ShouldRetry overrides the default IsTransient check.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry pause with the attempt that failed.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns a fixed back-off policy: three attempts, two
// seconds apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Wait:        2 * time.Second,
		Multiplier:  1,
	}
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that return a value. On failure it returns the value
// from the last attempt alongside the last error, so callers can inspect a
// partial outcome.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var (
		val T
		err error
	)
	wait := cfg.Wait
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !shouldRetry(err) || attempt == cfg.MaxAttempts {
			return val, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return val, err
		case <-timer.C:
		}
		wait = nextWait(wait, cfg)
	}
	return val, err
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Wait < 0 {
		cfg.Wait = 0
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1
	}
	return cfg
}

func nextWait(wait time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(wait) * cfg.Multiplier)
	if cfg.MaxWait > 0 && next > cfg.MaxWait {
		next = cfg.MaxWait
	}
	return next
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
