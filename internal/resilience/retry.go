// Package resilience provides retry with exponential backoff and transient
// error classification for the pipeline's outbound HTTP calls.
package resilience

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior. Backoff between attempts is
// BaseDelay * 2^attempt with no jitter, so delivery timing stays
// deterministic and testable.
type RetryConfig struct {
	// Retries is the number of additional attempts after the first try.
	// Zero means a single attempt. Default: 4.
	Retries int

	// BaseDelay is the delay before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default: 30s.
	MaxDelay time.Duration

	// ShouldRetry decides whether an error is worth another attempt.
	// Nil retries every error.
	ShouldRetry func(err error) bool

	// OnRetry is called before each backoff sleep with the attempt number
	// (1-based) and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the delivery-client defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Retries:   4,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return cfg
}

// Do executes fn up to cfg.Retries+1 times, sleeping between attempts.
// The last error is returned when the budget is exhausted. Context
// cancellation stops retries immediately and aborts the current sleep.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= cfg.Retries {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	return time.Duration(d)
}

// RetryLogger returns an OnRetry callback that logs each attempt.
func RetryLogger(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
