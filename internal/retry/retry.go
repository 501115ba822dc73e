// Package retry runs an operation again on transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts int           // total attempts including the first; < 1 means 1
	BaseDelay   time.Duration // delay before the first retry, doubled on each subsequent retry
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up. The last error is returned.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	v, err := fn(ctx)
	if err == nil {
		return v, nil
	}

	lastErr := err
	for attempt := 1; attempt < attempts; attempt++ {
		if !isRetryable(lastErr) {
			return zero, lastErr
		}

		delay := backoffDelay(p.BaseDelay, attempt, lastErr)
		logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func backoffDelay(base time.Duration, attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: base * 2^(attempt-1)
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Never retry a cancelled or expired context.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Network and DNS failures are retryable.
	return true
}
