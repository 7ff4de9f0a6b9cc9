// Package retry provides a generic retry wrapper for flaky operations,
// primarily site extractions that fail on transient navigation or selector
// timeouts.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Do executes op up to maxRetries+1 times. After a failed attempt it waits
// baseDelay multiplied by the attempt number (linear backoff) before trying
// again, honoring context cancellation during the wait. The error from the
// final attempt is returned unmodified; intermediate failures are logged.
func Do[T any](ctx context.Context, maxRetries int, baseDelay time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt > maxRetries {
			break
		}
		slog.Warn("attempt failed, retrying",
			"attempt", attempt,
			"maxAttempts", maxRetries+1,
			"error", err,
		)

		select {
		case <-time.After(baseDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
