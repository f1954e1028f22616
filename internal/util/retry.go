package util

import (
	"context"
	"log/slog"
	"time"
)

// maxRetryDelay caps the exponential backoff so long attempt chains do not
// stall a scheduled pass for hours.
const maxRetryDelay = 2 * time.Minute

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay and capped at two minutes. It returns nil on the first
// successful call, or the last error if all attempts fail. Context
// cancellation is honored between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			slog.Debug("retrying after failure",
				"attempt", attempt+1, "maxAttempts", maxAttempts, "delay", delay, "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
	}

	return err
}
