// Package backoff provides bounded retry with exponential delay for
// calls against flaky upstreams.
package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/opalgrove/catdex/internal/domain"
)

// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
var ErrInvalidMaxAttempts = errors.New("backoff: max attempts must be positive")

// Retry runs op up to maxAttempts times, doubling the delay between
// attempts starting from baseDelay. Invalid-request errors are returned
// immediately: retrying cannot fix a rejected input. It returns the last
// error if every attempt fails, or the context error if the context is
// cancelled while waiting.
func Retry(ctx context.Context, op func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, domain.ErrInvalidRequest) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
