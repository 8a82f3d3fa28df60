// Package retry runs an operation again after transient failures, doubling
// the wait each time.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"groupbuy-backend/apperr"
)

type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // wait before attempt 2 is BaseDelay, then 2x, 4x...
	MaxDelay    time.Duration // 0 = uncapped
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Delay returns the wait after the given zero-based attempt: base * 2^attempt.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
		if delay > time.Duration(1<<62) {
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Observer is told about every failed attempt that will be retried.
type Observer func(attempt int, err error)

// Do calls fn until it succeeds, fails with a non-transient error, or the
// attempt budget runs out. Non-transient errors are returned unchanged on
// first sight. An exhausted budget returns a PROCESSING_ERROR wrapping the
// last failure.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error, observers ...Observer) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !apperr.IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}
		for _, o := range observers {
			o(attempt, err)
		}

		delay := p.Delay(attempt)
		slog.Warn("Transient failure, retrying",
			"attempt", attempt+1,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return apperr.Processing(fmt.Errorf("gave up after %d attempts: %w", p.MaxAttempts, lastErr))
}
