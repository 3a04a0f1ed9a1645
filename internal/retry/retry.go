package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds the retry loop.
//
// By default every error is retried, whatever its kind: an authentication
// failure is attempted MaxRetries more times just like a timeout. Set RetryIf
// (for example to apierr.Transient) to stop early on permanent failures.
type Policy struct {
	MaxRetries int
	Delay      time.Duration

	// RetryIf reports whether err deserves another attempt. Nil retries everything.
	RetryIf func(err error) bool
	// OnRetry runs before the delay preceding attempt number next (1-based retries).
	OnRetry func(next int, err error)
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Do calls fn until it succeeds or the policy is exhausted. Attempts are
// strictly sequential. The last error is returned unchanged; if ctx ends
// during a delay the loop stops and the last error is joined with ctx.Err().
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			if err := sleep(ctx, p.Delay); err != nil {
				return zero, errors.Join(lastErr, err)
			}
		}

		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if p.RetryIf != nil && !p.RetryIf(err) {
			break
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
