package worker

import (
	"context"
	"math/rand"
	"time"
)

// retryPolicy retries an operation with exponential backoff and full jitter.
type retryPolicy struct {
	maxAttempts int
	base        time.Duration
	max         time.Duration

	// sleep is overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func (p retryPolicy) do(ctx context.Context, fn func(attempt int) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt < p.maxAttempts {
			if err := sleep(ctx, p.backoff(attempt)); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

// backoff returns a random delay in [0, base*2^(attempt-1)], capped at max.
func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.max {
			d = p.max
			break
		}
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
