package toolkit

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryOptions configure Retry.
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64

	// Sleep and Jitter are overridable for tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

func defaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Factor:     2.0,
		Sleep:      sleepContext,
		Jitter:     func() float64 { return rand.Float64() },
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs fn up to 1+MaxRetries times with exponential backoff and ±20%
// jitter. The last error is returned when every attempt fails; context
// cancellation aborts the wait immediately.
func Retry[R any](ctx context.Context, fn func(ctx context.Context) (R, error), optFns ...func(o *RetryOptions)) (R, error) {
	opts := defaultRetryOptions()
	for _, f := range optFns {
		f(&opts)
	}

	var zero R
	var lastErr error
	delay := opts.BaseDelay
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			jittered := withJitter(delay, opts.Jitter())
			if err := opts.Sleep(ctx, jittered); err != nil {
				return zero, err
			}
			delay = time.Duration(float64(delay) * opts.Factor)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("all %d attempts failed: %w", opts.MaxRetries+1, lastErr)
}

// withJitter scales d into the ±20% band using a uniform sample in [0,1).
func withJitter(d time.Duration, sample float64) time.Duration {
	factor := 0.8 + 0.4*sample
	return time.Duration(float64(d) * factor)
}
