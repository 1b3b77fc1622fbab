// Package retry provides a bounded exponential-backoff executor for calls
// to failure-prone upstreams. No jitter is added; per-key concurrency is low
// enough that synchronized retries are not a concern here.
package retry

import (
	"context"
	"time"
)

// Policy controls how Do retries a failing call.
type Policy struct {
	MaxAttempts  int // total calls, including the first
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// ShouldRetry decides whether an error is worth another attempt.
	// When nil, every error is retried until attempts run out.
	ShouldRetry func(error) bool
}

// DefaultPolicy mirrors the upstream client settings: three attempts,
// 1s initial delay doubling up to 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

// Do calls fn up to p.MaxAttempts times, sleeping
// min(InitialDelay * Multiplier^attempt, MaxDelay) between attempts. The
// delay sequence is non-decreasing until capped. A non-retryable error, an
// exhausted budget, or a cancelled context all surface the last error
// immediately with no further delay.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts-1 {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
	return zero, lastErr
}

// delay computes the backoff before the attempt+1'th call.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	if ceiling := float64(p.MaxDelay); p.MaxDelay > 0 && d > ceiling {
		d = ceiling
	}
	return time.Duration(d)
}
