// Package retry wraps fallible network calls in bounded exponential backoff
// with jitter. Only transient failures are retried; anything else propagates
// immediately as a contract defect rather than environment flakiness.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/deepdive/deepdive/internal/enrich"
)

type Options struct {
	// MaxAttempts bounds total attempts, not retries. <=0 means 3.
	MaxAttempts int
	// BackoffBase is the delay before the first retry. Subsequent delays grow
	// by BackoffMultiplier, so defaults give 400ms, 1.2s, 3.6s.
	BackoffBase       time.Duration
	BackoffMultiplier float64
	// BackoffMax caps a single delay. <=0 means 30s.
	BackoffMax time.Duration
	// JitterFrac adds up to +frac of random jitter to each delay (0.1 = +10%).
	JitterFrac float64
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 400 * time.Millisecond
	}
	if o.BackoffMultiplier <= 1 {
		o.BackoffMultiplier = 3
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	return o
}

// delayFor computes the backoff before retry number attempt (0-based),
// without jitter applied.
func (o Options) delayFor(attempt int) time.Duration {
	d := float64(o.BackoffBase)
	for i := 0; i < attempt; i++ {
		d *= o.BackoffMultiplier
		if d >= float64(o.BackoffMax) {
			return o.BackoffMax
		}
	}
	return time.Duration(d)
}

func (o Options) jittered(d time.Duration) time.Duration {
	if o.JitterFrac <= 0 || d >= o.BackoffMax {
		return d
	}
	return d + time.Duration(rand.Float64()*o.JitterFrac*float64(d))
}

// Do executes op until it succeeds, fails non-transiently, or exhausts
// MaxAttempts. The last error is surfaced to the caller; absorbing it into a
// fallback value is the caller's contract, not this policy's.
//
// Each invocation carries its own attempt state, so concurrent calls never
// interfere with one another.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var last T
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		out, err := op(ctx)
		last = out
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return last, ctx.Err()
		}
		lastErr = err
		if !IsTransient(err) || attempt == opts.MaxAttempts-1 {
			return last, err
		}

		sleep := opts.jittered(opts.delayFor(attempt))
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return last, ctx.Err()
		}
	}
	return last, lastErr
}

// IsTransient reports whether err is worth retrying: explicitly tagged
// transient failures, deadline expiry, and temporary network errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *enrich.TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout() || ne.Temporary()
	}
	return false
}
