// Package retry implements the chunk-upload retry policy: exponential
// backoff with jitter over a fixed attempt budget, classifying transport
// and HTTP failures into retryable and non-retryable buckets.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultMaxAttempts is the number of attempts made before a chunk
	// upload is abandoned, including the first try.
	DefaultMaxAttempts = 3
	baseDelay          = 500 * time.Millisecond
	capDelay           = 30 * time.Second
	jitterFraction     = 0.1
)

// Policy controls retry timing and attempt budget. The zero value is not
// usable; construct with NewPolicy.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration

	// sleepFunc is injectable so tests can exercise backoff without
	// actually waiting.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFloat is injectable so delay math is deterministic in tests.
	randFloat func() float64
}

// NewPolicy builds a Policy with spec-mandated defaults. maxAttempts<=0
// falls back to DefaultMaxAttempts.
func NewPolicy(maxAttempts int) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		CapDelay:    capDelay,
		sleepFunc:   sleepCtx,
		randFloat:   rand.Float64, //nolint:gosec // jitter does not need crypto rand
	}
}

// Delay returns the backoff duration before retry attempt k (0-indexed:
// k=0 is the delay before the second overall attempt). It implements
// min(base*2^k + jitter, cap) with jitter drawn uniformly from
// [0, 0.1*base*2^k).
func (p *Policy) Delay(k int) time.Duration {
	raw := float64(p.BaseDelay) * math.Pow(2, float64(k))

	jitter := raw * jitterFraction * p.randFloat()
	d := raw + jitter

	if d > float64(p.CapDelay) {
		d = float64(p.CapDelay)
	}

	return time.Duration(d)
}

// Sleep waits out Delay(k), returning early with ctx.Err() if ctx is
// canceled first.
func (p *Policy) Sleep(ctx context.Context, k int) error {
	return p.sleepFunc(ctx, p.Delay(k))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryableStatus is the set of HTTP status codes spec §4.1 marks
// retryable: request timeout, rate limiting, and server-side failures.
var retryableStatus = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// nonRetryableStatus is the explicit non-retryable set: client errors the
// server will never change its mind about on replay.
var nonRetryableStatus = map[int]bool{
	400: true,
	401: true,
	403: true,
	404: true,
	413: true,
	415: true,
}

// ErrAborted is returned by a transport when the caller canceled the
// upload task; it is always non-retryable.
var ErrAborted = errors.New("retry: upload aborted")

// ShouldRetry classifies the outcome of one chunk-send attempt. statusCode
// is 0 when the attempt failed before a response was received (a transport
// error, in which case err is non-nil).
func ShouldRetry(statusCode int, err error) bool {
	if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
		return false
	}

	// No response was received at all: spec §4.1 treats every transport
	// error and timeout as retryable, with no further classification.
	if err != nil && statusCode == 0 {
		return true
	}

	if nonRetryableStatus[statusCode] {
		return false
	}

	return retryableStatus[statusCode]
}
