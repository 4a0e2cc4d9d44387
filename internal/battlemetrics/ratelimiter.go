package battlemetrics

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// requestRateLimiter enforces delays between API requests with random jitter
// so bursts from concurrent callers don't hit the per-second quota.
type requestRateLimiter struct {
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
	maxJitter   time.Duration
	rng         *rand.Rand
}

// newRequestRateLimiter creates a rate limiter with base interval and jitter.
// For example, baseInterval=200ms and jitter=50ms yields delays of 150-250ms.
func newRequestRateLimiter(baseInterval, jitter time.Duration) *requestRateLimiter {
	return &requestRateLimiter{
		lastRequest: time.Now().Add(-baseInterval),
		minInterval: baseInterval,
		maxJitter:   jitter,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// waitForNextSlot blocks until enough time has passed since the last request
// or the context is canceled.
func (r *requestRateLimiter) waitForNextSlot(ctx context.Context) error {
	r.mu.Lock()

	elapsed := time.Since(r.lastRequest)

	targetDelay := r.minInterval
	if r.maxJitter > 0 {
		targetDelay += time.Duration(r.rng.Int63n(int64(r.maxJitter*2))) - r.maxJitter
	}

	var wait time.Duration
	if elapsed < targetDelay {
		wait = targetDelay - elapsed
	}

	r.lastRequest = time.Now().Add(wait)
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
