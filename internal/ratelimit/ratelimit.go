// Package ratelimit implements the two-layer rate limiting described in
// SPEC_FULL.md §6: the durable per-client quota lives in the queue
// backend (Redis), but a lightweight in-process token bucket sits in
// front of it so a single API process doesn't hammer Redis with a burst
// of requests from one client before the Redis-side counter even has a
// chance to reject them.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vibecoding/demo2apk/internal/queue"
)

// Backend is the subset of queue.Queue the limiter needs.
type Backend interface {
	RateLimitAllow(ctx context.Context, key string, capacity int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// Limiter enforces spec.md §3/§4.1's per-client quota: key = first
// X-Forwarded-For hop or peer address, window = RATE_LIMIT_WINDOW,
// capacity = 5 anonymous / 20 authenticated.
type Limiter struct {
	backend Backend
	window  time.Duration

	mu      sync.Mutex
	guards  map[string]*rate.Limiter
}

func New(backend Backend, window time.Duration) *Limiter {
	return &Limiter{
		backend: backend,
		window:  window,
		guards:  make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a request from key is within quota, and if not,
// how long the client should wait before retrying.
func (l *Limiter) Allow(ctx context.Context, key string, capacity int) (allowed bool, retryAfter time.Duration, err error) {
	guard := l.guardFor(key, capacity)
	res := guard.Reserve()
	if !res.OK() || res.Delay() > 0 {
		res.Cancel()
		return false, l.window, nil
	}

	allowed, retryAfter, err = l.backend.RateLimitAllow(ctx, key, capacity, l.window)
	if err != nil || !allowed {
		res.Cancel()
	}
	return allowed, retryAfter, err
}

func (l *Limiter) guardFor(key string, capacity int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.guards[key]
	if !ok {
		perSecond := rate.Limit(float64(capacity) / l.window.Seconds())
		g = rate.NewLimiter(perSecond, capacity)
		l.guards[key] = g
	}
	return g
}

var _ Backend = (*queue.RedisQueue)(nil)
