package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Allow(key string) bool
}

// perSourceLimiter keeps an independent token bucket per source ID so a
// noisy producer cannot starve the others.
type perSourceLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewPerSourceLimiter(requestsPerSecond float64, burst int) RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &perSourceLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (l *perSourceLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// NoOpRateLimiter always allows requests (for testing or disabled rate limiting)
type NoOpRateLimiter struct{}

func (n *NoOpRateLimiter) Allow(key string) bool {
	return true
}
