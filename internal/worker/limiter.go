package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Operations limited during a batch run
const (
	OpWrite = "write"
	OpFetch = "fetch"
)

// Limiter implements per-operation rate limiting
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing perSecond calls per operation.
// perSecond <= 0 means unlimited.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until op may run or ctx is done. A nil limiter never waits.
func (l *Limiter) Wait(ctx context.Context, op string) error {
	if l == nil {
		return ctx.Err()
	}
	return l.getLimiter(op).Wait(ctx)
}

// Allow checks if op may run now without waiting
func (l *Limiter) Allow(op string) bool {
	if l == nil {
		return true
	}
	return l.getLimiter(op).Allow()
}

func (l *Limiter) getLimiter(op string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[op]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[op]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[op] = limiter

	return limiter
}

// SetRate sets a custom rate for one operation. perSecond <= 0 removes
// the limit for it.
func (l *Limiter) SetRate(op string, perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	l.limiters[op] = rate.NewLimiter(limit, burst)
}
