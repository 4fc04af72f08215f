// Package ratelimit provides a per-provider rolling call budget.
//
// This is deliberately not a token bucket: vendors advertise fixed
// per-minute or per-day ceilings, so the budget is a plain counter that
// resets when its window elapses. Budgets should be configured below the
// advertised ceiling to absorb clock skew. The limiter never blocks and
// is not fair-queued; an exhausted provider is simply skipped and callers
// may retry after the window rolls over.
package ratelimit

import (
	"sync"
	"time"
)

type budget struct {
	limit         int
	window        time.Duration
	count         int
	windowResetAt time.Time
}

// Limiter tracks call budgets for a set of providers. All mutation goes
// through a single check-and-increment under one mutex; no caller may
// bypass it.
type Limiter struct {
	mu      sync.Mutex
	budgets map[string]*budget
	now     func() time.Time // injectable clock for testing
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		budgets: make(map[string]*budget),
		now:     time.Now,
	}
}

// Register configures a provider's budget. Re-registering resets the
// provider's count.
func (l *Limiter) Register(provider string, limit int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.budgets[provider] = &budget{
		limit:         limit,
		window:        window,
		windowResetAt: l.now(),
	}
}

// TryAcquire consumes one call from the provider's budget. Returns false
// when the budget is exhausted for the current window, or when the
// provider is unknown.
func (l *Limiter) TryAcquire(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[provider]
	if !ok {
		return false
	}

	now := l.now()
	if now.Sub(b.windowResetAt) > b.window {
		b.count = 0
		b.windowResetAt = now
	}

	if b.count >= b.limit {
		return false
	}
	b.count++
	return true
}

// Usage returns the current count and limit for a provider.
func (l *Limiter) Usage(provider string) (count, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[provider]
	if !ok {
		return 0, 0
	}
	if l.now().Sub(b.windowResetAt) > b.window {
		return 0, b.limit
	}
	return b.count, b.limit
}
