package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetExhaustion(t *testing.T) {
	l := New()
	l.Register("primary", 70, time.Minute)

	for i := 0; i < 70; i++ {
		assert.True(t, l.TryAcquire("primary"), "call %d should be within budget", i+1)
	}

	assert.False(t, l.TryAcquire("primary"), "71st call inside one window must be denied")
}

func TestWindowRollover(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }
	l.Register("primary", 70, time.Minute)

	for i := 0; i < 70; i++ {
		assert.True(t, l.TryAcquire("primary"))
	}
	assert.False(t, l.TryAcquire("primary"))

	// First call after rollover is granted again.
	now = now.Add(61 * time.Second)
	assert.True(t, l.TryAcquire("primary"))
}

func TestUnknownProviderDenied(t *testing.T) {
	l := New()
	assert.False(t, l.TryAcquire("nope"))
}

func TestDailyWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }
	l.Register("tertiary", 2, 24*time.Hour)

	assert.True(t, l.TryAcquire("tertiary"))
	assert.True(t, l.TryAcquire("tertiary"))
	assert.False(t, l.TryAcquire("tertiary"))

	now = now.Add(23 * time.Hour)
	assert.False(t, l.TryAcquire("tertiary"), "window has not elapsed")

	now = now.Add(2 * time.Hour)
	assert.True(t, l.TryAcquire("tertiary"))
}

func TestConcurrentAcquire(t *testing.T) {
	l := New()
	l.Register("primary", 100, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire("primary") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, granted, "exactly the budget must be granted")
}

func TestUsage(t *testing.T) {
	l := New()
	l.Register("primary", 10, time.Minute)
	l.TryAcquire("primary")
	l.TryAcquire("primary")

	count, limit := l.Usage("primary")
	assert.Equal(t, 2, count)
	assert.Equal(t, 10, limit)
}
