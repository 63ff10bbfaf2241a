package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"qabulxona/backend/internal/ratelimit"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLimiter() (*ratelimit.MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	return ratelimit.NewMemoryLimiter(10, 60*time.Second).WithClock(clock.Now), clock
}

// TestMemoryLimiter_EleventhEventDenied checks capacity N=10 within W=60s.
func TestMemoryLimiter_EleventhEventDenied(t *testing.T) {
	l, clock := newLimiter()
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		assert.True(t, l.Allow(ctx, 1), "event %d should be allowed", i)
		clock.Advance(time.Second)
	}
	assert.False(t, l.Allow(ctx, 1), "11th event within the window must be denied")
	assert.False(t, l.Allow(ctx, 1), "still denied until the window elapses")
}

// TestMemoryLimiter_NewWindowAfterElapse checks that the window restarts.
func TestMemoryLimiter_NewWindowAfterElapse(t *testing.T) {
	l, clock := newLimiter()
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		l.Allow(ctx, 1)
	}
	assert.False(t, l.Allow(ctx, 1))

	clock.Advance(60 * time.Second)
	assert.True(t, l.Allow(ctx, 1), "first event after W opens a new window")

	for i := 2; i <= 10; i++ {
		assert.True(t, l.Allow(ctx, 1), "event %d of the new window", i)
	}
	assert.False(t, l.Allow(ctx, 1))
}

func TestMemoryLimiter_UsersIndependent(t *testing.T) {
	l, _ := newLimiter()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		l.Allow(ctx, 1)
	}
	assert.False(t, l.Allow(ctx, 1))
	assert.True(t, l.Allow(ctx, 2))
}

func TestMemoryLimiter_Prune(t *testing.T) {
	l, clock := newLimiter()
	ctx := context.Background()

	l.Allow(ctx, 1)
	clock.Advance(30 * time.Second)
	l.Allow(ctx, 2)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Prune(), "only user 1's window has elapsed")
	assert.Equal(t, 0, l.Prune())
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(100, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(ctx, 9) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}
