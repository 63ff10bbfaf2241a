// Package ratelimit gates inbound events per conversation.
//
// Both implementations are best-effort: counters are not persisted and a
// restart clears every limit.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more event from userID is allowed now.
type Limiter interface {
	Allow(ctx context.Context, userID int64) bool
}

type window struct {
	count int
	start time.Time
}

// MemoryLimiter is a per-user window counter held in process memory.
//
// The first event opens a window of length Window. Events are allowed while
// the count within the window stays at or below Capacity; the first event
// after the window elapsed opens a new one.
type MemoryLimiter struct {
	mu       sync.Mutex
	entries  map[int64]*window
	capacity int
	window   time.Duration
	now      func() time.Time
}

// NewMemoryLimiter creates a limiter allowing capacity events per window.
func NewMemoryLimiter(capacity int, w time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries:  make(map[int64]*window),
		capacity: capacity,
		window:   w,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Tests use it to step through windows.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, userID int64) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok || now.Sub(e.start) >= l.window {
		l.entries[userID] = &window{count: 1, start: now}
		return true
	}
	e.count++
	return e.count <= l.capacity
}

// Prune drops windows that have already elapsed and returns how many were removed.
func (l *MemoryLimiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		if now.Sub(e.start) >= l.window {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}
