package rate

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how much garbage expired windows can accumulate
// between cleanups.
const sweepEvery = 1024

// MemoryLimiter is the single-process fallback used when no redis address
// is configured. It mirrors the redis limiter's semantics: a window opens
// on the first hit for a key and every hit inside it counts against the
// limit, whether or not it was allowed.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*hitWindow
	calls   int
}

type hitWindow struct {
	count   int
	resetAt time.Time
}

func NewMemory(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		windows: map[string]*hitWindow{},
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		for k, w := range l.windows {
			if !now.Before(w.resetAt) {
				delete(l.windows, k)
			}
		}
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &hitWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.limit {
		retryAfter := w.resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}
