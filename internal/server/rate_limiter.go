package server

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window counter keyed by organization.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	startedAt time.Time
	count     int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if key == "" || r.limit <= 0 {
		return false
	}

	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.windows[key]
	if current == nil || now.Sub(current.startedAt) > r.window {
		current = &rateWindow{startedAt: now}
		r.windows[key] = current
	}
	if current.count >= r.limit {
		return false
	}
	current.count++
	return true
}
