package internal

import (
	"sync"
	"time"
)

const (
	cleanupEvery  = 100
	cleanupAtSize = 200
)

// RateLimiter is a fixed-window per-IP limiter. It guards the webhook's
// failed-auth path against secret brute-forcing; authenticated deliveries are
// never throttled. State is in-memory only; expired windows are swept inline
// every cleanupEvery requests or whenever the map grows past cleanupAtSize.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	interval time.Duration
	seen     int
}

type window struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter allows limit requests per ip per interval.
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:  make(map[string]*window),
		limit:    limit,
		interval: interval,
	}
}

// Allow reports whether ip has budget left in its current window.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	rl.seen++
	if rl.seen%cleanupEvery == 0 || len(rl.windows) > cleanupAtSize {
		for key, w := range rl.windows {
			if now.After(w.resetAt) {
				delete(rl.windows, key)
			}
		}
	}

	w, ok := rl.windows[ip]
	if !ok || now.After(w.resetAt) {
		rl.windows[ip] = &window{count: 1, resetAt: now.Add(rl.interval)}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}
