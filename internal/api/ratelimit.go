package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter grants each client a fixed number of requests per window.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	limit   int
	period  time.Duration
	now     func() time.Time
}

const maxTrackedClients = 1024

type window struct {
	start time.Time
	used  int
}

// NewRateLimiter allows limit requests per client in each period.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Take spends one request from client's budget. When the budget is gone it
// reports false and how long until the window reopens.
func (rl *RateLimiter) Take(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[client]
	if !ok || now.Sub(w.start) >= rl.period {
		if !ok && len(rl.windows) >= maxTrackedClients {
			rl.prune(now)
		}
		w = window{start: now}
	}
	if w.used >= rl.limit {
		return false, w.start.Add(rl.period).Sub(now)
	}
	w.used++
	rl.windows[client] = w
	return true, 0
}

// prune drops windows that have already expired.
func (rl *RateLimiter) prune(now time.Time) {
	for client, w := range rl.windows {
		if now.Sub(w.start) >= rl.period {
			delete(rl.windows, client)
		}
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware answers 429 with Retry-After once a client is over budget.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Take(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			http.Error(w, "intervention rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
