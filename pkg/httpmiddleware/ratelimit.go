package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// KeyFunc extracts the rate limit bucket of a request. An empty key bypasses
// the limiter.
type KeyFunc func(*http.Request) string

// Limiter is a sliding-window counter per key: the previous window's count is
// weighted by how much of it still overlaps the sliding window.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	prev, curr float64
	currStart  time.Time
}

// NewLimiter allows max requests per window and key.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*slidingWindow),
	}
}

// Allow records a request for key if it fits, returning the requests left and
// when the current window ends.
func (l *Limiter) Allow(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	sw, found := l.windows[key]
	if !found {
		sw = &slidingWindow{currStart: now.Truncate(l.window)}
		l.windows[key] = sw
	}
	if elapsed := now.Sub(sw.currStart); elapsed >= l.window {
		sw.prev = sw.curr
		if elapsed >= 2*l.window {
			sw.prev = 0
		}
		sw.curr = 0
		sw.currStart = now.Truncate(l.window)
	}

	overlap := max(0, 1-now.Sub(sw.currStart).Seconds()/l.window.Seconds())
	count := sw.prev*overlap + sw.curr
	reset = sw.currStart.Add(l.window)
	if count >= float64(l.max) {
		return 0, reset, false
	}
	sw.curr++
	return max(0, int(float64(l.max)-count-1)), reset, true
}

// Cleanup drops keys idle for two windows.
func (l *Limiter) Cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, sw := range l.windows {
		if now.Sub(sw.currStart) >= 2*l.window {
			delete(l.windows, key)
		}
	}
}

// RunCleanup calls Cleanup every two windows until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Middleware enforces the limit per key, answering 429 once exhausted. Every
// limited response carries X-RateLimit-* headers.
func (l *Limiter) Middleware(key KeyFunc) Middleware {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			remaining, reset, ok := l.Allow(k)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(0, reset.Sub(l.now()))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by X-Forwarded-For, X-Real-IP or the remote address,
// in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
