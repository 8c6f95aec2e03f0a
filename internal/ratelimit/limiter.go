package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/veil-waf/veil-edge/internal/kasada"
)

// Bucket defines rate limit parameters.
type Bucket struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultBuckets cover the operator endpoints. Edge traffic is never rate
// limited here; Kasada decides what to block.
var DefaultBuckets = map[string]Bucket{
	"stream":  {MaxRequests: 10, Window: time.Minute},
	"ws":      {MaxRequests: 10, Window: time.Minute},
	"api":     {MaxRequests: 60, Window: time.Minute},
	"metrics": {MaxRequests: 120, Window: time.Minute},
}

// Limiter is an in-memory sliding-window rate limiter per key.
type Limiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// New creates a new rate limiter.
func New() *Limiter {
	return &Limiter{hits: make(map[string][]time.Time), now: time.Now}
}

// Allow checks if a request identified by key is within the rate limit for the
// given bucket. Returns true if allowed.
func (l *Limiter) Allow(key string, bucket Bucket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-bucket.Window)

	times := l.hits[key]
	pruned := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= bucket.MaxRequests {
		l.hits[key] = pruned
		return false
	}

	l.hits[key] = append(pruned, now)
	return true
}

// Sweep drops keys with no hits inside window.
func (l *Limiter) Sweep(window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	for key, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// Middleware rejects requests over the named bucket with 429.
func (l *Limiter) Middleware(bucketName string) func(http.Handler) http.Handler {
	bucket, ok := DefaultBuckets[bucketName]
	if !ok {
		bucket = Bucket{MaxRequests: 60, Window: time.Minute}
	}
	retryAfter := strconv.Itoa(int(bucket.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(bucketName+":"+kasada.ClientIP(r), bucket) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limited","retry_after_seconds":` + retryAfter + `}`))
		})
	}
}
