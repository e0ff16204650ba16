package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateBucket tracks request timestamps for one caller inside the
// current window.
type rateBucket struct {
	times []time.Time
}

// RateLimiter is a fixed-capacity sliding window limiter keyed by API
// key (falling back to client IP for unauthenticated paths).
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
	}
}

// Allow records a request for key and reports whether it fits in the
// window.
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[key]
	if !ok {
		bucket = &rateBucket{}
		r.buckets[key] = bucket
	}

	kept := bucket.times[:0]
	for _, at := range bucket.times {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	bucket.times = kept

	if len(bucket.times) >= r.limit {
		return false
	}
	bucket.times = append(bucket.times, now)
	return true
}

// Middleware rejects over-limit requests with 429.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			key = c.ClientIP()
		}
		if !r.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": APIError{
				Code:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}
		c.Next()
	}
}
