package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"

	"github.com/andresuchdata/pharmstock/backend-go/internal/monitoring"
)

// RateLimiter holds one token bucket per client IP.
type RateLimiter struct {
	rate     float64
	capacity int64
	clients  map[string]*ratelimit.Bucket
	mu       sync.RWMutex
}

// NewRateLimiter refills rate tokens per second up to capacity.
func NewRateLimiter(rate float64, capacity int64) *RateLimiter {
	return &RateLimiter{
		rate:     rate,
		capacity: capacity,
		clients:  make(map[string]*ratelimit.Bucket),
	}
}

func (rl *RateLimiter) bucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	b, ok := rl.clients[clientIP]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.clients[clientIP]; !ok {
		b = ratelimit.NewBucketWithRate(rl.rate, rl.capacity)
		rl.clients[clientIP] = b
		monitoring.RateLimiterBuckets.Set(float64(len(rl.clients)))
	}
	return b
}

// Cleanup drops the buckets of idle clients, i.e. those back to full.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.clients {
		if b.Available() == b.Capacity() {
			delete(rl.clients, ip)
		}
	}
	monitoring.RateLimiterBuckets.Set(float64(len(rl.clients)))
}

// RunCleanup calls Cleanup every interval until stop is closed.
func (rl *RateLimiter) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// tokenCost prices a request. Workbook exports and imports are the
// expensive ones.
func tokenCost(c *gin.Context) int64 {
	path := c.Request.URL.Path
	switch {
	case path == "/health" || path == "/metrics":
		return 0
	case strings.HasSuffix(path, "/imports") && c.Request.Method == http.MethodPost:
		return 10
	case strings.Contains(path, "/reports/"), strings.HasSuffix(path, "/recompute"):
		return 10
	}
	return 1
}

// Middleware rejects requests of clients that ran out of tokens.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	limit := strconv.FormatInt(rl.capacity, 10)
	rate := strconv.FormatFloat(rl.rate, 'f', -1, 64)
	return func(c *gin.Context) {
		cost := tokenCost(c)
		if cost == 0 {
			c.Next()
			return
		}

		b := rl.bucket(c.ClientIP())
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Rate", rate)

		if b.TakeAvailable(cost) < cost {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again later."})
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
		c.Next()
	}
}
