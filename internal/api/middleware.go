// internal/api/middleware.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RateLimiter implements a fixed-window rate limiter keyed by client
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.RWMutex
	now      func() time.Time
}

// Visitor represents a client with rate limiting data
type Visitor struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*Visitor),
		now:      time.Now,
	}
}

// StartCleanup removes expired visitors every interval until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()
}

func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	now := rl.now()
	for key, visitor := range rl.visitors {
		if now.After(visitor.Reset) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Allow checks if a visitor is allowed to make a request
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	visitor, exists := rl.visitors[key]

	if !exists || now.After(visitor.Reset) {
		// New visitor or previous window has expired
		rl.visitors[key] = &Visitor{
			Limit:     limit,
			Remaining: limit - 1,
			Reset:     now.Add(window),
		}
		return true
	}

	if visitor.Remaining <= 0 {
		return false
	}

	visitor.Remaining--
	return true
}

// GetRateLimitHeaders returns limit, remaining and reset (unix seconds)
func (rl *RateLimiter) GetRateLimitHeaders(key string, limit int, window time.Duration) (int, int, int64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	visitor, exists := rl.visitors[key]
	if !exists {
		return limit, limit, rl.now().Add(window).Unix()
	}

	remaining := visitor.Remaining
	if remaining < 0 {
		remaining = 0
	}
	return limit, remaining, visitor.Reset.Unix()
}

// Middleware creates a rate limiting middleware; scope separates buckets of different limits
func (rl *RateLimiter) Middleware(scope string, limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	rh := NewResponseHelper()
	return func(c *gin.Context) {
		key := scope + ":" + keyFunc(c)
		allowed := rl.Allow(key, limit, window)

		limit, remaining, reset := rl.GetRateLimitHeaders(key, limit, window)
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

		if !allowed {
			rh.Error(c, http.StatusTooManyRequests, ErrorRateLimited, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ByIP applies rate limiting based on client IP address
func (rl *RateLimiter) ByIP(scope string, limit int, window time.Duration) gin.HandlerFunc {
	return rl.Middleware(scope, limit, window, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// GenerationRateLimit limits calls that reach the generation backend
func (rl *RateLimiter) GenerationRateLimit() gin.HandlerFunc {
	// 15 requests per minute per IP, the free-tier quota of the default model
	return rl.ByIP("generate", 15, time.Minute)
}

// DefaultRateLimit applies general rate limiting for most API endpoints
func (rl *RateLimiter) DefaultRateLimit() gin.HandlerFunc {
	// 100 requests per minute by IP
	return rl.ByIP("default", 100, time.Minute)
}

// requestIDMiddleware 为每个请求分配ID，优先使用客户端提供的 X-Request-ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// requestLogger 记录请求日志和接口指标
func requestLogger(logger *utils.Logger, metrics *utils.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		status := c.Writer.Status()

		metrics.RecordAPIRequest(route, c.Request.Method, status, duration)

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       route,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"request_id":  c.GetString(requestIDKey),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", fields)
		} else {
			logger.Debug("request handled", fields)
		}
	}
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
