package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"myautowhiz-backend/pkg/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages token buckets per client IP
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		now:      time.Now,
	}
}

// GetLimiter returns the rate limiter for an IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, exists := i.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.visitors[ip] = v
	}
	v.lastSeen = i.now()
	return v.limiter
}

// Cleanup drops limiters that have been idle longer than maxIdle.
func (i *IPRateLimiter) Cleanup(maxIdle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := i.now().Add(-maxIdle)
	removed := 0
	for ip, v := range i.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(i.visitors, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup prunes idle limiters until stop is closed.
func (i *IPRateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer func() {
			if r := recover(); r != nil {
				utils.CaptureSentryPanic("middleware.IPRateLimiter.StartCleanup", r)
			}
		}()
		for {
			select {
			case <-ticker.C:
				if n := i.Cleanup(interval); n > 0 {
					logrus.WithField("removed", n).Debug("pruned idle rate limiters")
				}
			case <-stop:
				return
			}
		}
	}()
}

// RateLimit rejects clients that exceed their per-IP budget.
func RateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.GetClientIP(c)
		if !limiter.GetLimiter(ip).Allow() {
			retry := 1
			if limiter.rate > 0 {
				retry = int(math.Ceil(1 / float64(limiter.rate)))
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "Too many requests. Please slow down.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
