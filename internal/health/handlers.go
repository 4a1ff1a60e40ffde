package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/database"
)

var startTime = time.Now()

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker reports liveness and readiness of the API.
type Checker struct {
	db    *gorm.DB
	cache Pinger
}

// NewChecker creates a Checker. cache may be nil when Redis is not configured.
func NewChecker(db *gorm.DB, cache Pinger) *Checker {
	return &Checker{db: db, cache: cache}
}

// HandleHealthCheck returns basic health status
func (h *Checker) HandleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "myautowhiz-api",
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime).String(),
	})
}

// HandleReady reports whether the database and cache answer
func (h *Checker) HandleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbReady := database.Ping(ctx, h.db) == nil
	cacheReady := true
	if h.cache != nil {
		cacheReady = h.cache.Ping(ctx) == nil
	}

	status := http.StatusOK
	if !dbReady || !cacheReady {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"ready":    dbReady && cacheReady,
		"database": dbReady,
		"cache":    cacheReady,
		"service":  "myautowhiz-api",
	})
}
