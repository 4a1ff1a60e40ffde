package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/models"
)

var startTime = time.Now()

// HandlePrometheusMetrics exposes the default registry in Prometheus text format
func HandlePrometheusMetrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// HandleSystemMetrics returns system-level metrics for the admin dashboard
func HandleSystemMetrics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		ctx := c.Request.Context()
		var profileCount, analysisCount, activeSubs int64
		dbConnected := false
		if db != nil {
			if sqlDB, err := db.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
				dbConnected = true
			}
			db.WithContext(ctx).Model(&models.Profile{}).Count(&profileCount)
			db.WithContext(ctx).Model(&models.Analysis{}).Count(&analysisCount)
			db.WithContext(ctx).Model(&models.Subscription{}).
				Where("status IN ?", []string{models.SubscriptionActive, models.SubscriptionTrialing}).
				Count(&activeSubs)
		}

		c.JSON(http.StatusOK, gin.H{
			"uptime_seconds":     time.Since(startTime).Seconds(),
			"database_connected": dbConnected,
			"memory": gin.H{
				"alloc_mb":       m.Alloc / 1024 / 1024,
				"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
				"sys_mb":         m.Sys / 1024 / 1024,
				"gc_runs":        m.NumGC,
			},
			"goroutines": runtime.NumGoroutine(),
			"resources": gin.H{
				"profiles":             profileCount,
				"analyses":             analysisCount,
				"active_subscriptions": activeSubs,
			},
			"timestamp": time.Now(),
		})
	}
}
