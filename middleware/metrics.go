package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studyai-platform/internal/telemetry"
)

// MetricsMiddleware records request count and latency per route
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
