package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"plansync-backend-go/internal/telemetry"
)

// Metrics records request counts, latency and in-flight requests per route.
// Unmatched routes are reported as "unmatched" to keep label cardinality bounded.
func Metrics(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
