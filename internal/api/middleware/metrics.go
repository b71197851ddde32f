package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/pharmstock/backend-go/internal/monitoring"
)

// Metrics records request counts, latency and in-flight requests. Paths
// are labelled by route template to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		monitoring.HTTPRequestInFlight.Inc()
		defer monitoring.HTTPRequestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		monitoring.HTTPRequestTotals.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		monitoring.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
