package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/pkg/metrics"
)

// Metrics observes per-request latency. The route pattern is used as the path label
// to keep label cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
