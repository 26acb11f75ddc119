package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/curriculum-orchestrator/internal/observability"
)

// Metrics records request counts, latency and in-flight requests. Long-lived
// SSE streams are counted but not timed.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		dur := time.Since(start)
		if c.Writer.Header().Get("Content-Type") == "text/event-stream" {
			dur = 0
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), dur)
	}
}
