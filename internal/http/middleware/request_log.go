package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

// quietPaths are polled by probes and scrapers.
var quietPaths = map[string]bool{
	"/healthcheck": true,
	"/metrics":     true,
}

// RequestLogger emits one line per request once the handler chain returns.
// Stream requests are logged when the client disconnects.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		if log == nil || quietPaths[c.Request.URL.Path] {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"elapsed", time.Since(began).String(),
		}
		ctx := c.Request.Context()
		if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
			kv = append(kv, "request_id", td.RequestID, "trace_id", td.TraceID)
		}
		if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
			kv = append(kv, "user_id", rd.UserID)
		}
		for _, p := range []string{"id", "run_id"} {
			if v := c.Param(p); v != "" {
				kv = append(kv, "param_"+p, v)
			}
		}
		if last := c.Errors.Last(); last != nil {
			kv = append(kv, "error", last.Err)
		}

		if status := c.Writer.Status(); status >= 500 {
			log.Error("request failed", kv...)
		} else if status >= 400 {
			log.Warn("request rejected", kv...)
		} else {
			log.Debug("request served", kv...)
		}
	}
}
