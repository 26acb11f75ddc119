package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/curriculum-orchestrator/internal/http/handlers"
	httpMW "github.com/yungbote/curriculum-orchestrator/internal/http/middleware"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware
	TriggerLimiter *httpMW.RateLimiter

	GenerationHandler *httpH.GenerationHandler
	RealtimeHandler   *httpH.RealtimeHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.OptionalAuth())
	}

	// Generation runs
	if cfg.GenerationHandler != nil {
		trigger := []gin.HandlerFunc{}
		if cfg.TriggerLimiter != nil {
			trigger = append(trigger, cfg.TriggerLimiter.Middleware())
		}
		trigger = append(trigger, cfg.GenerationHandler.Trigger)
		api.POST("/generation-runs", trigger...)

		api.GET("/tenants/:id/generation-runs/latest", cfg.GenerationHandler.GetLatest)
		api.GET("/tenants/:id/generation-runs/:run_id", cfg.GenerationHandler.GetRun)
		api.POST("/tenants/:id/generation-runs/:run_id/cancel", cfg.GenerationHandler.CancelRun)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		api.GET("/tenants/:id/generation-runs/stream", cfg.RealtimeHandler.Stream)
	}

	return r
}
