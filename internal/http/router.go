package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/support-assistant/internal/http/handlers"
	httpMW "github.com/yungbote/support-assistant/internal/http/middleware"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	Metrics         *observability.Metrics
	ServiceName     string
	CORSOrigins     []string
	MaxRequestBytes int64

	OpsAuthMiddleware *httpMW.OpsAuthMiddleware

	HealthHandler    *httpH.HealthHandler
	ChatHandler      *httpH.ChatHandler
	AnalyticsHandler *httpH.AnalyticsHandler
	ExportHandler    *httpH.ExportHandler
	OpsHandler       *httpH.OpsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(httpMW.Recovery(cfg.Log))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, httpMW.DefaultUnmeteredRoutes...))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.MaxRequestBytes > 0 {
		r.Use(limitBody(cfg.MaxRequestBytes))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.ReadyCheck)
	}

	api := r.Group("/api")
	{
		// Chat (public)
		if cfg.ChatHandler != nil {
			api.GET("/chat/quick-actions", cfg.ChatHandler.ListQuickActions)
			api.POST("/chat/sessions", cfg.ChatHandler.CreateSession)
			api.GET("/chat/sessions/:id", cfg.ChatHandler.GetSession)
			api.POST("/chat/sessions/:id/messages", cfg.ChatHandler.SendMessage)
			api.POST("/chat/sessions/:id/quick/:action", cfg.ChatHandler.QuickAction)
		}

		// Analytics
		if cfg.AnalyticsHandler != nil {
			api.GET("/analytics", cfg.AnalyticsHandler.Summary)
			api.GET("/tickets", cfg.AnalyticsHandler.Tickets)
		}

		if cfg.ExportHandler != nil {
			api.GET("/export", cfg.ExportHandler.Download)
		}
	}

	ops := api.Group("/ops")
	{
		if cfg.OpsAuthMiddleware != nil {
			ops.Use(cfg.OpsAuthMiddleware.RequireOperator())
		}

		// Quota breaker
		if cfg.OpsHandler != nil {
			ops.GET("/quota", cfg.OpsHandler.QuotaStatus)
			ops.POST("/quota/reset", cfg.OpsHandler.QuotaReset)
		}

		// Export sinks
		if cfg.ExportHandler != nil {
			ops.GET("/export/sinks", cfg.ExportHandler.Sinks)
			ops.POST("/export", cfg.ExportHandler.Write)
		}
	}

	return r
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
