package app

import (
	"github.com/yungbote/support-assistant/internal/config"
	supporthttp "github.com/yungbote/support-assistant/internal/http"
	httpH "github.com/yungbote/support-assistant/internal/http/handlers"
	httpMW "github.com/yungbote/support-assistant/internal/http/middleware"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/logger"
	"github.com/yungbote/support-assistant/internal/platform/opsauth"
)

type Middleware struct {
	OpsAuth *httpMW.OpsAuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Chat      *httpH.ChatHandler
	Analytics *httpH.AnalyticsHandler
	Export    *httpH.ExportHandler
	Ops       *httpH.OpsHandler
}

func wireHandlers(log *logger.Logger, services Services, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(services.Store),
		Chat:      httpH.NewChatHandler(services.Conversation),
		Analytics: httpH.NewAnalyticsHandler(services.Store),
		Export:    httpH.NewExportHandler(log, services.Exporter),
		Ops:       httpH.NewOpsHandler(log, services.Breaker, metrics),
	}
}

func wireMiddleware(log *logger.Logger, cfg *config.Config) Middleware {
	log.Info("Wiring middleware...")
	signer := opsauth.NewSigner(cfg.Auth.OpsJWTSecret, cfg.Auth.OpsIssuer)
	if !signer.Enabled() {
		log.Warn("OPS_JWT_SECRET not set; /api/ops endpoints are disabled")
	}
	return Middleware{
		OpsAuth: httpMW.NewOpsAuthMiddleware(log, signer),
	}
}

func wireServer(log *logger.Logger, cfg *config.Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *supporthttp.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return supporthttp.NewServer(log, supporthttp.ServerConfig{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout.Duration,
	}, supporthttp.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       serviceName,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		MaxRequestBytes:   cfg.HTTP.MaxRequestBytes,
		OpsAuthMiddleware: middleware.OpsAuth,
		HealthHandler:     handlers.Health,
		ChatHandler:       handlers.Chat,
		AnalyticsHandler:  handlers.Analytics,
		ExportHandler:     handlers.Export,
		OpsHandler:        handlers.Ops,
	})
}
