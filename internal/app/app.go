package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/support-assistant/internal/bridge/telegram"
	"github.com/yungbote/support-assistant/internal/config"
	supporthttp "github.com/yungbote/support-assistant/internal/http"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Config   *config.Config
	Metrics  *observability.Metrics
	Clients  Clients
	Services Services
	Server   *supporthttp.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Configuration loaded", "env", cfg.Env, "store", cfg.Store.Driver, "completion", cfg.Completion.Provider)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     cfg.Otel.Headers,
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})
	metrics := observability.Init(cfg.Metrics.Enabled)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	services, err := wireServices(log, cfg, clients, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	handlers := wireHandlers(log, services, metrics)
	middleware := wireMiddleware(log, cfg)
	server := wireServer(log, cfg, handlers, middleware, metrics)

	return &App{
		Log:          log,
		Config:       cfg,
		Metrics:      metrics,
		Clients:      clients,
		Services:     services,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP and, when configured, the Telegram bridge until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	a.Metrics.StartServer(ctx, a.Log, a.Config.Metrics.Addr)
	a.Metrics.StartDBCollector(ctx, a.Log, a.Clients.DB)
	if a.Config.Quota.Backend == config.QuotaRedis {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Config.Quota.RedisAddr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.Run(gctx)
	})
	if a.Services.Bridge != nil {
		g.Go(func() error {
			runBridge(gctx, a.Log, a.Services.Bridge)
			return nil
		})
	}
	return g.Wait()
}

// runBridge keeps the bridge alive alongside HTTP. A bridge failure is logged and never
// takes the web chat down with it.
func runBridge(ctx context.Context, log *logger.Logger, b *telegram.Bridge) {
	if err := b.Start(ctx); err != nil {
		log.Error("Telegram bridge not started", "error", err.Error())
		return
	}
	<-ctx.Done()
	b.Stop()
	if err := b.Err(); err != nil {
		log.Warn("Telegram bridge was disabled", "error", err.Error())
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
