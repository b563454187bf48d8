package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/support-assistant/internal/bridge/telegram"
	"github.com/yungbote/support-assistant/internal/config"
	"github.com/yungbote/support-assistant/internal/data/store"
	"github.com/yungbote/support-assistant/internal/modules/support/analyzer"
	"github.com/yungbote/support-assistant/internal/modules/support/completion"
	"github.com/yungbote/support-assistant/internal/modules/support/conversation"
	"github.com/yungbote/support-assistant/internal/modules/support/export"
	"github.com/yungbote/support-assistant/internal/modules/support/quota"
	"github.com/yungbote/support-assistant/internal/modules/support/resolver"
	"github.com/yungbote/support-assistant/internal/modules/support/rules"
	"github.com/yungbote/support-assistant/internal/modules/support/scripted"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type Services struct {
	Store        store.Store
	Breaker      quota.Breaker
	Completion   *completion.Client
	Scripted     *scripted.Client
	Resolver     *resolver.Resolver
	Conversation *conversation.Service
	Exporter     *export.Exporter
	Alerts       *observability.Alerter
	Bridge       *telegram.Bridge
}

func wireServices(log *logger.Logger, cfg *config.Config, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var st store.Store = store.NewMemory()
	if clients.DB != nil {
		st = store.NewGorm(clients.DB, log)
	}

	var breaker quota.Breaker = quota.NewMemory()
	if clients.Redis != nil {
		breaker = clients.Redis
	}

	var detector scripted.Detector
	if clients.Dialogflow != nil {
		detector = clients.Dialogflow
	}
	scriptedClient := scripted.New(log, detector, cfg.Dialogflow.LanguageCode, cfg.Dialogflow.SupportedLanguages...)

	completionClient := completion.New(log, clients.Completer, breaker, completion.Options{
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
	})

	var mailer observability.Mailer
	if clients.Mailer != nil {
		mailer = clients.Mailer
	}
	alerts := observability.NewAlerter(log, cfg.Alerts.WebhookURL, cfg.Alerts.MinInterval.Duration, mailer)

	res := resolver.New(resolver.Deps{
		Log:        log,
		Analyzer:   analyzer.New(analyzer.NewVaderScorer(), analyzer.WithLanguageDetector(analyzer.NewLinguaDetector())),
		Scripted:   scriptedClient,
		Completion: completionClient,
		Rules:      rules.New(rules.Default),
		Tickets:    st,
		Alerts:     alerts,
		Metrics:    metrics,
	})
	conv := conversation.NewService(log, st, res)

	exporter, err := wireExporter(log, cfg, clients, st, metrics)
	if err != nil {
		return Services{}, err
	}

	var bridge *telegram.Bridge
	if clients.Telegram != nil {
		bridge = telegram.New(log, clients.Telegram, conv, metrics, telegram.Options{
			PollTimeout:  cfg.Telegram.PollTimeout.Duration,
			ErrorBackoff: cfg.Telegram.ErrorBackoff.Duration,
			MaxBackoff:   cfg.Telegram.MaxBackoff.Duration,
		})
	}

	return Services{
		Store:        st,
		Breaker:      breaker,
		Completion:   completionClient,
		Scripted:     scriptedClient,
		Resolver:     res,
		Conversation: conv,
		Exporter:     exporter,
		Alerts:       alerts,
		Bridge:       bridge,
	}, nil
}

// wireExporter registers the configured default sink first.
func wireExporter(log *logger.Logger, cfg *config.Config, clients Clients, st store.Store, metrics *observability.Metrics) (*export.Exporter, error) {
	var sinks []export.Sink
	if clients.Bucket != nil {
		sinks = append(sinks, export.NewGCSSink(clients.Bucket))
	} else if cfg.Export.Sink == config.SinkGCS {
		return nil, fmt.Errorf("export sink %q requires export.gcs.bucket", config.SinkGCS)
	}
	if strings.TrimSpace(cfg.Export.Dir) != "" {
		fileSink, err := export.NewFileSink(cfg.Export.Dir)
		if err != nil {
			return nil, fmt.Errorf("init file export sink: %w", err)
		}
		if cfg.Export.Sink == config.SinkGCS {
			sinks = append(sinks, fileSink)
		} else {
			sinks = append([]export.Sink{fileSink}, sinks...)
		}
	}
	return export.New(log, st, metrics, cfg.Export.Platform, sinks...), nil
}
