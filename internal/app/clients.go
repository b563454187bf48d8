package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/support-assistant/internal/config"
	"github.com/yungbote/support-assistant/internal/modules/support/completion"
	"github.com/yungbote/support-assistant/internal/modules/support/completion/mock"
	"github.com/yungbote/support-assistant/internal/modules/support/quota"
	"github.com/yungbote/support-assistant/internal/platform/db"
	"github.com/yungbote/support-assistant/internal/platform/dialogflow"
	"github.com/yungbote/support-assistant/internal/platform/gcp"
	"github.com/yungbote/support-assistant/internal/platform/logger"
	"github.com/yungbote/support-assistant/internal/platform/openai"
	"github.com/yungbote/support-assistant/internal/platform/sendgrid"
	"github.com/yungbote/support-assistant/internal/platform/telegram"
)

// Clients holds the external connections. Optional integrations stay nil when unconfigured.
type Clients struct {
	DB         *gorm.DB
	Redis      *quota.Redis
	Completer  completion.Completer
	Dialogflow *dialogflow.Client
	Telegram   *telegram.Client
	Bucket     *gcp.Bucket
	Mailer     *sendgrid.AlertMailer
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config) (c Clients, err error) {
	log.Info("Wiring clients...")
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// Store
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "", config.StoreMemory:
	default:
		c.DB, err = db.Open(log, db.Config{
			Driver:       cfg.Store.Driver,
			DSN:          cfg.Store.DSN,
			MaxOpenConns: cfg.Store.MaxOpenConns,
			MaxIdleConns: cfg.Store.MaxIdleConns,
			LogQueries:   cfg.Store.LogQueries,
		})
		if err != nil {
			return c, fmt.Errorf("init %s store: %w", cfg.Store.Driver, err)
		}
	}

	// Redis quota breaker
	if cfg.Quota.Backend == config.QuotaRedis {
		c.Redis, err = quota.NewRedis(log, cfg.Quota.RedisAddr, cfg.Quota.RedisPassword, cfg.Quota.RedisDB, cfg.Quota.RedisKey)
		if err != nil {
			return c, fmt.Errorf("init redis quota breaker: %w", err)
		}
	}

	// Completion provider
	switch cfg.Completion.Provider {
	case config.ProviderOpenAI:
		oc, oerr := openai.NewClient(log, openai.Config{
			APIKey:       cfg.Completion.APIKey,
			BaseURL:      cfg.Completion.BaseURL,
			Organization: cfg.Completion.Organization,
			Timeout:      cfg.Completion.Timeout.Duration,
			MaxRetries:   cfg.Completion.MaxRetries,
		})
		if oerr != nil {
			return c, fmt.Errorf("init openai client: %w", oerr)
		}
		c.Completer = oc
	case config.ProviderMock:
		c.Completer = mock.New()
	default:
		log.Warn("No completion provider configured; replies come from scripted intents and rules only")
	}

	// Dialogflow
	if strings.TrimSpace(cfg.Dialogflow.ProjectID) != "" {
		c.Dialogflow, err = dialogflow.NewClient(ctx, log, dialogflow.Config{
			ProjectID:   cfg.Dialogflow.ProjectID,
			Credentials: cfg.Dialogflow.Credentials,
			Timeout:     cfg.Dialogflow.Timeout.Duration,
			MaxRetries:  cfg.Dialogflow.MaxRetries,
		})
		if err != nil {
			return c, fmt.Errorf("init dialogflow client: %w", err)
		}
	}

	// Telegram
	if cfg.Telegram.Enabled {
		c.Telegram, err = telegram.NewClient(log, &http.Client{
			Timeout: cfg.Telegram.PollTimeout.Duration + 10*time.Second,
		}, cfg.Telegram.BaseURL, cfg.Telegram.Token)
		if err != nil {
			return c, fmt.Errorf("init telegram client: %w", err)
		}
	}

	// Gcs export bucket
	if strings.TrimSpace(cfg.Export.GCS.Bucket) != "" {
		storageCfg, serr := gcp.ResolveObjectStorageConfig(cfg.Export.GCS.Mode, cfg.Export.GCS.EmulatorHost)
		if serr != nil {
			return c, serr
		}
		c.Bucket, err = gcp.NewBucket(ctx, log, gcp.BucketConfig{
			Name:          cfg.Export.GCS.Bucket,
			Prefix:        cfg.Export.GCS.Prefix,
			Credentials:   cfg.Export.GCS.Credentials,
			PublicBaseURL: cfg.Export.GCS.PublicBaseURL,
			Storage:       storageCfg,
		})
		if err != nil {
			return c, fmt.Errorf("init export bucket: %w", err)
		}
	}

	// Alert email
	if len(cfg.Alerts.EmailTo) > 0 {
		sg, serr := sendgrid.New(log, sendgrid.Config{
			APIKey:           cfg.Alerts.SendGrid.APIKey,
			BaseURL:          cfg.Alerts.SendGrid.BaseURL,
			DefaultFromEmail: cfg.Alerts.SendGrid.FromEmail,
			DefaultFromName:  cfg.Alerts.SendGrid.FromName,
			MaxRetries:       2,
		})
		if serr != nil {
			return c, fmt.Errorf("init sendgrid client: %w", serr)
		}
		c.Mailer = sg.AlertMailer(cfg.Alerts.EmailTo)
	}

	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
	if c.Dialogflow != nil {
		_ = c.Dialogflow.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = db.Close(c.DB)
	}
}
