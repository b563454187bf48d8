package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/support-assistant/internal/platform/envutil"
	"github.com/yungbote/support-assistant/internal/platform/gcp"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	QuotaMemory = "memory"
	QuotaRedis  = "redis"

	SinkFile = "file"
	SinkGCS  = "gcs"
)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if dd, err := time.ParseDuration(s); err == nil {
		d.Duration = dd
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an int nanoseconds: %q", s)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{5 * time.Second},
			IdleTimeout:       Duration{2 * time.Minute},
			ShutdownTimeout:   Duration{15 * time.Second},
			MaxRequestBytes:   1 << 20,
			CORSOrigins:       []string{"*"},
		},
		Store: StoreConfig{Driver: StoreMemory, MaxOpenConns: 10, MaxIdleConns: 5},
		Dialogflow: DialogflowConfig{
			LanguageCode: "en",
			Timeout:      Duration{10 * time.Second},
			MaxRetries:   1,
		},
		Completion: CompletionConfig{
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   300,
			Timeout:     Duration{30 * time.Second},
			MaxRetries:  1,
		},
		Quota: QuotaConfig{Backend: QuotaMemory, RedisKey: "support:quota:completion"},
		Telegram: TelegramConfig{
			PollTimeout:  Duration{30 * time.Second},
			ErrorBackoff: Duration{5 * time.Second},
			MaxBackoff:   Duration{60 * time.Second},
		},
		Export: ExportConfig{Sink: SinkFile, Dir: "./exports", Platform: "support-assistant"},
		Alerts: AlertsConfig{MinInterval: Duration{10 * time.Minute}},
		Metrics: MetricsConfig{Addr: ":9090"},
		Otel: OtelConfig{ServiceName: "support-assistant", SampleRatio: 1},
	}
}

// Load reads defaults, then the YAML file at SUPPORT_CONFIG_PATH (or ./config/config.yaml
// when present), then environment overrides, and validates the result.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("SUPPORT_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.Version = envutil.String("APP_VERSION", cfg.Version)
	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if v := envutil.String("CORS_ORIGINS", ""); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	cfg.Store.Driver = envutil.String("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = envutil.String("STORE_DSN", cfg.Store.DSN)

	cfg.Dialogflow.ProjectID = envutil.String("DIALOGFLOW_PROJECT_ID", cfg.Dialogflow.ProjectID)
	cfg.Dialogflow.LanguageCode = envutil.String("DIALOGFLOW_LANGUAGE_CODE", cfg.Dialogflow.LanguageCode)
	if v := envutil.String("DIALOGFLOW_SUPPORTED_LANGUAGES", ""); v != "" {
		cfg.Dialogflow.SupportedLanguages = splitList(v)
	}
	cfg.Dialogflow.Credentials = envutil.String("GOOGLE_APPLICATION_CREDENTIALS", cfg.Dialogflow.Credentials)

	cfg.Completion.APIKey = envutil.String("OPENAI_API_KEY", cfg.Completion.APIKey)
	cfg.Completion.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.Completion.BaseURL)
	cfg.Completion.Model = envutil.String("OPENAI_MODEL", cfg.Completion.Model)
	cfg.Completion.Provider = envutil.String("COMPLETION_PROVIDER", cfg.Completion.Provider)
	if cfg.Completion.Provider == "" && cfg.Completion.APIKey != "" {
		cfg.Completion.Provider = ProviderOpenAI
	}

	cfg.Quota.Backend = envutil.String("QUOTA_BACKEND", cfg.Quota.Backend)
	cfg.Quota.RedisAddr = envutil.String("REDIS_ADDR", cfg.Quota.RedisAddr)
	cfg.Quota.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.Quota.RedisPassword)

	cfg.Telegram.Token = envutil.String("TELEGRAM_BOT_TOKEN", cfg.Telegram.Token)
	cfg.Telegram.Enabled = envutil.Bool("TELEGRAM_ENABLED", cfg.Telegram.Enabled)
	cfg.Telegram.PollTimeout.Duration = envutil.Duration("TELEGRAM_POLL_TIMEOUT", cfg.Telegram.PollTimeout.Duration)

	cfg.Export.Sink = envutil.String("EXPORT_SINK", cfg.Export.Sink)
	cfg.Export.Dir = envutil.String("EXPORT_DIR", cfg.Export.Dir)
	cfg.Export.GCS.Bucket = envutil.String("EXPORT_GCS_BUCKET", cfg.Export.GCS.Bucket)
	cfg.Export.GCS.Mode = envutil.String("OBJECT_STORAGE_MODE", cfg.Export.GCS.Mode)
	cfg.Export.GCS.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Export.GCS.EmulatorHost)

	cfg.Auth.OpsJWTSecret = envutil.String("OPS_JWT_SECRET", cfg.Auth.OpsJWTSecret)
	cfg.Alerts.WebhookURL = envutil.String("ALERT_WEBHOOK_URL", cfg.Alerts.WebhookURL)
	if v := strings.TrimSpace(os.Getenv("ALERT_EMAIL_TO")); v != "" {
		cfg.Alerts.EmailTo = splitList(v)
	}
	cfg.Alerts.SendGrid.APIKey = envutil.String("SENDGRID_API_KEY", cfg.Alerts.SendGrid.APIKey)
	cfg.Alerts.SendGrid.BaseURL = envutil.String("SENDGRID_BASE_URL", cfg.Alerts.SendGrid.BaseURL)
	cfg.Alerts.SendGrid.FromEmail = envutil.String("SENDGRID_FROM_EMAIL", cfg.Alerts.SendGrid.FromEmail)
	cfg.Alerts.SendGrid.FromName = envutil.String("SENDGRID_FROM_NAME", cfg.Alerts.SendGrid.FromName)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Otel.SampleRatio)
}

// Validate normalises enum fields and rejects combinations that cannot start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.MaxRequestBytes <= 0 {
		c.HTTP.MaxRequestBytes = 1 << 20
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", StoreMemory:
		c.Store.Driver = StoreMemory
	case StoreSQLite, StorePostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.driver=%q requires store.dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("invalid store.driver=%q (allowed: memory, sqlite, postgres)", c.Store.Driver)
	}

	c.Completion.Provider = strings.ToLower(strings.TrimSpace(c.Completion.Provider))
	switch c.Completion.Provider {
	case "", ProviderMock:
	case ProviderOpenAI:
		if strings.TrimSpace(c.Completion.APIKey) == "" {
			return errors.New("completion.provider=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("invalid completion.provider=%q (allowed: openai, mock)", c.Completion.Provider)
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return fmt.Errorf("invalid completion.temperature=%v", c.Completion.Temperature)
	}
	if c.Completion.MaxRetries < 0 || c.Dialogflow.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}

	c.Quota.Backend = strings.ToLower(strings.TrimSpace(c.Quota.Backend))
	switch c.Quota.Backend {
	case "", QuotaMemory:
		c.Quota.Backend = QuotaMemory
	case QuotaRedis:
		if strings.TrimSpace(c.Quota.RedisAddr) == "" {
			return errors.New("quota.backend=redis requires quota.redis_addr")
		}
	default:
		return fmt.Errorf("invalid quota.backend=%q (allowed: memory, redis)", c.Quota.Backend)
	}

	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.enabled requires TELEGRAM_BOT_TOKEN")
	}

	c.Export.Sink = strings.ToLower(strings.TrimSpace(c.Export.Sink))
	switch c.Export.Sink {
	case "", SinkFile:
		c.Export.Sink = SinkFile
		if strings.TrimSpace(c.Export.Dir) == "" {
			return errors.New("export.sink=file requires export.dir")
		}
	case SinkGCS:
		if strings.TrimSpace(c.Export.GCS.Bucket) == "" {
			return errors.New("export.sink=gcs requires export.gcs.bucket")
		}
		if _, err := gcp.ResolveObjectStorageConfig(c.Export.GCS.Mode, c.Export.GCS.EmulatorHost); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid export.sink=%q (allowed: file, gcs)", c.Export.Sink)
	}

	if len(c.Alerts.EmailTo) > 0 && strings.TrimSpace(c.Alerts.SendGrid.APIKey) == "" {
		return errors.New("alerts.email_to requires SENDGRID_API_KEY")
	}

	if c.Otel.SampleRatio < 0 || c.Otel.SampleRatio > 1 {
		return fmt.Errorf("invalid otel.sample_ratio=%v", c.Otel.SampleRatio)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
