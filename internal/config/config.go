package config

import "time"

// Duration accepts "5s"-style strings in YAML.
type Duration struct {
	time.Duration
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

type StoreConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	LogQueries   bool   `yaml:"log_queries"`
}

type DialogflowConfig struct {
	ProjectID    string   `yaml:"project_id"`
	LanguageCode string   `yaml:"language_code"`
	// SupportedLanguages are the agent's languages; a detected language outside the set
	// falls back to LanguageCode.
	SupportedLanguages []string `yaml:"supported_languages"`
	Credentials        string   `yaml:"credentials"`
	Timeout      Duration `yaml:"timeout"`
	MaxRetries   int      `yaml:"max_retries"`
}

type CompletionConfig struct {
	// Provider is "openai", "mock" or "" (disabled).
	Provider     string   `yaml:"provider"`
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	Organization string   `yaml:"organization"`
	Model        string   `yaml:"model"`
	Temperature  float32  `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	Timeout      Duration `yaml:"timeout"`
	MaxRetries   int      `yaml:"max_retries"`
}

type QuotaConfig struct {
	// Backend is "memory" or "redis". Redis shares the tripped state across replicas.
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
}

type TelegramConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	BaseURL      string   `yaml:"base_url"`
	PollTimeout  Duration `yaml:"poll_timeout"`
	ErrorBackoff Duration `yaml:"error_backoff"`
	MaxBackoff   Duration `yaml:"max_backoff"`
}

type GCSExportConfig struct {
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Mode          string `yaml:"mode"`
	EmulatorHost  string `yaml:"emulator_host"`
	PublicBaseURL string `yaml:"public_base_url"`
	Credentials   string `yaml:"credentials"`
}

type ExportConfig struct {
	// Sink is the default for operator exports: "file" or "gcs".
	Sink     string          `yaml:"sink"`
	Dir      string          `yaml:"dir"`
	Platform string          `yaml:"platform"`
	GCS      GCSExportConfig `yaml:"gcs"`
}

type AuthConfig struct {
	OpsJWTSecret string `yaml:"ops_jwt_secret"`
	OpsIssuer    string `yaml:"ops_issuer"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type AlertsConfig struct {
	WebhookURL  string         `yaml:"webhook_url"`
	MinInterval Duration       `yaml:"min_interval"`
	EmailTo     []string       `yaml:"email_to"`
	SendGrid    SendGridConfig `yaml:"sendgrid"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	Env        string           `yaml:"env"`
	Version    string           `yaml:"version"`
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Dialogflow DialogflowConfig `yaml:"dialogflow"`
	Completion CompletionConfig `yaml:"completion"`
	Quota      QuotaConfig      `yaml:"quota"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Export     ExportConfig     `yaml:"export"`
	Auth       AuthConfig       `yaml:"auth"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Otel       OtelConfig       `yaml:"otel"`
}
