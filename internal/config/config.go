package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TickToken, when set, must be presented as a bearer token on /internal/tick.
	TickToken string `yaml:"tick_token"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnLifetime returns the max connection lifetime as a duration
func (c DatabaseConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Minute
}

// RedisConfig holds the Redis connection used for the worker tick lock.
// An empty URL falls back to a Postgres advisory lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SchedulerConfig controls the dispatcher tick.
type SchedulerConfig struct {
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`
	BatchSize           int `yaml:"batch_size"`
	Concurrency         int `yaml:"concurrency"`
	StaleSendingMinutes int `yaml:"stale_sending_minutes"`
	LockTTLSeconds      int `yaml:"lock_ttl_seconds"`
}

// TickInterval returns the worker tick interval as a duration
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// StaleAge returns how long a message may stay in sending before the reaper fails it
func (c SchedulerConfig) StaleAge() time.Duration {
	return time.Duration(c.StaleSendingMinutes) * time.Minute
}

// LockTTL returns the distributed tick lock TTL
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// DeliveryConfig selects the delivery mode and holds per-channel transport settings.
// Mode is "live" (unconfigured channels fail) or "sandbox" (unconfigured channels
// succeed without sending).
type DeliveryConfig struct {
	Mode     string         `yaml:"mode"`
	SES      SESConfig      `yaml:"ses"`
	SMS      SMSConfig      `yaml:"sms"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	InApp    InAppConfig    `yaml:"inapp"`
}

// SESConfig holds AWS SES email settings
type SESConfig struct {
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	Region           string `yaml:"region"`
	FromEmail        string `yaml:"from_email"`
	FromName         string `yaml:"from_name"`
	ReplyTo          string `yaml:"reply_to"`
	ConfigurationSet string `yaml:"configuration_set"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// Enabled reports whether the email transport has enough settings to send.
func (c SESConfig) Enabled() bool { return c.FromEmail != "" }

// Timeout returns the per-send timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SMSConfig holds the Twilio-compatible SMS API settings
type SMSConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccountSID     string `yaml:"account_sid"`
	AuthToken      string `yaml:"auth_token"`
	From           string `yaml:"from"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Enabled reports whether the SMS transport has enough settings to send.
func (c SMSConfig) Enabled() bool { return c.AccountSID != "" && c.AuthToken != "" && c.From != "" }

// Timeout returns the HTTP timeout as a duration
func (c SMSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WhatsAppConfig holds WhatsApp Cloud API settings
type WhatsAppConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIVersion     string `yaml:"api_version"`
	PhoneNumberID  string `yaml:"phone_number_id"`
	AccessToken    string `yaml:"access_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Enabled reports whether the WhatsApp transport has enough settings to send.
func (c WhatsAppConfig) Enabled() bool { return c.PhoneNumberID != "" && c.AccessToken != "" }

// Timeout returns the HTTP timeout as a duration
func (c WhatsAppConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InAppConfig holds the SQS queue the host application consumes in-app messages from
type InAppConfig struct {
	QueueURL       string `yaml:"queue_url"`
	Region         string `yaml:"region"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the publish timeout as a duration
func (c InAppConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. Defaults to true.
func (c LoggingConfig) Redact() bool { return c.RedactPII == nil || *c.RedactPII }

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Scheduler.TickIntervalSeconds == 0 {
		cfg.Scheduler.TickIntervalSeconds = 60
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 500
	}
	if cfg.Scheduler.Concurrency == 0 {
		cfg.Scheduler.Concurrency = 8
	}
	if cfg.Scheduler.StaleSendingMinutes == 0 {
		cfg.Scheduler.StaleSendingMinutes = 15
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 120
	}
	if cfg.Delivery.Mode == "" {
		cfg.Delivery.Mode = "live"
	}
	if cfg.Delivery.SES.Region == "" {
		cfg.Delivery.SES.Region = "us-east-1"
	}
	if cfg.Delivery.SES.TimeoutSeconds == 0 {
		cfg.Delivery.SES.TimeoutSeconds = 10
	}
	if cfg.Delivery.SMS.BaseURL == "" {
		cfg.Delivery.SMS.BaseURL = "https://api.twilio.com"
	}
	if cfg.Delivery.SMS.TimeoutSeconds == 0 {
		cfg.Delivery.SMS.TimeoutSeconds = 10
	}
	if cfg.Delivery.WhatsApp.BaseURL == "" {
		cfg.Delivery.WhatsApp.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Delivery.WhatsApp.APIVersion == "" {
		cfg.Delivery.WhatsApp.APIVersion = "v19.0"
	}
	if cfg.Delivery.WhatsApp.TimeoutSeconds == 0 {
		cfg.Delivery.WhatsApp.TimeoutSeconds = 10
	}
	if cfg.Delivery.InApp.TimeoutSeconds == 0 {
		cfg.Delivery.InApp.TimeoutSeconds = 5
	}
	if cfg.Delivery.InApp.Region == "" {
		cfg.Delivery.InApp.Region = cfg.Delivery.SES.Region
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// An empty path skips the YAML file and starts from defaults.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = &Config{}
		applyDefaults(cfg)
	} else {
		var err error
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	}

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.TickToken, "TICK_TOKEN")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	setInt(&cfg.Scheduler.TickIntervalSeconds, "SCHEDULER_TICK_INTERVAL_SECONDS")
	setInt(&cfg.Scheduler.BatchSize, "SCHEDULER_BATCH_SIZE")
	setInt(&cfg.Scheduler.Concurrency, "SCHEDULER_CONCURRENCY")

	setString(&cfg.Delivery.Mode, "DELIVERY_MODE")

	setString(&cfg.Delivery.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&cfg.Delivery.SES.SecretKey, "AWS_SES_SECRET_KEY")
	setString(&cfg.Delivery.SES.Region, "AWS_SES_REGION")
	setString(&cfg.Delivery.SES.FromEmail, "AWS_SES_FROM_EMAIL")
	setString(&cfg.Delivery.SES.FromName, "AWS_SES_FROM_NAME")

	setString(&cfg.Delivery.SMS.BaseURL, "SMS_BASE_URL")
	setString(&cfg.Delivery.SMS.AccountSID, "SMS_ACCOUNT_SID")
	setString(&cfg.Delivery.SMS.AuthToken, "SMS_AUTH_TOKEN")
	setString(&cfg.Delivery.SMS.From, "SMS_FROM")

	setString(&cfg.Delivery.WhatsApp.BaseURL, "WHATSAPP_BASE_URL")
	setString(&cfg.Delivery.WhatsApp.PhoneNumberID, "WHATSAPP_PHONE_NUMBER_ID")
	setString(&cfg.Delivery.WhatsApp.AccessToken, "WHATSAPP_ACCESS_TOKEN")

	setString(&cfg.Delivery.InApp.QueueURL, "INAPP_SQS_QUEUE_URL")
	setString(&cfg.Delivery.InApp.Region, "INAPP_SQS_REGION")

	setString(&cfg.Logging.Level, "LOG_LEVEL")

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
