package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://app.example.com"]

database:
  url: "postgres://localhost/guestcomms?sslmode=disable"
  max_open_conns: 40

scheduler:
  tick_interval_seconds: 30
  batch_size: 200
  concurrency: 4
  stale_sending_minutes: 20

delivery:
  mode: sandbox
  ses:
    region: eu-west-1
    from_email: stays@example.com
    from_name: Example Stays
  sms:
    account_sid: AC123
    auth_token: secret
    from: "+15550100"
  whatsapp:
    phone_number_id: "1098"
    access_token: token
  inapp:
    queue_url: https://sqs.eu-west-1.amazonaws.com/123/inapp

logging:
  level: debug
  redact_pii: false
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)

	assert.Equal(t, 30*time.Second, cfg.Scheduler.TickInterval())
	assert.Equal(t, 200, cfg.Scheduler.BatchSize)
	assert.Equal(t, 4, cfg.Scheduler.Concurrency)
	assert.Equal(t, 20*time.Minute, cfg.Scheduler.StaleAge())

	assert.Equal(t, "sandbox", cfg.Delivery.Mode)
	assert.True(t, cfg.Delivery.SES.Enabled())
	assert.Equal(t, "eu-west-1", cfg.Delivery.SES.Region)
	assert.True(t, cfg.Delivery.SMS.Enabled())
	assert.True(t, cfg.Delivery.WhatsApp.Enabled())
	assert.Equal(t, "eu-west-1", cfg.Delivery.InApp.Region)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Redact())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.TickInterval())
	assert.Equal(t, 500, cfg.Scheduler.BatchSize)
	assert.Equal(t, 8, cfg.Scheduler.Concurrency)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.StaleAge())
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.LockTTL())
	assert.Equal(t, "live", cfg.Delivery.Mode)
	assert.Equal(t, "https://api.twilio.com", cfg.Delivery.SMS.BaseURL)
	assert.Equal(t, "v19.0", cfg.Delivery.WhatsApp.APIVersion)
	assert.Equal(t, 10*time.Second, cfg.Delivery.SES.Timeout())
	assert.False(t, cfg.Delivery.SES.Enabled())
	assert.False(t, cfg.Delivery.SMS.Enabled())
	assert.True(t, cfg.Logging.Redact())
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://file"
delivery:
  mode: live
`)

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DELIVERY_MODE", "sandbox")
	t.Setenv("AWS_SES_FROM_EMAIL", "env@example.com")
	t.Setenv("INAPP_SQS_QUEUE_URL", "https://sqs.example/q")
	t.Setenv("SCHEDULER_CONCURRENCY", "16")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "sandbox", cfg.Delivery.Mode)
	assert.Equal(t, "env@example.com", cfg.Delivery.SES.FromEmail)
	assert.Equal(t, "https://sqs.example/q", cfg.Delivery.InApp.QueueURL)
	assert.Equal(t, 16, cfg.Scheduler.Concurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-only")
	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-only", cfg.Database.URL)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}
