package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
		Telemetry: TelemetryConfig{
			BaseURL:               "https://api.example.test",
			Timeout:               time.Second,
			SafetyLookbackMinutes: 60,
			MaxPages:              50,
			ChunkSize:             200,
			ChunkConcurrency:      4,
		},
		Window: WindowConfig{WindowHours: 1, BufferMinutes: 5, ExpansionHours: []int{2, 6, 12}},
		Media: MediaConfig{
			ReadyDelayMinutes:      3,
			MaxWaitMinutes:         10,
			VideoDownloadMaxSizeMB: 50,
			VideoDownloadTimeoutMs: 60000,
		},
		Transport: TransportConfig{
			Type:     "telegram",
			Telegram: TelegramConfig{BotToken: "token"},
		},
		Scheduler: SchedulerConfig{IntervalSeconds: 60, HousekeepingInterval: time.Hour, RetentionDays: 7},
	}
}

func TestValidateStatic_Valid(t *testing.T) {
	require.NoError(t, ValidateStatic(validConfig()))
}

func TestValidateStatic_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing base url", func(c *Config) { c.Telemetry.BaseURL = "" }, "telemetry.base_url"},
		{"bad scheme", func(c *Config) { c.Telemetry.BaseURL = "ftp://x" }, "telemetry.base_url"},
		{"zero chunk", func(c *Config) { c.Telemetry.ChunkSize = 0 }, "telemetry.chunk_size"},
		{"non increasing expansion", func(c *Config) { c.Window.ExpansionHours = []int{2, 2} }, "window.expansion_hours[1]"},
		{"giveup before grace", func(c *Config) { c.Media.MaxWaitMinutes = 1 }, "media.max_wait_minutes"},
		{"archive without bucket", func(c *Config) { c.Media.Archive.Enabled = true }, "media.archive.bucket"},
		{"missing token", func(c *Config) { c.Transport.Telegram.BotToken = "" }, "transport.telegram.bot_token"},
		{"unknown transport", func(c *Config) { c.Transport.Type = "smoke" }, "transport.type"},
		{"zero retention", func(c *Config) { c.Scheduler.RetentionDays = 0 }, "scheduler.retention_days"},
		{"bad fallback", func(c *Config) { c.Filtering.Fallback.OnError = "error" }, "filtering.fallback.on_error"},
		{"empty rule", func(c *Config) { c.Filtering.Rules = []FilterRule{{Name: "x"}} }, "filtering.rules[0].expression"},
		{"non bool rule", func(c *Config) {
			c.Filtering.Rules = []FilterRule{{Name: "ok", Expression: "has_video"}, {Name: "x", Expression: "vehicle_name"}}
		}, "filtering.rules[1].expression"},
		{"kafka without topic", func(c *Config) {
			c.Broker.Type = "kafka"
			c.Broker.Kafka.Brokers = []string{"localhost:9092"}
		}, "broker.kafka.notice_topic"},
		{"nats without url", func(c *Config) { c.Broker.Type = "nats" }, "broker.nats.url"},
		{"bad mongo uri", func(c *Config) { c.Database.MongoDB.URI = "http://x" }, "database.mongodb.uri"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateStatic_DryRunWithoutToken(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.Telegram.BotToken = ""
	cfg.DryRun = true
	assert.NoError(t, ValidateStatic(cfg))
}
