package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 10*time.Second)
	viper.SetDefault("server.write_timeout_seconds", 10*time.Second)
	viper.SetDefault("server.debug_rate_limit.enabled", true)
	viper.SetDefault("server.debug_rate_limit.rps", 1.0)
	viper.SetDefault("server.debug_rate_limit.burst", 3)
	viper.SetDefault("server.debug_rate_limit.cleanup_interval", 300)
	viper.SetDefault("server.debug_rate_limit.max_age", 600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("telemetry.timeout", 30*time.Second)
	viper.SetDefault("telemetry.safety_lookback_minutes", 60)
	viper.SetDefault("telemetry.safety_limit", 200)
	viper.SetDefault("telemetry.max_pages", 50)
	viper.SetDefault("telemetry.chunk_size", 200)
	viper.SetDefault("telemetry.chunk_concurrency", 4)

	viper.SetDefault("window.window_hours", 1)
	viper.SetDefault("window.buffer_minutes", 5)
	viper.SetDefault("window.expansion_hours", []int{2, 6, 12})

	viper.SetDefault("speeding.over_threshold_mph", 15.0)
	viper.SetDefault("speeding.severity_tag", "severe")

	viper.SetDefault("vehicles.cache_ttl", 10*time.Minute)
	viper.SetDefault("vehicles.shared_ttl", time.Hour)

	viper.SetDefault("filtering.fallback.on_error", "allow")

	viper.SetDefault("media.ready_delay_minutes", 3)
	viper.SetDefault("media.max_wait_minutes", 10)
	viper.SetDefault("media.resolver_window_minutes", 5)
	viper.SetDefault("media.video_download_max_size_mb", 50)
	viper.SetDefault("media.video_download_timeout_ms", 60000)

	viper.SetDefault("transport.type", "telegram")
	viper.SetDefault("transport.timeout", 30*time.Second)
	viper.SetDefault("transport.timezone", "UTC")
	viper.SetDefault("transport.telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("transport.telegram.parse_mode", "HTML")
	viper.SetDefault("transport.rate_limit.enabled", true)
	viper.SetDefault("transport.rate_limit.rps", 1.0)
	viper.SetDefault("transport.rate_limit.burst", 5)
	viper.SetDefault("transport.retry.max_attempts", 3)
	viper.SetDefault("transport.retry.initial_interval", time.Second)
	viper.SetDefault("transport.retry.max_interval", 30*time.Second)
	viper.SetDefault("transport.retry.multiplier", 2.0)

	viper.SetDefault("routing.collection", "vehicle_routes")

	viper.SetDefault("scheduler.interval_seconds", 60)
	viper.SetDefault("scheduler.housekeeping_interval", time.Hour)
	viper.SetDefault("scheduler.retention_days", 7)

	viper.SetDefault("database.mongodb.database", "safetyrelay")
}

func bindEnvVariables() {
	viper.BindEnv("dry_run", "DRY_RUN")

	viper.BindEnv("telemetry.base_url", "TELEMETRY_BASE_URL")
	viper.BindEnv("telemetry.api_token", "TELEMETRY_API_TOKEN")

	viper.BindEnv("transport.telegram.bot_token", "TRANSPORT_TELEGRAM_BOT_TOKEN")
	viper.BindEnv("transport.telegram.base_url", "TRANSPORT_TELEGRAM_BASE_URL")
	viper.BindEnv("routing.default_chat_id", "ROUTING_DEFAULT_CHAT_ID")

	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.notice_topic", "BROKER_KAFKA_NOTICE_TOPIC")
	viper.BindEnv("broker.nats.url", "BROKER_NATS_URL")
	viper.BindEnv("broker.nats.notice_subject", "BROKER_NATS_NOTICE_SUBJECT")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("media.archive.bucket", "MEDIA_ARCHIVE_BUCKET")
	viper.BindEnv("media.archive.endpoint", "MEDIA_ARCHIVE_ENDPOINT")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
