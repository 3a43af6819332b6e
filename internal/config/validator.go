package config

import (
	"fmt"
	"strings"
	"time"

	"safetyrelay/pkg/cel"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateTelemetry(cfg.Telemetry); err != nil {
		errors = append(errors, err)
	}

	if err := validateWindow(cfg.Window); err != nil {
		errors = append(errors, err)
	}

	if err := validateMedia(cfg.Media); err != nil {
		errors = append(errors, err)
	}

	if err := validateTransport(cfg.Transport, cfg.DryRun); err != nil {
		errors = append(errors, err)
	}

	if err := validateScheduler(cfg.Scheduler); err != nil {
		errors = append(errors, err)
	}

	if err := validateFiltering(cfg.Filtering); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateTelemetry(cfg TelemetryConfig) error {
	if cfg.BaseURL == "" {
		return &ValidationError{
			Field:   "telemetry.base_url",
			Message: "telemetry base URL is required",
		}
	}

	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return &ValidationError{
			Field:   "telemetry.base_url",
			Message: "telemetry base URL must start with http:// or https://",
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "telemetry.timeout",
			Message: "timeout must be positive",
		}
	}

	if cfg.ChunkSize < 1 {
		return &ValidationError{
			Field:   "telemetry.chunk_size",
			Message: fmt.Sprintf("chunk size must be at least 1, got %d", cfg.ChunkSize),
		}
	}

	if cfg.MaxPages < 1 {
		return &ValidationError{
			Field:   "telemetry.max_pages",
			Message: fmt.Sprintf("max pages must be at least 1, got %d", cfg.MaxPages),
		}
	}

	if cfg.ChunkConcurrency < 1 {
		return &ValidationError{
			Field:   "telemetry.chunk_concurrency",
			Message: "chunk concurrency must be at least 1",
		}
	}

	if cfg.SafetyLookbackMinutes < 1 {
		return &ValidationError{
			Field:   "telemetry.safety_lookback_minutes",
			Message: "safety lookback must be at least one minute",
		}
	}

	return nil
}

func validateWindow(cfg WindowConfig) error {
	if cfg.WindowHours < 0 || cfg.BufferMinutes < 0 {
		return &ValidationError{
			Field:   "window",
			Message: "window_hours and buffer_minutes must be non-negative",
		}
	}

	if cfg.WindowHours == 0 && cfg.BufferMinutes == 0 {
		return &ValidationError{
			Field:   "window",
			Message: "sliding window cannot be empty",
		}
	}

	prev := 0
	for i, h := range cfg.ExpansionHours {
		if h <= prev {
			return &ValidationError{
				Field:   fmt.Sprintf("window.expansion_hours[%d]", i),
				Message: "expansion steps must be positive and strictly increasing",
			}
		}
		prev = h
	}

	return nil
}

func validateMedia(cfg MediaConfig) error {
	if cfg.ReadyDelayMinutes < 0 {
		return &ValidationError{
			Field:   "media.ready_delay_minutes",
			Message: "ready delay must be non-negative",
		}
	}

	if cfg.MaxWaitMinutes < cfg.ReadyDelayMinutes {
		return &ValidationError{
			Field:   "media.max_wait_minutes",
			Message: "max wait must be greater than or equal to ready delay",
		}
	}

	if cfg.VideoDownloadMaxSizeMB < 1 {
		return &ValidationError{
			Field:   "media.video_download_max_size_mb",
			Message: "download size cap must be at least 1 MB",
		}
	}

	if cfg.VideoDownloadTimeoutMs < 1 {
		return &ValidationError{
			Field:   "media.video_download_timeout_ms",
			Message: "download timeout must be positive",
		}
	}

	if cfg.Archive.Enabled && cfg.Archive.Bucket == "" {
		return &ValidationError{
			Field:   "media.archive.bucket",
			Message: "bucket is required when archiving is enabled",
		}
	}

	return nil
}

func validateTransport(cfg TransportConfig, dryRun bool) error {
	switch cfg.Type {
	case "telegram":
		if cfg.Telegram.BotToken == "" && !dryRun {
			return &ValidationError{
				Field:   "transport.telegram.bot_token",
				Message: "bot token is required unless dry_run is set",
			}
		}
	default:
		return &ValidationError{
			Field:   "transport.type",
			Message: fmt.Sprintf("unknown transport type: %s (supported: telegram)", cfg.Type),
		}
	}

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return &ValidationError{
				Field:   "transport.timezone",
				Message: fmt.Sprintf("unknown timezone: %s", cfg.Timezone),
			}
		}
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RPS <= 0 {
		return &ValidationError{
			Field:   "transport.rate_limit.rps",
			Message: "rps must be positive when rate limiting is enabled",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "transport.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "transport.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	return nil
}

func validateScheduler(cfg SchedulerConfig) error {
	if cfg.IntervalSeconds < 1 {
		return &ValidationError{
			Field:   "scheduler.interval_seconds",
			Message: "tick interval must be at least one second",
		}
	}

	if cfg.RetentionDays < 1 {
		return &ValidationError{
			Field:   "scheduler.retention_days",
			Message: "retention must be at least one day",
		}
	}

	if cfg.HousekeepingInterval <= 0 {
		return &ValidationError{
			Field:   "scheduler.housekeeping_interval",
			Message: "housekeeping interval must be positive",
		}
	}

	return nil
}

func validateFiltering(cfg FilteringConfig) error {
	validOnError := map[string]bool{
		"allow": true, "deny": true,
	}
	if cfg.Fallback.OnError != "" && !validOnError[strings.ToLower(cfg.Fallback.OnError)] {
		return &ValidationError{
			Field:   "filtering.fallback.on_error",
			Message: fmt.Sprintf("invalid on_error value: %s (valid: allow, deny)", cfg.Fallback.OnError),
		}
	}

	if len(cfg.Rules) == 0 {
		return nil
	}
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	for i, rule := range cfg.Rules {
		field := fmt.Sprintf("filtering.rules[%d].expression", i)
		if strings.TrimSpace(rule.Expression) == "" {
			return &ValidationError{Field: field, Message: "expression cannot be empty"}
		}
		if err := evaluator.ValidateFilterExpression(rule.Expression); err != nil {
			return &ValidationError{Field: field, Message: err.Error()}
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return nil
	case "kafka":
		return validateKafka(cfg.Kafka)
	case "nats":
		if cfg.NATS.URL == "" {
			return &ValidationError{
				Field:   "broker.nats.url",
				Message: "NATS URL is required",
			}
		}
		if cfg.NATS.NoticeSubject == "" {
			return &ValidationError{
				Field:   "broker.nats.notice_subject",
				Message: "notice subject is required",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka, nats)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.NoticeTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.notice_topic",
			Message: "notice topic is required",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}
