package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	DryRun         bool `mapstructure:"dry_run"`
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Telemetry      TelemetryConfig
	Window         WindowConfig
	Speeding       SpeedingConfig
	Vehicles       VehiclesConfig
	Filtering      FilteringConfig
	Media          MediaConfig
	Transport      TransportConfig
	Routing        RoutingConfig
	Scheduler      SchedulerConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int             `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration   `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration   `mapstructure:"write_timeout_seconds"`
	DebugRateLimit      RateLimitConfig `mapstructure:"debug_rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"` // "", "kafka", "nats"
	Kafka KafkaConfig `mapstructure:"kafka"`
	NATS  NATSConfig  `mapstructure:"nats"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	NoticeTopic string   `mapstructure:"notice_topic"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	NoticeSubject string `mapstructure:"notice_subject"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	APIToken              string        `mapstructure:"api_token"`
	Timeout               time.Duration `mapstructure:"timeout"`
	SafetyLookbackMinutes int           `mapstructure:"safety_lookback_minutes"`
	SafetyLimit           int           `mapstructure:"safety_limit"`
	MaxPages              int           `mapstructure:"max_pages"`
	ChunkSize             int           `mapstructure:"chunk_size"`
	ChunkConcurrency      int           `mapstructure:"chunk_concurrency"`
}

type WindowConfig struct {
	WindowHours    int   `mapstructure:"window_hours"`
	BufferMinutes  int   `mapstructure:"buffer_minutes"`
	ExpansionHours []int `mapstructure:"expansion_hours"`
}

type SpeedingConfig struct {
	OverThresholdMph float64 `mapstructure:"over_threshold_mph"`
	SeverityTag      string  `mapstructure:"severity_tag"`
}

type VehiclesConfig struct {
	CacheTTL  time.Duration     `mapstructure:"cache_ttl"`
	Overrides []VehicleOverride `mapstructure:"overrides"`
	SharedTTL time.Duration     `mapstructure:"shared_ttl"`
}

type VehicleOverride struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type FilteringConfig struct {
	AllowedKeywords []string       `mapstructure:"allowed_keywords"`
	BlockedKeywords []string       `mapstructure:"blocked_keywords"`
	Rules           []FilterRule   `mapstructure:"rules"`
	Fallback        FallbackConfig `mapstructure:"fallback"`
}

type FilterRule struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
}

type FallbackConfig struct {
	OnError string `mapstructure:"on_error"` // "allow" or "deny" (default: "allow")
}

type MediaConfig struct {
	ReadyDelayMinutes      int           `mapstructure:"ready_delay_minutes"`
	MaxWaitMinutes         int           `mapstructure:"max_wait_minutes"`
	AllowTextWithoutVideo  bool          `mapstructure:"allow_text_without_video"`
	ResolverWindowMinutes  int           `mapstructure:"resolver_window_minutes"`
	VideoDownloadMaxSizeMB int           `mapstructure:"video_download_max_size_mb"`
	VideoDownloadTimeoutMs int           `mapstructure:"video_download_timeout_ms"`
	TempDir                string        `mapstructure:"temp_dir"`
	Archive                ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type TransportConfig struct {
	Type      string          `mapstructure:"type"` // "telegram"
	Timeout   time.Duration   `mapstructure:"timeout"`
	Timezone  string          `mapstructure:"timezone"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

type TelegramConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	BotToken  string `mapstructure:"bot_token"`
	ParseMode string `mapstructure:"parse_mode"`
}

type RoutingConfig struct {
	DefaultChatID int64  `mapstructure:"default_chat_id"`
	Collection    string `mapstructure:"collection"`
}

type SchedulerConfig struct {
	IntervalSeconds      int           `mapstructure:"interval_seconds"`
	HousekeepingInterval time.Duration `mapstructure:"housekeeping_interval"`
	RetentionDays        int           `mapstructure:"retention_days"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}

func (c TelemetryConfig) SafetyLookback() time.Duration {
	return time.Duration(c.SafetyLookbackMinutes) * time.Minute
}

func (c MediaConfig) ReadyDelay() time.Duration {
	return time.Duration(c.ReadyDelayMinutes) * time.Minute
}

func (c MediaConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMinutes) * time.Minute
}

func (c MediaConfig) ResolverWindow() time.Duration {
	return time.Duration(c.ResolverWindowMinutes) * time.Minute
}

func (c MediaConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.VideoDownloadTimeoutMs) * time.Millisecond
}

func (c MediaConfig) DownloadMaxBytes() int64 {
	return int64(c.VideoDownloadMaxSizeMB) * 1024 * 1024
}

func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c SchedulerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
