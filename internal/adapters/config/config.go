// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Engine     EngineConfig     `envconfig:"ENGINE"`
	Provider   ProviderConfig   `envconfig:"PROVIDER"`
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Webhook    WebhookConfig    `envconfig:"WEBHOOK"`
	Sentiment  SentimentConfig  `envconfig:"SENTIMENT"`
	Retention  RetentionConfig  `envconfig:"RETENTION"`
	Health     HealthConfig     `envconfig:"HEALTH"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// EngineConfig holds scheduler and admission parameters
type EngineConfig struct {
	Symbols        []string      `envconfig:"ENGINE_SYMBOLS" default:"BTCUSDT,ETHUSDT,SOLUSDT,BNBUSDT"`
	Interval       time.Duration `envconfig:"ENGINE_INTERVAL" default:"30s"`
	Concurrency    int           `envconfig:"ENGINE_CONCURRENCY" default:"4"`
	StopTimeout    time.Duration `envconfig:"ENGINE_STOP_TIMEOUT" default:"10s"`
	HeatThreshold  float64       `envconfig:"ENGINE_HEAT_THRESHOLD" default:"30.0"`
	CooldownWindow time.Duration `envconfig:"ENGINE_COOLDOWN_WINDOW" default:"15m"`
	AllowReversals bool          `envconfig:"ENGINE_ALLOW_REVERSALS" default:"true"`
}

// ProviderConfig selects the snapshot provider implementation
type ProviderConfig struct {
	// Kind is one of: rest, websocket, ccxt
	Kind string `envconfig:"PROVIDER_KIND" default:"rest"`
	// StaleAfter bounds websocket cache age
	StaleAfter time.Duration `envconfig:"PROVIDER_STALE_AFTER" default:"2m"`
}

// DatabaseConfig represents Postgres connection parameters
type DatabaseConfig struct {
	Enabled  bool   `envconfig:"DB_ENABLED" default:"false"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"sigflow"`
	User     string `envconfig:"DB_USER" default:"sigflow"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ClickHouseConfig represents the candle history backend
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"market"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
}

// DSN returns the ClickHouse connection string
func (c *ClickHouseConfig) DSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// RedisConfig represents the distributed lock backend
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// TelegramConfig represents Telegram bot configuration
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`
}

// Enabled reports whether telegram delivery is configured
func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

// WebhookConfig represents the webhook alert destination
type WebhookConfig struct {
	URL     string        `envconfig:"WEBHOOK_URL" default:""`
	Timeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	Retries int           `envconfig:"WEBHOOK_RETRIES" default:"2"`
}

// SentimentConfig represents the optional sentiment context source
type SentimentConfig struct {
	Enabled       bool          `envconfig:"SENTIMENT_ENABLED" default:"false"`
	NewsToken     string        `envconfig:"SENTIMENT_NEWS_TOKEN" default:""`
	CacheTTL      time.Duration `envconfig:"SENTIMENT_CACHE_TTL" default:"10m"`
	RefreshEvery  time.Duration `envconfig:"SENTIMENT_REFRESH_EVERY" default:"5m"`
	HeadlineLimit int           `envconfig:"SENTIMENT_HEADLINE_LIMIT" default:"25"`
}

// RetentionConfig controls signal log pruning
type RetentionConfig struct {
	MaxAge        time.Duration `envconfig:"RETENTION_MAX_AGE" default:"168h"`
	PruneInterval time.Duration `envconfig:"RETENTION_PRUNE_INTERVAL" default:"1h"`
	MemoryEntries int           `envconfig:"RETENTION_MEMORY_ENTRIES" default:"10000"`
}

// HealthConfig represents the health/status HTTP server
type HealthConfig struct {
	Port string `envconfig:"HEALTH_PORT" default:"8080"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("at least one symbol must be tracked")
	}
	if c.Engine.Interval < time.Second {
		return fmt.Errorf("engine interval %s too short", c.Engine.Interval)
	}
	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("engine concurrency must be at least 1")
	}
	if c.Engine.HeatThreshold < 0 || c.Engine.HeatThreshold > 100 {
		return fmt.Errorf("heat threshold must be within 0..100")
	}
	if c.Engine.CooldownWindow <= 0 {
		return fmt.Errorf("cooldown window must be positive")
	}

	switch c.Provider.Kind {
	case "rest", "websocket", "ccxt":
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}

	return nil
}
