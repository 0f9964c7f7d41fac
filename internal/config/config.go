/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file, providing a centralized and straightforward way to manage settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultServerPort                 = "8080"
	defaultJWTTTLHours                = 24
	defaultLockTimeoutMS              = 5000
	defaultRedisRateLimitPrefix       = "fundtransfer:rate_limit"
	defaultTransferRateLimitPerMinute = 30
	defaultLoginRateLimitPerMinute    = 10
	defaultEventsExchange             = "fundtransfer.events"
	defaultOutboxPollIntervalMS       = 1200
	defaultOutboxRetentionHours       = 72
	defaultOutboxPurgeSchedule        = "@hourly"
	defaultBalanceSnapshotSchedule    = "*/5 * * * *"
	defaultAppEnv                     = "production"
	defaultLogLevel                   = "info"
	defaultCORSAllowedOrigins         = "*"
	developmentJWTSecret              = "fundtransfer-development-secret"
)

// Config holds all the configuration variables for the fund-transfer service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	JWTTTLHours                int    `mapstructure:"JWT_TTL_HOURS"`
	LockTimeoutMS              int    `mapstructure:"LOCK_TIMEOUT_MS"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	LoginRateLimitPerMinute    int    `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	EventsExchange             string `mapstructure:"EVENTS_EXCHANGE"`
	OutboxPollIntervalMS       int    `mapstructure:"OUTBOX_POLL_INTERVAL_MS"`
	OutboxRetentionHours       int    `mapstructure:"OUTBOX_RETENTION_HOURS"`
	OutboxPurgeSchedule        string `mapstructure:"OUTBOX_PURGE_SCHEDULE"`
	BalanceSnapshotSchedule    string `mapstructure:"BALANCE_SNAPSHOT_SCHEDULE"`
	AppEnv                     string `mapstructure:"APP_ENV"`
	LogLevel                   string `mapstructure:"LOG_LEVEL"`
	CORSAllowedOrigins         string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in the given path.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("JWT_TTL_HOURS", defaultJWTTTLHours)
	viper.SetDefault("LOCK_TIMEOUT_MS", defaultLockTimeoutMS)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRedisRateLimitPrefix)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", defaultTransferRateLimitPerMinute)
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", defaultLoginRateLimitPerMinute)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("OUTBOX_POLL_INTERVAL_MS", defaultOutboxPollIntervalMS)
	viper.SetDefault("OUTBOX_RETENTION_HOURS", defaultOutboxRetentionHours)
	viper.SetDefault("OUTBOX_PURGE_SCHEDULE", defaultOutboxPurgeSchedule)
	viper.SetDefault("BALANCE_SNAPSHOT_SCHEDULE", defaultBalanceSnapshotSchedule)
	viper.SetDefault("APP_ENV", defaultAppEnv)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOrigins)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_HOURS")
	_ = viper.BindEnv("LOCK_TIMEOUT_MS")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("LOGIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("OUTBOX_POLL_INTERVAL_MS")
	_ = viper.BindEnv("OUTBOX_RETENTION_HOURS")
	_ = viper.BindEnv("OUTBOX_PURGE_SCHEDULE")
	_ = viper.BindEnv("BALANCE_SNAPSHOT_SCHEDULE")
	_ = viper.BindEnv("APP_ENV")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.ServerPort = strings.TrimPrefix(strings.TrimSpace(config.ServerPort), ":")
	if config.ServerPort == "" {
		config.ServerPort = defaultServerPort
	}

	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.AppEnv = strings.ToLower(strings.TrimSpace(config.AppEnv))
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))

	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRedisRateLimitPrefix
	}
	config.EventsExchange = strings.TrimSpace(config.EventsExchange)
	if config.EventsExchange == "" {
		config.EventsExchange = defaultEventsExchange
	}

	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	if config.JWTSecret == "" && config.IsDevelopment() {
		log.Println("level=warn component=config msg=\"JWT_SECRET not set; using an insecure development secret\"")
		config.JWTSecret = developmentJWTSecret
	}

	config.JWTTTLHours = positiveOrDefault("JWT_TTL_HOURS", config.JWTTTLHours, defaultJWTTTLHours)
	config.LockTimeoutMS = positiveOrDefault("LOCK_TIMEOUT_MS", config.LockTimeoutMS, defaultLockTimeoutMS)
	config.OutboxPollIntervalMS = positiveOrDefault("OUTBOX_POLL_INTERVAL_MS", config.OutboxPollIntervalMS, defaultOutboxPollIntervalMS)
	config.OutboxRetentionHours = positiveOrDefault("OUTBOX_RETENTION_HOURS", config.OutboxRetentionHours, defaultOutboxRetentionHours)

	// Zero disables a rate limit scope; only negative values are invalid.
	if config.TransferRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative transfer rate limit configured; disabling\" value=%d", config.TransferRateLimitPerMinute)
		config.TransferRateLimitPerMinute = 0
	}
	if config.LoginRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative login rate limit configured; disabling\" value=%d", config.LoginRateLimitPerMinute)
		config.LoginRateLimitPerMinute = 0
	}

	return
}

func positiveOrDefault(key string, value, fallback int) int {
	if value > 0 {
		return value
	}
	log.Printf("level=warn component=config msg=\"non-positive value configured; using default\" key=%s value=%d default=%d", key, value, fallback)
	return fallback
}

// IsDevelopment reports whether the service runs in a local or development environment.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "local"
}

func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMS) * time.Millisecond
}

func (c Config) OutboxRetention() time.Duration {
	return time.Duration(c.OutboxRetentionHours) * time.Hour
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{defaultCORSAllowedOrigins}
	}
	return origins
}
