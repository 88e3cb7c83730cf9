package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	DatabaseDriver          string
	DatabaseDSN             string
	DatabaseMaxOpenConns    int
	DatabaseMaxIdleConns    int
	DatabaseAcquireTimeout  time.Duration
	DatabaseRetryMaxElapsed time.Duration

	Port             string
	MetricsAddr      string
	AuthTokenSecret  string
	DefaultRandomize int

	LogLevel  string
	LogFormat string

	OtelEnabled bool
	OtelStdout  bool

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	TelegramHouseholdID    int64
	AdminTelegramID        int64
}

var supportedDrivers = map[string]bool{"sqlite": true, "postgres": true, "mysql": true}

// NewFromEnv creates a new Config object from environment variables. When
// PLANNER_CONFIG points to a YAML file its values are used beneath the environment.
// Nested keys map to underscored variables: database.max_open_conns is read from
// DATABASE_MAX_OPEN_CONNS.
func NewFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("PLANNER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	driver := strings.ToLower(v.GetString("database.driver"))
	if !supportedDrivers[driver] {
		return nil, fmt.Errorf("DATABASE_DRIVER %q is not supported", driver)
	}

	dsn := v.GetString("database.dsn")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN environment variable not set")
	}

	defaultCount := v.GetInt("default_randomize_count")
	if defaultCount < 0 {
		return nil, fmt.Errorf("DEFAULT_RANDOMIZE_COUNT must not be negative")
	}

	allowed, err := parseIDList(v.GetString("telegram.allowed_user_ids"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}

	return &Config{
		DatabaseDriver:          driver,
		DatabaseDSN:             dsn,
		DatabaseMaxOpenConns:    v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:    v.GetInt("database.max_idle_conns"),
		DatabaseAcquireTimeout:  v.GetDuration("database.acquire_timeout"),
		DatabaseRetryMaxElapsed: v.GetDuration("database.retry_max_elapsed"),
		Port:                    v.GetString("port"),
		MetricsAddr:             v.GetString("metrics_addr"),
		AuthTokenSecret:         v.GetString("auth_token_secret"),
		DefaultRandomize:        defaultCount,
		LogLevel:                v.GetString("log.level"),
		LogFormat:               v.GetString("log.format"),
		OtelEnabled:             v.GetBool("otel.enabled"),
		OtelStdout:              v.GetBool("otel.stdout"),
		TelegramBotToken:        v.GetString("telegram.bot_token"),
		TelegramWebhookURL:      v.GetString("telegram.webhook_url"),
		TelegramAllowedUserIDs:  allowed,
		TelegramHouseholdID:     v.GetInt64("telegram.household_id"),
		AdminTelegramID:         v.GetInt64("telegram.admin_id"),
	}, nil
}

// RequireAuthSecret reports an error when the token secret used to verify household
// identities is missing. Only the HTTP server needs it.
func (c *Config) RequireAuthSecret() error {
	if c.AuthTokenSecret == "" {
		return fmt.Errorf("AUTH_TOKEN_SECRET environment variable not set")
	}
	return nil
}

// RequireTelegram reports an error when the bot cannot be started.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramHouseholdID <= 0 {
		return fmt.Errorf("TELEGRAM_HOUSEHOLD_ID environment variable not set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/planner.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.acquire_timeout", 5*time.Second)
	v.SetDefault("database.retry_max_elapsed", 2*time.Second)
	v.SetDefault("port", "8080")
	v.SetDefault("metrics_addr", "127.0.0.1:9090")
	v.SetDefault("auth_token_secret", "")
	v.SetDefault("default_randomize_count", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.stdout", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.allowed_user_ids", "")
	v.SetDefault("telegram.household_id", 0)
	v.SetDefault("telegram.admin_id", 0)
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
