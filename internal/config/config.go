// Package config handles application configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string `env:"DATABASE_PATH, default=./data/feedmixer.db"`
	HTTPPort     int    `env:"HTTP_PORT, default=8080"`
	LogLevel     string `env:"LOG_LEVEL, default=info"`
	// Which format to use for logging: either text or json
	LogFormat   string `env:"LOG_FORMAT, default=text"`
	Environment string `env:"ENVIRONMENT, default=dev"`
	AppName     string `env:"APP_NAME, default=feedmixer"`
	AppVersion  string `env:"APP_VERSION, default=0.1.0"`
	CORSOrigin  string `env:"CORS_ORIGIN, default=*"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS, default=100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW, default=60s"`
	RateLimitExclude  []string      `env:"RATE_LIMIT_EXCLUDE, default=/health"`

	FeedMaxAgeMinutes int           `env:"FEED_MAX_AGE_MINUTES, default=60"`
	SchedulerTick     time.Duration `env:"SCHEDULER_TICK, default=1m"`
	ConditionLogic    string        `env:"CONDITION_LOGIC, default=all"`

	// Empty disables the Telegram bot.
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers     UserIDs `env:"ALLOWED_USERS"`
}

// UserIDs is a comma separated list of Telegram user ids.
type UserIDs []int64

// EnvDecode implements envconfig.Decoder. Blank entries are skipped.
func (u *UserIDs) EnvDecode(val string) error {
	var ids UserIDs
	for _, s := range strings.Split(val, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user ID %q: %w", s, err)
		}
		ids = append(ids, uid)
	}
	*u = ids
	return nil
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	oneOf := func(name, val string, allowed ...string) error {
		if !slices.Contains(allowed, strings.ToLower(val)) {
			return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), val)
		}
		return nil
	}

	if err := oneOf("LOG_LEVEL", c.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("LOG_FORMAT", c.LogFormat, "text", "json"); err != nil {
		return err
	}
	if err := oneOf("CONDITION_LOGIC", c.ConditionLogic, "all", "chain"); err != nil {
		return err
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.FeedMaxAgeMinutes <= 0 {
		return fmt.Errorf("FEED_MAX_AGE_MINUTES must be positive, got %d", c.FeedMaxAgeMinutes)
	}
	if c.SchedulerTick <= 0 {
		return fmt.Errorf("SCHEDULER_TICK must be positive, got %s", c.SchedulerTick)
	}
	return nil
}

// BotEnabled reports whether a Telegram token is configured.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}
