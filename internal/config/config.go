package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DBPath      string `envconfig:"DB_PATH" default:"focusbot.db"`

	// Telegram (optional; the bot starts without Telegram in mgmt-only mode)
	TelegramBotToken   string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramPollSecs   int    `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"30"`
	TelegramAdminUsers string `envconfig:"TELEGRAM_ADMIN_USERS"` // comma-separated user IDs with admin menu access

	// Slack (optional alternative transport)
	SlackBotToken        string `envconfig:"SLACK_BOT_TOKEN"`
	SlackAppToken        string `envconfig:"SLACK_APP_TOKEN"` // xapp- token for Socket Mode
	SlackAllowedChannels string `envconfig:"SLACK_ALLOWED_CHANNELS"`

	// Sessions
	DevCountdown time.Duration `envconfig:"DEV_COUNTDOWN" default:"10s"` // replaces real durations outside production
	AudioCatalog string        `envconfig:"AUDIO_CATALOG"`               // path to YAML catalog of focus music file IDs

	// Workers
	TurnWorkers      int `envconfig:"TURN_WORKERS" default:"4"`
	InboundBuffer    int `envconfig:"INBOUND_BUFFER" default:"256"`
	BroadcastWorkers int `envconfig:"BROADCAST_WORKERS" default:"1"`

	// Management API
	MgmtListenAddr  string `envconfig:"MGMT_LISTEN_ADDR" default:":8090"`
	MgmtAuthMode    string `envconfig:"MGMT_AUTH_MODE"` // none, api-key or jwt; defaults per environment
	MgmtAPIKey      string `envconfig:"MGMT_API_KEY"`
	MgmtJWTSecret   string `envconfig:"MGMT_JWT_SECRET"`
	MgmtCORSOrigins string `envconfig:"MGMT_CORS_ORIGINS"`
}

// IsProduction returns true when running with real activity durations.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// TelegramEnabled returns true if a Telegram bot token is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// SlackEnabled returns true if Slack Socket Mode tokens are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

// AdminUsers parses the comma-separated admin allow-list.
func (c *Config) AdminUsers() []string {
	return splitList(c.TelegramAdminUsers)
}

// SlackChannels parses the comma-separated channel allow-list.
func (c *Config) SlackChannels() []string {
	return splitList(c.SlackAllowedChannels)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	switch c.MgmtAuthMode {
	case "none":
	case "api-key":
		if c.MgmtAPIKey == "" {
			return fmt.Errorf("MGMT_API_KEY is required when MGMT_AUTH_MODE=api-key")
		}
	case "jwt":
		if c.MgmtJWTSecret == "" {
			return fmt.Errorf("MGMT_JWT_SECRET is required when MGMT_AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unknown MGMT_AUTH_MODE %q", c.MgmtAuthMode)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	// The API is open in development and key protected everywhere else,
	// so a fresh checkout runs without any env vars set.
	if cfg.MgmtAuthMode == "" {
		if cfg.IsProduction() {
			cfg.MgmtAuthMode = "api-key"
		} else {
			cfg.MgmtAuthMode = "none"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
