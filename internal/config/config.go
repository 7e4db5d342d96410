package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	PlatformWhatsApp = "whatsapp"
	PlatformTelegram = "telegram"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

type WhatsAppConfig struct {
	AuthDir    string `yaml:"auth_dir"`
	DeviceName string `yaml:"device_name"`
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"` // candidate groups; the bot API cannot list chats
	Verbose bool    `yaml:"verbose"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite|postgres
	DSN    string `yaml:"dsn"`    // empty sqlite DSN means <auth_dir>/session.db
}

type LogConfig struct {
	Level    string `yaml:"level"`  // trace|debug|info|warn|error
	Format   string `yaml:"format"` // json|console
	Timezone string `yaml:"timezone"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type Config struct {
	Platform     string         `yaml:"platform"`
	TargetGroup  string         `yaml:"target_group"`
	Retry        RetryConfig    `yaml:"retry"`
	ReadyTimeout time.Duration  `yaml:"ready_timeout"`
	SessionFile  string         `yaml:"session_file"` // metadata of the authenticated account, any platform
	WhatsApp     WhatsAppConfig `yaml:"whatsapp"`
	Telegram     TelegramConfig `yaml:"telegram"`
	Store        StoreConfig    `yaml:"store"`
	Log          LogConfig      `yaml:"log"`
	Metrics      MetricsConfig  `yaml:"metrics"`
	CI           bool           `yaml:"ci"`
}

func Default() Config {
	return Config{
		Platform:     PlatformWhatsApp,
		TargetGroup:  "C-502 Cook Talks",
		Retry:        RetryConfig{MaxAttempts: 3, Delay: 5 * time.Second},
		ReadyTimeout: 3 * time.Minute,
		SessionFile:  "session.json",
		WhatsApp: WhatsAppConfig{
			AuthDir:    ".whatsapp_auth",
			DeviceName: "poll-bot",
		},
		Store:   StoreConfig{Driver: DriverSQLite},
		Log:     LogConfig{Level: "info", Format: "console", Timezone: "Asia/Kolkata"},
		Metrics: MetricsConfig{Job: "pollbot"},
	}
}

// Load reads .env (if present), then the YAML file at path, then applies
// environment overrides on top of the defaults. Overrides run last, before
// validation. A missing file is only an error when required is set.
func Load(path string, required bool, overrides ...func(*Config)) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnv() error {
	c.Platform = getenv("POLLBOT_PLATFORM", c.Platform)
	c.TargetGroup = getenv("POLLBOT_TARGET_GROUP", c.TargetGroup)
	c.WhatsApp.AuthDir = getenv("POLLBOT_AUTH_DIR", c.WhatsApp.AuthDir)
	c.SessionFile = getenv("POLLBOT_SESSION_FILE", c.SessionFile)
	c.Telegram.Token = getenv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
	c.Store.Driver = getenv("POLLBOT_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getenv("POSTGRES_DSN", c.Store.DSN)
	c.Log.Level = getenv("POLLBOT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenv("POLLBOT_LOG_FORMAT", c.Log.Format)
	c.Log.Timezone = getenv("POLLBOT_TIMEZONE", c.Log.Timezone)
	c.Metrics.PushgatewayURL = getenv("POLLBOT_PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)

	if getenv("LOG_VERBOSE", "0") == "1" {
		c.Log.Level = "debug"
		c.Telegram.Verbose = true
	}
	if os.Getenv("GITHUB_ACTIONS") != "" || os.Getenv("CI") != "" {
		c.CI = true
	}

	if v := os.Getenv("POLLBOT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("POLLBOT_MAX_ATTEMPTS: %w", err)
		}
		c.Retry.MaxAttempts = n
	}
	if v := os.Getenv("POLLBOT_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLLBOT_RETRY_DELAY: %w", err)
		}
		c.Retry.Delay = d
	}
	if v := os.Getenv("TELEGRAM_CHAT_IDS"); v != "" {
		ids, err := parseChatIDs(v)
		if err != nil {
			return err
		}
		c.Telegram.ChatIDs = ids
	}
	return nil
}

func parseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_IDS: bad chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) normalize() {
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 3 * time.Minute
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "pollbot"
	}
}

func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformWhatsApp, PlatformTelegram:
	default:
		return fmt.Errorf("platform must be %q or %q, got %q", PlatformWhatsApp, PlatformTelegram, c.Platform)
	}
	if c.TargetGroup == "" {
		return errors.New("target_group is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative, got %s", c.Retry.Delay)
	}
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	if c.Platform == PlatformTelegram {
		if c.Telegram.Token == "" {
			return errors.New("telegram.token (or TELEGRAM_BOT_TOKEN) is required")
		}
		if len(c.Telegram.ChatIDs) == 0 {
			return errors.New("telegram.chat_ids is required")
		}
	}
	if c.Platform == PlatformWhatsApp && c.WhatsApp.AuthDir == "" {
		return errors.New("whatsapp.auth_dir is required")
	}
	return nil
}
