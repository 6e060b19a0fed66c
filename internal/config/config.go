package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"card-price-alerts/internal/logging"
)

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// Notification platforms.
const (
	PlatformDiscord  = "discord"
	PlatformTelegram = "telegram"
	PlatformLog      = "log"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StoreConfig selects where tracked items live.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the alert log.
// Leaving DSN empty disables the alert log and the advisory lock.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs sweep cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Workers         int           `mapstructure:"workers"`
	ItemTimeout     time.Duration `mapstructure:"item_timeout"`
}

// PricingConfig captures PokeTrace connectivity.
type PricingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Platform     string         `mapstructure:"platform"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	Discord      DiscordConfig  `mapstructure:"discord"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// DiscordConfig describes the Discord bot used for delivery.
type DiscordConfig struct {
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("CARDWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv imports ./.env without overriding variables already set.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// bindLegacyEnv keeps the variable names of the first release working.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"alerting.discord.bot_token": "DISCORD_TOKEN",
		"pricing.api_key":            "POKETRACE_API_KEY",
		"alerting.threshold_pct":     "PRICE_CHANGE_THRESHOLD",
	}
	for key, env := range legacy {
		canonical := "CARDWATCHER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, canonical, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cardwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("store.backend", StoreBackendFile)
	v.SetDefault("store.path", "data/tracked.json")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x63617264))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.item_timeout", "30s")

	v.SetDefault("pricing.base_url", "https://api.poketrace.com/v1")
	v.SetDefault("pricing.request_timeout", "10s")
	v.SetDefault("pricing.max_retries", 3)
	v.SetDefault("pricing.user_agent", "cardwatcher/1.0")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.threshold_pct", 5.0)
	v.SetDefault("alerting.platform", PlatformDiscord)
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.discord.api_base", "https://discord.com/api/v10")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be greater than zero")
	}
	if c.Scheduler.ItemTimeout <= 0 {
		return fmt.Errorf("scheduler.item_timeout must be greater than zero")
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Pricing.MaxRetries < 0 {
		return fmt.Errorf("pricing.max_retries cannot be negative")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be configured")
	}
	switch strings.ToLower(c.Store.Backend) {
	case StoreBackendFile, StoreBackendSQLite:
	default:
		return fmt.Errorf("store.backend must be %q or %q", StoreBackendFile, StoreBackendSQLite)
	}
	switch strings.ToLower(c.Alerting.Platform) {
	case PlatformDiscord, PlatformTelegram, PlatformLog:
	default:
		return fmt.Errorf("alerting.platform must be one of discord, telegram, log")
	}
	if c.Export.ChartWidth <= 0 || c.Export.ChartHeight <= 0 {
		return fmt.Errorf("export.chart_width and export.chart_height must be greater than zero")
	}
	return nil
}

// RequireNotifier checks the credentials of the configured platform. Only
// commands that deliver alerts call it.
func (c *Config) RequireNotifier() error {
	switch strings.ToLower(c.Alerting.Platform) {
	case PlatformDiscord:
		if c.Alerting.Discord.BotToken == "" {
			return fmt.Errorf("alerting.discord.bot_token 必须配置")
		}
	case PlatformTelegram:
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
	}
	return nil
}

// ResolveThreshold returns the CLI override or the configured threshold.
func (c *Config) ResolveThreshold(override float64) float64 {
	if override > 0 {
		return override
	}
	return c.Alerting.ThresholdPct
}
