package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Interval != time.Hour || !cfg.Scheduler.AlignToBucket {
		t.Fatalf("sweeps should default to the top of every hour: %#v", cfg.Scheduler)
	}
	if cfg.Alerting.ThresholdPct != 5 {
		t.Fatalf("default threshold is 5%%, got %v", cfg.Alerting.ThresholdPct)
	}
	if cfg.Store.Backend != StoreBackendFile || cfg.Store.Path != "data/tracked.json" {
		t.Fatalf("unexpected store defaults: %#v", cfg.Store)
	}
	if cfg.Scheduler.Workers != 4 || cfg.Pricing.MaxRetries != 3 {
		t.Fatalf("unexpected worker/retry defaults: %#v %#v", cfg.Scheduler, cfg.Pricing)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
scheduler:
  interval: 30m
  workers: 2
alerting:
  platform: telegram
  telegram:
    bot_token: abc
store:
  backend: sqlite
  path: /tmp/tracked.db
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CARDWATCHER_SCHEDULER_WORKERS", "8")
	t.Setenv("PRICE_CHANGE_THRESHOLD", "7.5")
	t.Setenv("POKETRACE_API_KEY", "key-1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Interval != 30*time.Minute {
		t.Fatalf("interval from file not applied: %s", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.Workers != 8 {
		t.Fatalf("env should override file, got %d workers", cfg.Scheduler.Workers)
	}
	if cfg.Alerting.ThresholdPct != 7.5 {
		t.Fatalf("legacy PRICE_CHANGE_THRESHOLD not honoured: %v", cfg.Alerting.ThresholdPct)
	}
	if cfg.Pricing.APIKey != "key-1" {
		t.Fatalf("legacy POKETRACE_API_KEY not honoured: %q", cfg.Pricing.APIKey)
	}
	if cfg.Store.Backend != StoreBackendSQLite {
		t.Fatalf("store backend not applied: %#v", cfg.Store)
	}
	if err := cfg.RequireNotifier(); err != nil {
		t.Fatalf("telegram token configured, got %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Store:     StoreConfig{Backend: StoreBackendFile, Path: "x.json"},
		Scheduler: SchedulerConfig{Interval: time.Hour, Workers: 1, ItemTimeout: time.Second},
		Alerting:  AlertingConfig{ThresholdPct: 5, Platform: PlatformLog},
		Export:    ExportConfig{ChartWidth: 10, ChartHeight: 10},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	mutations := map[string]func(*Config){
		"negative threshold": func(c *Config) { c.Alerting.ThresholdPct = -1 },
		"zero interval":      func(c *Config) { c.Scheduler.Interval = 0 },
		"zero workers":       func(c *Config) { c.Scheduler.Workers = 0 },
		"unknown backend":    func(c *Config) { c.Store.Backend = "redis" },
		"unknown platform":   func(c *Config) { c.Alerting.Platform = "slack" },
		"empty path":         func(c *Config) { c.Store.Path = "" },
	}
	for name, mutate := range mutations {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRequireNotifier(t *testing.T) {
	cfg := validConfig()
	cfg.Alerting.Platform = PlatformDiscord
	if err := cfg.RequireNotifier(); err == nil {
		t.Fatal("discord without token should fail")
	}
	cfg.Alerting.Discord.BotToken = "t"
	if err := cfg.RequireNotifier(); err != nil {
		t.Fatalf("discord with token: %v", err)
	}
	cfg.Alerting.Platform = PlatformLog
	if err := cfg.RequireNotifier(); err != nil {
		t.Fatalf("log platform needs nothing: %v", err)
	}
}
