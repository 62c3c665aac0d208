// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type ChannelConfig struct {
	ID int64 `yaml:"id"` // the one managed channel
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SchedulerConfig struct {
	SweepIntervalSeconds     int `yaml:"sweep_interval_seconds"`
	SweepStartupDelaySeconds int `yaml:"sweep_startup_delay_seconds"`
}

func (s SchedulerConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

func (s SchedulerConfig) SweepStartupDelay() time.Duration {
	return time.Duration(s.SweepStartupDelaySeconds) * time.Second
}

type AdminConfig struct {
	Port              int    `yaml:"port"`
	APIKey            string `yaml:"api_key"`
	JWTSecret         string `yaml:"jwt_secret"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

func (a AdminConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// SeedCode is one entry of the externally supplied code -> duration table.
type SeedCode struct {
	Code         string `yaml:"code"`
	DurationDays int    `yaml:"duration_days"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Channel   ChannelConfig   `yaml:"channel"`
	Log       LogConfig       `yaml:"log"`
	Lang      string          `yaml:"lang"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Admin     AdminConfig     `yaml:"admin"`
	Codes     []SeedCode      `yaml:"codes"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Lang == "" {
		cfg.Lang = "ar"
	}
	if cfg.Scheduler.SweepIntervalSeconds <= 0 {
		cfg.Scheduler.SweepIntervalSeconds = 3600
	}
	if cfg.Scheduler.SweepStartupDelaySeconds <= 0 {
		cfg.Scheduler.SweepStartupDelaySeconds = 10
	}
	if cfg.Admin.SessionTTLMinutes <= 0 {
		cfg.Admin.SessionTTLMinutes = 30
	}

	// Minimal validation
	if cfg.Bot.Token == "" && !dev {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Channel.ID == 0 {
		return nil, errors.New("channel.id is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
