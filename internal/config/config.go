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

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"` // per-order settlement lock
}

type WebConfig struct {
	Port             int           `yaml:"port"`
	JWTSecret        string        `yaml:"jwt_secret"`
	OperatorPassword string        `yaml:"operator_password"`
	SecureCookie     bool          `yaml:"secure_cookie"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
}

type BotConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Token       string  `yaml:"token"`
	OperatorIDs []int64 `yaml:"operator_ids"`
	Workers     int     `yaml:"workers"` // polling workers
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileStale    time.Duration `yaml:"reconcile_stale"` // how old an awaiting order must be
	RenewalInterval   time.Duration `yaml:"renewal_interval"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Bot       BotConfig       `yaml:"bot"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 30 * time.Minute
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Scheduler.ReconcileStale <= 0 {
		cfg.Scheduler.ReconcileStale = time.Hour
	}
	if cfg.Scheduler.RenewalInterval <= 0 {
		cfg.Scheduler.RenewalInterval = time.Hour
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Web.JWTSecret == "" {
		return nil, errors.New("web.jwt_secret is required")
	}
	if cfg.Bot.Enabled && cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required when bot.enabled")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
