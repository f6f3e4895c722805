// Package config loads the client configuration.
//
// Values come from, by order of precedence, DELTA_* environment variables, a
// .env file and the defaults. A key "api.url" is read from DELTA_API_URL.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/etnz/delta/fusion"
	"github.com/etnz/delta/session"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the whole client configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Poll    PollConfig    `mapstructure:"poll"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	Pin     PinConfig     `mapstructure:"pin"`
	Log     LogConfig     `mapstructure:"log"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	Store string `mapstructure:"store"` // "file" or "redis"
	File  string `mapstructure:"file"`  // empty for the temp dir.
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// PollConfig is the refresh interval of each feed.
type PollConfig struct {
	Prices        time.Duration `mapstructure:"prices"`
	Stats         time.Duration `mapstructure:"stats"`
	Balance       time.Duration `mapstructure:"balance"`
	Positions     time.Duration `mapstructure:"positions"`
	Notifications time.Duration `mapstructure:"notifications"`
	Chart         time.Duration `mapstructure:"chart"`
}

type WalletConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	CloseDelay  time.Duration `mapstructure:"close_delay"`
	Journal     string        `mapstructure:"journal"` // empty to disable.
}

type PinConfig struct {
	ResetDelay time.Duration `mapstructure:"reset_delay"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var keys = map[string]any{
	"api.url":             "http://localhost:8081/api",
	"api.timeout":         "10s",
	"session.store":       "file",
	"session.file":        "",
	"redis.addr":          "localhost:6379",
	"redis.password":      "",
	"redis.db":            0,
	"redis.key":           "dtc:session",
	"redis.ttl":           "24h",
	"poll.prices":         "1500ms",
	"poll.stats":          "1500ms",
	"poll.balance":        "3s",
	"poll.positions":      "3s",
	"poll.notifications":  "5s",
	"poll.chart":          "1500ms",
	"wallet.settle_delay": "2s",
	"wallet.close_delay":  "2s",
	"wallet.journal":      "wallet.jsonl",
	"pin.reset_delay":     "1s",
	"log.level":           "warn",
}

// Load reads the configuration. envFile is loaded in the environment first,
// if empty ".env" is loaded when it exists.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot load .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("cannot load env file %q: %w", envFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix("DELTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range keys {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("cannot bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Store {
	case "file", "redis":
	default:
		return fmt.Errorf("invalid session.store %q, must be file or redis", c.Session.Store)
	}
	for name, d := range map[string]time.Duration{
		"poll.prices":        c.Poll.Prices,
		"poll.stats":         c.Poll.Stats,
		"poll.balance":       c.Poll.Balance,
		"poll.positions":     c.Poll.Positions,
		"poll.notifications": c.Poll.Notifications,
		"poll.chart":         c.Poll.Chart,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s %v, must be positive", name, d)
		}
	}
	return nil
}

// Logger returns a logger writing to stderr at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}

// Cadence returns the feeds refresh intervals.
func (c *Config) Cadence() fusion.Cadence {
	return fusion.Cadence{
		Prices:        c.Poll.Prices,
		Stats:         c.Poll.Stats,
		Balance:       c.Poll.Balance,
		Positions:     c.Poll.Positions,
		Notifications: c.Poll.Notifications,
		Chart:         c.Poll.Chart,
	}
}

// Store returns the configured session store.
func (c *Config) Store() session.Store {
	if c.Session.Store == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		return session.NewRedisStore(client, c.Redis.Key, c.Redis.TTL)
	}
	return session.NewFileStore(c.Session.File)
}
