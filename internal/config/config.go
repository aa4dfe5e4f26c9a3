// Package config loads planner settings from defaults, an optional YAML
// file and PLANNER_ environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"daily-planner/internal/logging"
)

const EnvPrefix = "PLANNER_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Markers   MarkerConfig    `koanf:"markers"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Push      PushConfig      `koanf:"push"`
	Log       logging.Config  `koanf:"log"`
}

type ServerConfig struct {
	Addr      string `koanf:"addr"`
	TLSAddr   string `koanf:"tls_addr"`
	TLSCert   string `koanf:"tls_cert"`
	TLSKey    string `koanf:"tls_key"`
	StaticDir string `koanf:"static_dir"`
}

type StorageConfig struct {
	Type       string `koanf:"type"` // memory, file, sqlite or mongo
	UsersFile  string `koanf:"users_file"`
	PlansFile  string `koanf:"plans_file"`
	SQLitePath string `koanf:"sqlite_path"`
	MongoURI   string `koanf:"mongo_uri"`
	MongoDB    string `koanf:"mongo_db"`
}

type MarkerConfig struct {
	Type          string        `koanf:"type"` // memory, file or redis
	File          string        `koanf:"file"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	TTL           time.Duration `koanf:"ttl"`
}

type SchedulerConfig struct {
	Interval         time.Duration `koanf:"interval"`
	WindowPastDays   int           `koanf:"window_past_days"`
	WindowFutureDays int           `koanf:"window_future_days"`
	CatchUpMissed    bool          `koanf:"catch_up_missed"`
	FetchTimeout     time.Duration `koanf:"fetch_timeout"`
	FetchConcurrency int           `koanf:"fetch_concurrency"`
	AlertDelay       time.Duration `koanf:"alert_delay"`
	WriteBack        string        `koanf:"write_back"` // patch or replace
	Timezone         string        `koanf:"timezone"`
}

type PushConfig struct {
	VAPIDPublicKey  string `koanf:"vapid_public_key"`
	VAPIDPrivateKey string `koanf:"vapid_private_key"`
	Subscriber      string `koanf:"subscriber"`
	TTL             int    `koanf:"ttl"`
}

// Load reads configuration. A missing file at configPath is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	// PLANNER_SCHEDULER__FETCH_TIMEOUT -> scheduler.fetch_timeout
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "file", "sqlite", "mongo":
	default:
		return fmt.Errorf("unknown storage type: %s (supported: memory, file, sqlite, mongo)", c.Storage.Type)
	}

	switch c.Markers.Type {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown marker store: %s (supported: memory, file, redis)", c.Markers.Type)
	}

	s := c.Scheduler
	if s.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	if s.WindowPastDays < 0 || s.WindowFutureDays < 0 {
		return fmt.Errorf("scheduler window must not be negative")
	}
	if s.FetchTimeout < 0 || s.AlertDelay < 0 {
		return fmt.Errorf("scheduler durations must not be negative")
	}
	if s.WriteBack != "patch" && s.WriteBack != "replace" {
		return fmt.Errorf("write_back must be 'patch' or 'replace', got %q", s.WriteBack)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set together")
	}
	return nil
}

// Location resolves the scheduler timezone; "" and "Local" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" || c.Scheduler.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

// PushEnabled reports whether VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}
