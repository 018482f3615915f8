// Package config loads service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// History backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	History struct {
		Backend    string        `yaml:"backend"`
		SQLitePath string        `yaml:"sqlite_path"`
		RedisAddr  string        `yaml:"redis_addr"`
		MaxEntries int           `yaml:"max_entries"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		SweepCron  string        `yaml:"sweep_cron"`
	} `yaml:"history"`
	ScheduleFile string `yaml:"schedule_file"`
	Log          struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	cfg.History.Backend = BackendMemory
	cfg.History.SQLitePath = ":memory:"
	cfg.History.RedisAddr = "localhost:6379"
	cfg.History.MaxEntries = 100
	cfg.History.SessionTTL = 24 * time.Hour
	cfg.History.SweepCron = "0 */5 * * * *"
	cfg.Log.Level = "info"
	return cfg
}

// Load starts from Default, overlays the YAML file, then applies
// environment variable overrides. A missing file is not an error.
//
// Keys present in the file replace defaults even when zero, so
// "session_ttl: 0" (or SESSION_TTL=0) disables session expiry: the sweeper
// does not start and Redis keys carry no TTL.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.History.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.History.RedisAddr = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse SESSION_TTL: %w", err)
		}
		cfg.History.SessionTTL = ttl
	}
	if v := os.Getenv("SCHEDULE_FILE"); v != "" {
		cfg.ScheduleFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Blank strings are never meaningful; fall back to the defaults.
	def := Default()
	if cfg.History.Backend == "" {
		cfg.History.Backend = def.History.Backend
	}
	if cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = def.History.SQLitePath
	}
	if cfg.History.RedisAddr == "" {
		cfg.History.RedisAddr = def.History.RedisAddr
	}
	if cfg.History.SweepCron == "" {
		cfg.History.SweepCron = def.History.SweepCron
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = def.Server.AllowedOrigins
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.History.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("history.backend must be memory, sqlite or redis, got %q", c.History.Backend)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative")
	}
	if c.History.SessionTTL < 0 {
		return fmt.Errorf("history.session_ttl must not be negative")
	}
	return nil
}
