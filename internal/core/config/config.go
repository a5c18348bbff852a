package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config shared by the loader
// and the lookup server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Bucketing BucketingConfig `koanf:"bucketing"`
	Loader    LoaderConfig    `koanf:"loader"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port           int      `koanf:"port"`
	Host           string   `koanf:"host"`
	Mode           string   `koanf:"mode"` // debug | release
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type StorageConfig struct {
	Backend string `koanf:"backend"` // postgres | redis | memory
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type BucketingConfig struct {
	YearFrom       int `koanf:"year_from"`
	YearTo         int `koanf:"year_to"`
	MaxBucketBytes int `koanf:"max_bucket_bytes"`
	StateBuckets   int `koanf:"state_buckets"`
	OtherBuckets   int `koanf:"other_buckets"`
}

type LoaderConfig struct {
	StateGlob      string `koanf:"state_glob"`
	OtherNamesPath string `koanf:"other_names_path"`
	StateDelay     string `koanf:"state_delay"` // parsed and validated on startup
	TopNames       int    `koanf:"top_names"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // json | text
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Storage.Backend {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required")
		}
		if strings.TrimSpace(c.Redis.KeyPrefix) == "" {
			return fmt.Errorf("redis.key_prefix is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage.backend %q (must be postgres, redis or memory)", c.Storage.Backend)
	}

	if c.Bucketing.YearFrom <= 0 || c.Bucketing.YearTo <= 0 {
		return fmt.Errorf("bucketing year window must be positive")
	}
	if c.Bucketing.YearFrom > c.Bucketing.YearTo {
		return fmt.Errorf("bucketing.year_from %d is after bucketing.year_to %d", c.Bucketing.YearFrom, c.Bucketing.YearTo)
	}
	if c.Bucketing.MaxBucketBytes <= 0 {
		return fmt.Errorf("bucketing.max_bucket_bytes must be > 0")
	}
	if c.Bucketing.StateBuckets <= 0 {
		return fmt.Errorf("bucketing.state_buckets must be > 0")
	}
	if c.Bucketing.OtherBuckets <= 0 {
		return fmt.Errorf("bucketing.other_buckets must be > 0")
	}

	if strings.TrimSpace(c.Loader.StateGlob) == "" {
		return fmt.Errorf("loader.state_glob is required")
	}
	if c.Loader.StateDelay != "" {
		delay, err := time.ParseDuration(c.Loader.StateDelay)
		if err != nil {
			return fmt.Errorf("invalid loader.state_delay %q: %w", c.Loader.StateDelay, err)
		}
		if delay < 0 {
			return fmt.Errorf("loader.state_delay must be >= 0")
		}
	}
	if c.Loader.TopNames < 0 {
		return fmt.Errorf("loader.top_names must be >= 0")
	}

	if c.Logging.Level != "debug" && c.Logging.Level != "info" && c.Logging.Level != "warn" && c.Logging.Level != "error" {
		return fmt.Errorf("invalid logging.level %q (must be debug, info, warn or error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid logging.format %q (must be json or text)", c.Logging.Format)
	}

	return nil
}

// Load parses config from defaults + file + env and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                8080,
		"server.host":                "0.0.0.0",
		"server.mode":                "release",
		"server.allowed_origins":     []string{"*"},
		"storage.backend":            "memory",
		"database.dsn":               "",
		"database.max_open_conns":    25,
		"database.max_idle_conns":    25,
		"database.auto_migrate":      true,
		"redis.addr":                 "localhost:6379",
		"redis.password":             "",
		"redis.db":                   0,
		"redis.key_prefix":           "statenames:state",
		"bucketing.year_from":        1955,
		"bucketing.year_to":          2010,
		"bucketing.max_bucket_bytes": 3950,
		"bucketing.state_buckets":    4,
		"bucketing.other_buckets":    2,
		"loader.state_glob":          "./data/states/*.TXT",
		"loader.other_names_path":    "./data/other/international_and_other_additional_names.txt",
		"loader.state_delay":         "1s",
		"loader.top_names":           10,
		"logging.level":              "info",
		"logging.format":             "json",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("STATENAMES_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "STATENAMES_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
