package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Results struct {
		// Store selects where result records live: memory, redis or postgres.
		// Empty picks postgres when configured, then redis, then memory.
		Store        string `yaml:"store"`
		MaxRetries   *int   `yaml:"max_retries"`
		DefaultLimit int    `yaml:"default_limit"`
	} `yaml:"results"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// ResultStore resolves which backend holds result records.
func (c Config) ResultStore() string {
	switch c.Results.Store {
	case StoreMemory, StoreRedis, StorePostgres:
		return c.Results.Store
	}
	switch {
	case c.Postgres.URL != "":
		return StorePostgres
	case c.Redis.Addr != "":
		return StoreRedis
	default:
		return StoreMemory
	}
}

// MaxRetries is how often a conflicting result update is re-run; 3 when unset.
func (c Config) MaxRetries() int {
	if c.Results.MaxRetries == nil || *c.Results.MaxRetries < 0 {
		return 3
	}
	return *c.Results.MaxRetries
}

// MetricsEnabled defaults to true.
func (c Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}
