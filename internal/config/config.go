package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Files    FilesConfig    `yaml:"files"`
	JWT      JWTConfig      `yaml:"jwt"`
	Security SecurityConfig `yaml:"security"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type FilesConfig struct {
	Root string `yaml:"root"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type SecurityConfig struct {
	BcryptCost         int    `yaml:"bcrypt_cost"`
	SessionLifetimeRaw string `yaml:"session_lifetime"`
	SweepIntervalRaw   string `yaml:"sweep_interval"`

	// Parsed from the raw strings above; yaml.v3 has no native duration.
	SessionLifetime time.Duration `yaml:"-"`
	SweepInterval   time.Duration `yaml:"-"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultSessionLifetime matches the original deployment's 7-day tokens.
const DefaultSessionLifetime = 7 * 24 * time.Hour

const DefaultSweepInterval = time.Hour

// Load reads the configuration file and applies environment overrides.
// The signing secret and listen port are required: their absence is a
// startup failure, never a runtime fallback.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	if secret := os.Getenv("FILEPANEL_JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}

	if port := os.Getenv("FILEPANEL_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid FILEPANEL_PORT: %w", err)
		}
		cfg.Server.Port = p
	}

	if storePath := os.Getenv("FILEPANEL_STORE_PATH"); storePath != "" {
		cfg.Store.Path = storePath
	}

	if filesRoot := os.Getenv("FILEPANEL_FILES_ROOT"); filesRoot != "" {
		cfg.Files.Root = filesRoot
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required (or set FILEPANEL_JWT_SECRET)")
	}
	if cfg.Server.Port == 0 {
		return nil, fmt.Errorf("server.port is required (or set FILEPANEL_PORT)")
	}

	// Ensure the data directory exists for the store file
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join("data", "filepanel.db")
	}
	if c.Files.Root == "" {
		c.Files.Root = "files"
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 10
	}
	if c.Security.SessionLifetimeRaw != "" {
		d, err := time.ParseDuration(c.Security.SessionLifetimeRaw)
		if err != nil {
			return fmt.Errorf("invalid security.session_lifetime: %w", err)
		}
		c.Security.SessionLifetime = d
	}
	if c.Security.SessionLifetime == 0 {
		c.Security.SessionLifetime = DefaultSessionLifetime
	}
	if c.Security.SweepIntervalRaw != "" {
		d, err := time.ParseDuration(c.Security.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("invalid security.sweep_interval: %w", err)
		}
		c.Security.SweepInterval = d
	}
	if c.Security.SweepInterval == 0 {
		c.Security.SweepInterval = DefaultSweepInterval
	}
	if c.Security.RateLimit.RequestsPerMinute == 0 {
		c.Security.RateLimit.RequestsPerMinute = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}

// Addr returns the host:port pair the HTTP server should listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
