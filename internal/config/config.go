// Package config loads process configuration from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`
	HTTPPort int    `yaml:"http_port"`

	APIBaseURL     string        `yaml:"api_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PageSize       int           `yaml:"page_size"`

	Storage Storage `yaml:"storage"`
	TLS     TLS     `yaml:"tls"`

	SecurityLog    string   `yaml:"security_log"`
	TracingEnabled bool     `yaml:"tracing_enabled"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type Storage struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
}

type TLS struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		AppEnv:         "dev",
		LogLevel:       "info",
		HTTPPort:       8080,
		APIBaseURL:     "http://localhost:3000",
		RequestTimeout: 30 * time.Second,
		PageSize:       10,
		Storage: Storage{
			Driver:    StorageFile,
			Path:      filepath.Join("data", "session.json"),
			KeyPrefix: "vitrin:",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.APIBaseURL = getEnv("VITRIN_API_URL", c.APIBaseURL)
	c.Storage.Driver = getEnv("VITRIN_STORAGE", c.Storage.Driver)
	c.Storage.Path = getEnv("VITRIN_STORAGE_PATH", c.Storage.Path)
	c.Storage.KeyPrefix = getEnv("VITRIN_KEY_PREFIX", c.Storage.KeyPrefix)
	c.Storage.RedisURL = getEnv("VITRIN_REDIS_URL", getEnv("REDIS_URL", c.Storage.RedisURL))
	c.SecurityLog = getEnv("VITRIN_SECURITY_LOG", c.SecurityLog)
	if v := os.Getenv("VITRIN_TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = strings.Split(v, ",")
	}

	var err error
	if c.HTTPPort, err = getEnvInt("PORT", c.HTTPPort); err != nil {
		return err
	}
	if c.PageSize, err = getEnvInt("VITRIN_PAGE_SIZE", c.PageSize); err != nil {
		return err
	}
	if v := os.Getenv("VITRIN_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VITRIN_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("VITRIN_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VITRIN_TLS: %w", err)
		}
		c.TLS.Enabled = b
	}
	c.TLS.CertFile = getEnv("VITRIN_TLS_CERT", c.TLS.CertFile)
	c.TLS.KeyFile = getEnv("VITRIN_TLS_KEY", c.TLS.KeyFile)
	if v := os.Getenv("VITRIN_TRACING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VITRIN_TRACING: %w", err)
		}
		c.TracingEnabled = b
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("%w: http port %d", ErrInvalidConfig, c.HTTPPort)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api base url %q", ErrInvalidConfig, c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("%w: page size %d", ErrInvalidConfig, c.PageSize)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("%w: tls cert and key must be set together", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage path is required for the file driver", ErrInvalidConfig)
		}
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("%w: redis url is required for the redis driver", ErrInvalidConfig)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
