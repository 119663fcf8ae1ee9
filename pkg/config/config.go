package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is the YAML file Load reads when present.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-gateway.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (credential keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config
	Debug    bool   `yaml:"debug" env:"DEBUG" env-default:"false"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// Upstream business-planning API
	BusinessPlanning BusinessPlanningConfig `yaml:"business_planning"`

	// Datasource connection management configuration
	Datasource DatasourceConfig `yaml:"datasource"`

	// Connection record storage
	Store StoreConfig `yaml:"store"`

	// CredentialsKey encrypts stored connection strings.
	// Base64 32-byte key or any passphrase. Required when Store.Driver is "sqlite".
	CredentialsKey string `yaml:"-" env:"CONNECTION_CREDENTIALS_KEY"` // Secret - not in YAML
}

// BusinessPlanningConfig holds settings for the proxied business-planning API.
type BusinessPlanningConfig struct {
	// BaseURL is the upstream prefix; route suffixes are appended to it.
	BaseURL string        `yaml:"base_url" env:"PYTHON_API_BASE" env-default:"http://localhost:8000/api/business-planning"`
	Timeout time.Duration `yaml:"timeout" env:"BUSINESS_PLANNING_TIMEOUT" env-default:"30s"`
}

// DatasourceConfig holds datasource connection management settings.
type DatasourceConfig struct {
	// ConnectionTTLMinutes is how long idle datasource pools are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// MaxConnections limits the number of open datasource pools.
	MaxConnections int `yaml:"max_connections" env:"DATASOURCE_MAX_CONNECTIONS" env-default:"50"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
	// QueryTimeout bounds every query, metadata and health call against a datasource.
	QueryTimeout time.Duration `yaml:"query_timeout" env:"DATASOURCE_QUERY_TIMEOUT" env-default:"60s"`
}

// StoreConfig selects where connection records live.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
	// Path is the SQLite database file used when Driver is "sqlite".
	Path string `yaml:"path" env:"STORE_PATH" env-default:"ekaya-gateway.db"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist, configuration comes from the environment alone.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.BusinessPlanning.BaseURL = strings.TrimRight(cfg.BusinessPlanning.BaseURL, "/")

	return cfg, nil
}

// validate checks cross-field constraints cleanenv cannot express.
func (c *Config) validate() error {
	u, err := url.Parse(c.BusinessPlanning.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("business_planning.base_url must be an absolute URL, got %q", c.BusinessPlanning.BaseURL)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.CredentialsKey == "" {
			return fmt.Errorf("CONNECTION_CREDENTIALS_KEY is required when store.driver is sqlite")
		}
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required when store.driver is sqlite")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}

	if c.Datasource.PoolMinConns > c.Datasource.PoolMaxConns {
		return fmt.Errorf("datasource.pool_min_conns (%d) exceeds pool_max_conns (%d)",
			c.Datasource.PoolMinConns, c.Datasource.PoolMaxConns)
	}

	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// IsLocal reports whether the gateway runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev" || c.Env == "development"
}
