package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/searchinfra"
	"github.com/goliatone/go-query-cache/internal/storeinfra"
	"github.com/goliatone/go-query-cache/searchindex"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration. The relational, document and
// search sections are optional: a section without connection settings is
// disabled.
type Config struct {
	Cache      cache.Config                `yaml:"cache"`
	Relational storeinfra.RelationalConfig `yaml:"relational"`
	Document   storeinfra.DocumentConfig   `yaml:"document"`
	Search     SearchConfig                `yaml:"search"`
	Logging    LoggingConfig               `yaml:"logging"`
}

// SearchConfig holds the search cluster connection and the synchronizer
// settings.
type SearchConfig struct {
	searchinfra.Config `yaml:",inline"`
	PageTTL            time.Duration `yaml:"page_ttl"`
	MaxAttempts        int           `yaml:"max_attempts"`
	RetryWait          time.Duration `yaml:"retry_wait"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default returns a configuration with the in-process cache and every
// optional backend disabled.
func Default() *Config {
	return &Config{
		Cache: cache.DefaultConfig(),
		Search: SearchConfig{
			PageTTL:     searchindex.DefaultPageTTL,
			MaxAttempts: searchindex.DefaultMaxAttempts,
			RetryWait:   searchindex.DefaultRetryWait,
		},
		Logging: LoggingConfig{Level: "info", Format: FormatText},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("QCACHE_CACHE_BACKEND"); val != "" {
		c.Cache.Backend = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Cache.Redis.Addr = val
	}
	if val := os.Getenv("DATABASE_DSN"); val != "" {
		c.Relational.DSN = val
	}
	if val := os.Getenv("MONGO_URI"); val != "" {
		c.Document.URI = val
	}
	if val := os.Getenv("ELASTICSEARCH_URL"); val != "" {
		c.Search.Addresses = strings.Split(val, ",")
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
}

// ApplyDefaults fills the gaps left by a partial file.
func (c *Config) ApplyDefaults() {
	defaults := cache.DefaultConfig()
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaults.Backend
	}
	if c.Cache.Codec == "" {
		c.Cache.Codec = defaults.Codec
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = defaults.TTL
	}
	if c.Relational.DSN != "" && c.Relational.Driver == "" {
		c.Relational.Driver = storeinfra.DriverPostgres
	}
	if c.Search.PageTTL == 0 {
		c.Search.PageTTL = searchindex.DefaultPageTTL
	}
	if c.Search.MaxAttempts == 0 {
		c.Search.MaxAttempts = searchindex.DefaultMaxAttempts
	}
	if c.Search.RetryWait == 0 {
		c.Search.RetryWait = searchindex.DefaultRetryWait
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = FormatText
	}
}

func (c *Config) RelationalEnabled() bool { return c.Relational.DSN != "" }

func (c *Config) DocumentEnabled() bool { return c.Document.URI != "" }

func (c *Config) SearchEnabled() bool { return len(c.Search.Addresses) > 0 }

// Validate checks the cache and logging sections and every enabled
// optional section.
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid logging config")
	}
	if c.RelationalEnabled() {
		if err := c.Relational.Validate(); err != nil {
			return goerrors.FromOzzoValidation(err, "invalid relational config")
		}
	}
	if c.DocumentEnabled() {
		if err := c.Document.Validate(); err != nil {
			return goerrors.FromOzzoValidation(err, "invalid document config")
		}
	}
	if c.SearchEnabled() {
		if err := c.Search.Validate(); err != nil {
			return goerrors.FromOzzoValidation(err, "invalid search config")
		}
	}
	return nil
}

func (c SearchConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.PageTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxAttempts, validation.Min(1)),
		validation.Field(&c.RetryWait, validation.Min(time.Duration(0))),
	)
}

func (c LoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In(FormatText, FormatJSON)),
	)
}
