// Package config loads depstale's TOML configuration file.
//
// Configuration is optional: a missing file yields the defaults, and
// command-line flags always win over file values.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/depstale/depstale/pkg/enrich"
	"github.com/depstale/depstale/pkg/errors"
	"github.com/depstale/depstale/pkg/registry"
)

// DefaultFileName is looked up in the project directory when --config is
// not given.
const DefaultFileName = ".depstale.toml"

// Cache backend names accepted in the [cache] section.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
	CacheBackendNone  = "none"
)

// Config is the full file configuration.
type Config struct {
	// Path is the project directory holding package.json and
	// package-lock.json.
	Path string `toml:"path"`

	// Workspaces overrides the workspace globs of the root package.json.
	Workspaces []string `toml:"workspaces"`

	Registry Registry `toml:"registry"`
	Cache    Cache    `toml:"cache"`
	Run      Run      `toml:"run"`
}

// Registry configures the npm registry client.
type Registry struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

// Cache configures the persistent metadata cache.
type Cache struct {
	Backend string   `toml:"backend"`
	Dir     string   `toml:"dir"`
	TTL     Duration `toml:"ttl"`
	Redis   Redis    `toml:"redis"`
}

// Redis configures the Redis cache backend, typically for CI runners that
// share one metadata cache.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Run configures the enrichment run.
type Run struct {
	Concurrency int     `toml:"concurrency"`
	SinceYears  float64 `toml:"since_years"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Path: ".",
		Registry: Registry{
			URL:     registry.DefaultBaseURL,
			Timeout: Duration{registry.DefaultTimeout},
		},
		Cache: Cache{
			Backend: CacheBackendFile,
			TTL:     Duration{registry.DefaultCacheTTL},
			Redis:   Redis{Addr: "localhost:6379"},
		},
		Run: Run{
			Concurrency: enrich.DefaultConcurrency,
			SinceYears:  enrich.DefaultSinceYears,
		},
	}
}

// Load reads the configuration at path on top of the defaults. An empty
// path tries DefaultFileName in the working directory; if that file does
// not exist either, the defaults are returned as-is. An explicitly given
// path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, errors.New(errors.ErrCodeFileNotFound, "config file not found at %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "failed to parse config %s", path)
	}
	return cfg, nil
}
