// Package cli implements the depstale command-line interface.
//
// This package provides commands for auditing a project's npm dependencies
// for staleness and deprecation, and for managing the registry metadata
// cache. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - old: List dependencies whose installed version is older than a threshold
//   - deprecated: List dependencies whose installed version is deprecated
//   - cache: Manage the registry metadata cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Logs go to
// stderr; report output goes to stdout.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/depstale/depstale/internal/config"
	"github.com/depstale/depstale/pkg/buildinfo"
	"github.com/depstale/depstale/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "depstale"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	cfg *config.Config

	// Persistent flag values, merged with cfg by the accessor methods.
	verbose     bool
	configPath  string
	path        string
	workspaces  []string
	registryURL string
	noCache     bool
	refresh     bool
	concurrency int
	timeout     time.Duration
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		cfg: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "depstale audits npm dependencies for staleness and deprecation",
		Long:         `depstale inspects a project's package.json and package-lock.json and reports which installed dependencies are old or deprecated, using metadata from the npm registry. It never installs or executes anything.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(log.DebugLevel)
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.configPath, "config", "", "config file (default: .depstale.toml if present)")
	pf.StringVarP(&c.path, "path", "p", "", "project directory containing package.json and package-lock.json")
	pf.StringSliceVarP(&c.workspaces, "workspaces", "w", nil, "workspaces to audit (default: the root manifest's workspaces field)")
	pf.StringVar(&c.registryURL, "registry", "", "npm registry base URL")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the persistent metadata cache")
	pf.BoolVar(&c.refresh, "refresh", false, "bypass cached registry metadata")
	pf.IntVar(&c.concurrency, "concurrency", 0, "maximum concurrent registry lookups")
	pf.DurationVar(&c.timeout, "timeout", 0, "per-package lookup timeout including retries")

	root.AddCommand(c.oldCommand())
	root.AddCommand(c.deprecatedCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Flag-over-config accessors. A zero flag value defers to the file, which
// in turn defers to the defaults baked into config.Default.

func (c *CLI) projectPath() string {
	if c.path != "" {
		return c.path
	}
	return c.cfg.Path
}

func (c *CLI) workspaceList() []string {
	if c.workspaces != nil {
		return c.workspaces
	}
	return c.cfg.Workspaces
}

func (c *CLI) registryBaseURL() string {
	if c.registryURL != "" {
		return c.registryURL
	}
	return c.cfg.Registry.URL
}

func (c *CLI) lookupTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return c.cfg.Registry.Timeout.Duration
}

func (c *CLI) concurrencyLimit() int {
	if c.concurrency > 0 {
		return c.concurrency
	}
	return c.cfg.Run.Concurrency
}

// newCacheBackend builds the persistent cache selected by flags and config.
// Backend failures degrade to a null cache with a warning rather than
// failing the run.
func (c *CLI) newCacheBackend(ctx context.Context) cache.Cache {
	if c.noCache || c.cfg.Cache.Backend == config.CacheBackendNone {
		return cache.NewNullCache()
	}

	if c.cfg.Cache.Backend == config.CacheBackendRedis {
		redis, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.cfg.Cache.Redis.Addr,
			Password: c.cfg.Cache.Redis.Password,
			DB:       c.cfg.Cache.Redis.DB,
		})
		if err == nil {
			return redis
		}
		c.Logger.Warnf("Redis cache unavailable, continuing without cache: %v", err)
		return cache.NewNullCache()
	}

	dir := c.cfg.Cache.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache()
		}
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warnf("File cache unavailable, continuing without cache: %v", err)
		return cache.NewNullCache()
	}
	return fc
}

// cacheDir returns the cache directory using XDG standard (~/.cache/depstale/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
