// Package config loads knotview settings.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. Defaults (the constants below)
//  2. $XDG_CONFIG_HOME/knotview/config.toml (or an explicit --config file)
//  3. KNOTVIEW_* environment variables
//
// Command-line flags are applied on top by the CLI.
//
// Example config.toml:
//
//	data_dir = "./data"
//	cache_backend = "redis"
//	redis_addr = "localhost:6379"
//	redis_prefix = "nyc:"
//	listen = "0.0.0.0:8420"
//	monitor_interval = "100ms"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const appName = "knotview"

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultDataDir is where layer, joined and camera files are read from.
	DefaultDataDir = "./data"

	// DefaultCacheBackend is the cache used for fetched payloads.
	DefaultCacheBackend = CacheFile

	// DefaultRedisAddr is used when CacheBackend is redis.
	DefaultRedisAddr = "localhost:6379"

	// DefaultRedisPrefix namespaces payload keys in a shared Redis.
	DefaultRedisPrefix = "knotview:"

	// DefaultMongoDatabase holds the grammar collection.
	DefaultMongoDatabase = "knotview"

	// DefaultListen is the HTTP API address.
	DefaultListen = "127.0.0.1:8420"

	// DefaultMonitorInterval is the period of the visibility monitor.
	DefaultMonitorInterval = 100 * time.Millisecond

	// DefaultFetchConcurrency bounds concurrent layer fetches during init.
	DefaultFetchConcurrency = 4
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config holds resolved settings.
type Config struct {
	DataDir          string   `toml:"data_dir"`
	DataURL          string   `toml:"data_url" validate:"omitempty,url"`
	CacheDir         string   `toml:"cache_dir"`
	CacheBackend     string   `toml:"cache_backend" validate:"oneof=file redis none"`
	RedisAddr        string   `toml:"redis_addr" validate:"required_if=CacheBackend redis"`
	RedisPrefix      string   `toml:"redis_prefix"`
	MongoURI         string   `toml:"mongo_uri" validate:"omitempty,startswith=mongodb"`
	MongoDatabase    string   `toml:"mongo_database"`
	Listen           string   `toml:"listen" validate:"required"`
	ViewID           int      `toml:"view_id" validate:"gte=0"`
	MonitorInterval  Duration `toml:"monitor_interval"`
	FetchConcurrency int      `toml:"fetch_concurrency" validate:"gte=1,lte=64"`
}

// Duration decodes TOML strings such as "250ms".
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		DataDir:          DefaultDataDir,
		CacheDir:         defaultCacheDir(),
		CacheBackend:     DefaultCacheBackend,
		RedisAddr:        DefaultRedisAddr,
		RedisPrefix:      DefaultRedisPrefix,
		MongoDatabase:    DefaultMongoDatabase,
		Listen:           DefaultListen,
		MonitorInterval:  Duration{DefaultMonitorInterval},
		FetchConcurrency: DefaultFetchConcurrency,
	}
}

// Load resolves the configuration. An empty path means the default
// location; a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		if err != nil && (explicit || !os.IsNotExist(err)) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/knotview/config.toml, falling back to
// ~/.config.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, ".cache", appName)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"KNOTVIEW_DATA_DIR":       &c.DataDir,
		"KNOTVIEW_DATA_URL":       &c.DataURL,
		"KNOTVIEW_CACHE_DIR":      &c.CacheDir,
		"KNOTVIEW_CACHE_BACKEND":  &c.CacheBackend,
		"KNOTVIEW_REDIS_ADDR":     &c.RedisAddr,
		"KNOTVIEW_REDIS_PREFIX":   &c.RedisPrefix,
		"KNOTVIEW_MONGO_URI":      &c.MongoURI,
		"KNOTVIEW_MONGO_DATABASE": &c.MongoDatabase,
		"KNOTVIEW_LISTEN":         &c.Listen,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("KNOTVIEW_VIEW_ID"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KNOTVIEW_VIEW_ID: %w", err)
		}
		c.ViewID = n
	}
	if v, ok := lookup("KNOTVIEW_MONITOR_INTERVAL"); ok {
		if err := c.MonitorInterval.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("KNOTVIEW_MONITOR_INTERVAL: %w", err)
		}
	}
	if v, ok := lookup("KNOTVIEW_FETCH_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KNOTVIEW_FETCH_CONCURRENCY: %w", err)
		}
		c.FetchConcurrency = n
	}
	return nil
}
