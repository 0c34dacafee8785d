// Package config loads service configuration from YAML with READTHROUGH_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-readthrough/books"
	"github.com/goliatone/go-readthrough/cache"
	"github.com/goliatone/go-readthrough/internal/database"
	"github.com/goliatone/go-readthrough/resilience"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "READTHROUGH_"

type Config struct {
	Database database.Config   `yaml:"database"`
	Cache    CacheConfig       `yaml:"cache"`
	Redis    RedisConfig       `yaml:"redis"`
	HTTP     HTTPConfig        `yaml:"http"`
	Log      LogConfig         `yaml:"log"`
	Books    BooksConfig       `yaml:"books"`
	Retry    resilience.Policy `yaml:"retry"`
}

type CacheConfig struct {
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"num_shards"`
	TTL                time.Duration `yaml:"ttl"`
	LocalTTL           time.Duration `yaml:"local_ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
}

// RedisConfig enables the shared cache tier when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

type BooksConfig struct {
	CacheKey     string `yaml:"cache_key"`
	RedactErrors bool   `yaml:"redact_errors"`
}

// Default returns an in-memory sqlite setup without redis.
func Default() Config {
	c := cache.DefaultConfig()
	return Config{
		Database: database.Config{Driver: database.DriverSQLite, DSN: "file:readthrough?mode=memory&cache=shared"},
		Cache: CacheConfig{
			Capacity:           c.Capacity,
			NumShards:          c.NumShards,
			TTL:                c.TTL,
			LocalTTL:           c.LocalTTL,
			EvictionPercentage: c.EvictionPercentage,
		},
		Redis: RedisConfig{Prefix: "readthrough:"},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Log:   LogConfig{Mode: "development"},
		Books: BooksConfig{CacheKey: books.DefaultCacheKey, RedactErrors: true},
		Retry: resilience.DefaultPolicy(),
	}
}

// CacheOptions converts the cache section for cache.NewTypedService.
func (c Config) CacheOptions() cache.Config {
	out := cache.DefaultConfig()
	out.Capacity = c.Cache.Capacity
	out.NumShards = c.Cache.NumShards
	out.TTL = c.Cache.TTL
	out.LocalTTL = c.Cache.LocalTTL
	out.EvictionPercentage = c.Cache.EvictionPercentage
	return out
}

// Validate reports every invalid section.
func (c Config) Validate() error {
	var err error
	section := func(name string, e error) {
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", name, e))
		}
	}

	section("database", c.Database.Validate())
	section("cache", c.CacheOptions().Validate())
	section("retry", c.Retry.Validate())
	if c.HTTP.Addr == "" {
		section("http", errors.New("addr is required"))
	}
	switch strings.ToLower(c.Log.Mode) {
	case "", "dev", "development", "prod", "production":
	default:
		section("log", fmt.Errorf("unknown mode %q", c.Log.Mode))
	}
	if c.Books.CacheKey == "" {
		section("books", errors.New("cache_key is required"))
	}
	if c.Redis.DB < 0 {
		section("redis", errors.New("db must be non-negative"))
	}
	return err
}

// Load reads path over Default, applies environment overrides and validates.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var err error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, perr := strconv.Atoi(strings.TrimSpace(v))
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("config: %s%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, perr := time.ParseDuration(strings.TrimSpace(v))
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("config: %s%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, perr := strconv.ParseBool(strings.TrimSpace(v))
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("config: %s%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = b
		}
	}

	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)
	num("CACHE_CAPACITY", &c.Cache.Capacity)
	num("CACHE_NUM_SHARDS", &c.Cache.NumShards)
	dur("CACHE_TTL", &c.Cache.TTL)
	dur("CACHE_LOCAL_TTL", &c.Cache.LocalTTL)
	num("CACHE_EVICTION_PERCENTAGE", &c.Cache.EvictionPercentage)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	str("REDIS_PREFIX", &c.Redis.Prefix)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_MODE", &c.Log.Mode)
	str("BOOKS_CACHE_KEY", &c.Books.CacheKey)
	flag("BOOKS_REDACT_ERRORS", &c.Books.RedactErrors)
	num("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	dur("RETRY_INITIAL_DELAY", &c.Retry.InitialDelay)
	dur("RETRY_MAX_DELAY", &c.Retry.MaxDelay)
	return err
}
