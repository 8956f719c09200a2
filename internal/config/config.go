package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/session"
)

// Config is the process configuration for a pool.
type Config struct {
	// DatabaseURL is a postgres:// URL, a unix socket form
	// "/var/run/postgresql dbname", or a lib/pq key=value DSN.
	DatabaseURL string `yaml:"database_url"`

	// Driver is the database/sql driver name. Defaults to "postgres".
	Driver string `yaml:"driver,omitempty"`

	Pool PoolConfig `yaml:"pool"`

	// Transform names the row transformer: "identity" or "camel".
	Transform string `yaml:"transform,omitempty"`
}

// PoolConfig sizes the connection pool. Durations accept Go syntax
// ("30s", "2m") in YAML and milliseconds in the environment.
type PoolConfig struct {
	MaxSize          int           `yaml:"max_size"`
	MinSize          int           `yaml:"min_size"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout"`
	EvictionInterval time.Duration `yaml:"eviction_interval"`
	TestOnBorrow     bool          `yaml:"test_on_borrow"`
}

// Transformer names.
const (
	TransformIdentity = "identity"
	TransformCamel    = "camel"
)

// Environment variables read by ApplyEnv.
const (
	EnvDatabaseURL      = "DATABASE_URL"
	EnvMaxSize          = "PG_POOL_MAX_SIZE"
	EnvMinSize          = "PG_POOL_MIN_SIZE"
	EnvIdleTimeout      = "PG_POOL_IDLE_TIMEOUT"
	EnvAcquireTimeout   = "PG_POOL_ACQUIRE_TIMEOUT"
	EnvEvictionInterval = "PG_POOL_EVICTION_INTERVAL"
	EnvTestOnBorrow     = "PG_POOL_TEST_ON_BORROW"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Driver: "postgres",
		Pool: PoolConfig{
			MaxSize:        10,
			MinSize:        2,
			IdleTimeout:    30 * time.Second,
			AcquireTimeout: 2 * time.Second,
		},
		Transform: TransformIdentity,
	}
}

// Load reads a YAML file over the defaults. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any variables lookup knows about.
// os.LookupEnv is the usual lookup.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		cfg.DatabaseURL = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvMaxSize, &cfg.Pool.MaxSize},
		{EnvMinSize, &cfg.Pool.MinSize},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}

	millis := []struct {
		name string
		dst  *time.Duration
	}{
		{EnvIdleTimeout, &cfg.Pool.IdleTimeout},
		{EnvAcquireTimeout, &cfg.Pool.AcquireTimeout},
		{EnvEvictionInterval, &cfg.Pool.EvictionInterval},
	}
	for _, e := range millis {
		v, ok := lookup(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = time.Duration(n) * time.Millisecond
	}

	if v, ok := lookup(EnvTestOnBorrow); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTestOnBorrow, err)
		}
		cfg.Pool.TestOnBorrow = b
	}
	return cfg, nil
}

// Validate checks that the configuration can open a pool.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (or set %s)", EnvDatabaseURL)
	}
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if c.Pool.MaxSize < 0 {
		return fmt.Errorf("pool.max_size must be >= 0, got %d", c.Pool.MaxSize)
	}
	if c.Pool.MinSize < 0 {
		return fmt.Errorf("pool.min_size must be >= 0, got %d", c.Pool.MinSize)
	}
	if c.Pool.MaxSize > 0 && c.Pool.MinSize > c.Pool.MaxSize {
		return fmt.Errorf("pool.min_size (%d) exceeds pool.max_size (%d)", c.Pool.MinSize, c.Pool.MaxSize)
	}
	for name, d := range map[string]time.Duration{
		"idle_timeout":      c.Pool.IdleTimeout,
		"acquire_timeout":   c.Pool.AcquireTimeout,
		"eviction_interval": c.Pool.EvictionInterval,
	} {
		if d < 0 {
			return fmt.Errorf("pool.%s must not be negative", name)
		}
	}
	if _, err := c.Transformer(); err != nil {
		return err
	}
	if _, err := c.DSN(); err != nil {
		return fmt.Errorf("database_url: %w", err)
	}
	return nil
}

// DSN returns the connection string handed to the driver. Only the
// postgres driver gets a normalized lib/pq DSN; other drivers receive
// DatabaseURL as is.
func (c Config) DSN() (string, error) {
	if c.Driver != "postgres" {
		return c.DatabaseURL, nil
	}
	return ParseConnectionString(c.DatabaseURL)
}

// SQLOptions maps the pool section onto provider options.
func (c Config) SQLOptions() session.SQLOptions {
	return session.SQLOptions{
		MaxSize:          c.Pool.MaxSize,
		MinSize:          c.Pool.MinSize,
		IdleTimeout:      c.Pool.IdleTimeout,
		AcquireTimeout:   c.Pool.AcquireTimeout,
		EvictionInterval: c.Pool.EvictionInterval,
		TestOnBorrow:     c.Pool.TestOnBorrow,
	}
}

// Transformer returns the configured row transformer.
func (c Config) Transformer() (rowdecode.Transformer, error) {
	switch c.Transform {
	case "", TransformIdentity:
		return rowdecode.Identity, nil
	case TransformCamel:
		return rowdecode.CamelCase, nil
	default:
		return nil, fmt.Errorf("unknown transform %q (want %q or %q)", c.Transform, TransformIdentity, TransformCamel)
	}
}
