// Package config loads recorder settings from a YAML file, a .env file and
// CHATRECORDER_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/blobcache"
	"github.com/iksnae/chat-recorder/internal/telemetry"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CHATRECORDER_"

// DefaultFile is looked up in the working directory when no path is given
const DefaultFile = "chatrecorder.yaml"

// Database selects the relational store
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Redis enables the session reference cache when Addr is set
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether a redis address is configured
func (r Redis) Enabled() bool { return r.Addr != "" }

// Config is the full recorder configuration
type Config struct {
	Database Database `yaml:"database"`
	// RecordSendMsg records messages the bots send (on by default).
	RecordSendMsg bool             `yaml:"record_send_msg"`
	Cache         blobcache.Config `yaml:"cache"`
	Redis         Redis            `yaml:"redis"`
	Telemetry     telemetry.Config `yaml:"telemetry"`
	Verbose       bool             `yaml:"verbose"`
	LogLevel      string           `yaml:"log_level"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Database:      Database{Driver: "sqlite", DSN: "chatrecorder.db"},
		RecordSendMsg: true,
		Cache:         blobcache.Config{Backend: blobcache.BackendFS},
		Redis:         Redis{Prefix: "chatrecorder", TTL: 24 * time.Hour},
		LogLevel:      "info",
	}
}

// Load reads path (or DefaultFile when path is empty and it exists), then
// .env, then the environment. A missing explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &internal.ParseError{Source: "config", Key: path, Err: err}
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files, skipping missing ones. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return &internal.ParseError{Source: "dotenv", Key: p, Err: err}
		}
		internal.LogDebug("loaded env from %s", p)
	}
	return nil
}

// ApplyEnv overrides fields from CHATRECORDER_* variables read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)
	if err := boolean("RECORD_SEND_MSG", &c.RecordSendMsg); err != nil {
		return err
	}
	var backend string
	str("CACHE_BACKEND", &backend)
	if backend != "" {
		c.Cache.Backend = blobcache.Backend(strings.ToLower(backend))
	}
	str("CACHE_DIR", &c.Cache.Dir)
	str("CACHE_BUCKET", &c.Cache.Bucket)
	str("CACHE_PREFIX", &c.Cache.Prefix)
	str("CACHE_REGION", &c.Cache.Region)
	str("CACHE_ENDPOINT", &c.Cache.Endpoint)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("REDIS_PREFIX", &c.Redis.Prefix)
	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Redis.DB = n
	}
	if v, ok := lookup(EnvPrefix + "REDIS_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sREDIS_TTL: %w", EnvPrefix, err)
		}
		c.Redis.TTL = d
	}
	str("TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	if err := boolean("TELEMETRY_INSECURE", &c.Telemetry.Insecure); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "TELEMETRY_SAMPLE_RATE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %sTELEMETRY_SAMPLE_RATE: %w", EnvPrefix, err)
		}
		c.Telemetry.SampleRate = f
	}
	if err := boolean("VERBOSE", &c.Verbose); err != nil {
		return err
	}
	str("LOG_LEVEL", &c.LogLevel)
	return nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if _, err := internal.ParseDialect(c.Database.Driver); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Cache.Backend {
	case "", blobcache.BackendFS:
	case blobcache.BackendS3, blobcache.BackendGCS:
		if c.Cache.Bucket == "" {
			return fmt.Errorf("cache.bucket is required for the %s backend", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("unsupported cache.backend: %s (supported: fs, s3, gcs)", c.Cache.Backend)
	}
	if c.Redis.TTL < 0 {
		return errors.New("redis.ttl must not be negative")
	}
	if r := c.Telemetry.SampleRate; r < 0 || r > 1 {
		return errors.New("telemetry.sample_rate must be between 0 and 1")
	}
	if _, err := internal.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// LogLevelValue resolves the configured level; Verbose forces debug
func (c *Config) LogLevelValue() internal.LogLevel {
	if c.Verbose {
		return internal.LogLevelDebug
	}
	level, err := internal.ParseLogLevel(c.LogLevel)
	if err != nil {
		return internal.LogLevelInfo
	}
	return level
}
