// Package config loads urlcheck settings from an optional YAML file and
// URLCHECK_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/urlcheck/pkg/checker"
	"github.com/Sternrassler/urlcheck/pkg/lock"
	"github.com/Sternrassler/urlcheck/pkg/logging"
	"github.com/Sternrassler/urlcheck/pkg/probe"
	"gopkg.in/yaml.v3"
)

// Lock backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full urlcheck configuration.
type Config struct {
	Checker CheckerConfig `yaml:"checker"`
	Lock    LockConfig    `yaml:"lock"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// CheckerConfig tunes batching and requests.
type CheckerConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	BatchSize     int           `yaml:"batch_size"`
	BatchInterval time.Duration `yaml:"batch_interval"`
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	Accept        string        `yaml:"accept"`
}

// LockConfig selects and configures the session lock backend.
type LockConfig struct {
	Backend string `yaml:"backend"`

	// Path is the marker file for the file backend.
	Path string `yaml:"path"`

	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`

	SQLitePath string `yaml:"sqlite_path"`

	PostgresDSN string `yaml:"postgres_dsn"`

	// Name identifies the lock row in the SQL backends.
	Name string `yaml:"name"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	runner := checker.DefaultConfig()
	return Config{
		Checker: CheckerConfig{
			Concurrency:   runner.Concurrency,
			BatchSize:     runner.BatchSize,
			BatchInterval: runner.BatchInterval,
			Timeout:       runner.Probe.Timeout,
			UserAgent:     runner.Probe.UserAgent,
			Accept:        runner.Probe.Accept,
		},
		Lock: LockConfig{
			Backend:    BackendFile,
			Path:       lock.DefaultFilePath,
			RedisAddr:  "localhost:6379",
			RedisKey:   lock.DefaultRedisKey,
			SQLitePath: "urlcheck.db",
			Name:       lock.DefaultLockName,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"URLCHECK_USER_AGENT":   &c.Checker.UserAgent,
		"URLCHECK_ACCEPT":       &c.Checker.Accept,
		"URLCHECK_LOCK_BACKEND": &c.Lock.Backend,
		"URLCHECK_LOCK_PATH":    &c.Lock.Path,
		"URLCHECK_LOCK_NAME":    &c.Lock.Name,
		"URLCHECK_REDIS_ADDR":   &c.Lock.RedisAddr,
		"URLCHECK_REDIS_KEY":    &c.Lock.RedisKey,
		"URLCHECK_SQLITE_PATH":  &c.Lock.SQLitePath,
		"URLCHECK_POSTGRES_DSN": &c.Lock.PostgresDSN,
		"URLCHECK_LOG_LEVEL":    &c.Log.Level,
		"URLCHECK_ADDR":         &c.Server.Addr,
	}
	for key, dst := range strVars {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"URLCHECK_CONCURRENCY": &c.Checker.Concurrency,
		"URLCHECK_BATCH_SIZE":  &c.Checker.BatchSize,
	}
	for key, dst := range intVars {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
			}
			*dst = n
		}
	}

	durVars := map[string]*time.Duration{
		"URLCHECK_BATCH_INTERVAL": &c.Checker.BatchInterval,
		"URLCHECK_TIMEOUT":        &c.Checker.Timeout,
	}
	for key, dst := range durVars {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("URLCHECK_LOG_PRETTY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: URLCHECK_LOG_PRETTY: %v", ErrInvalid, err)
		}
		c.Log.Pretty = b
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.RunnerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Checker.Timeout <= 0 {
		return fmt.Errorf("%w: checker.timeout must be > 0 (got %s)", ErrInvalid, c.Checker.Timeout)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}

	switch c.Lock.Backend {
	case BackendFile:
		if c.Lock.Path == "" {
			return fmt.Errorf("%w: lock.path is required for the file backend", ErrInvalid)
		}
	case BackendRedis:
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("%w: lock.redis_addr is required for the redis backend", ErrInvalid)
		}
	case BackendSQLite:
		if c.Lock.SQLitePath == "" {
			return fmt.Errorf("%w: lock.sqlite_path is required for the sqlite backend", ErrInvalid)
		}
	case BackendPostgres:
		if c.Lock.PostgresDSN == "" {
			return fmt.Errorf("%w: lock.postgres_dsn is required for the postgres backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown lock backend %q", ErrInvalid, c.Lock.Backend)
	}
	return nil
}

// RunnerConfig converts the checker section to a checker.Config.
func (c Config) RunnerConfig() checker.Config {
	return checker.Config{
		Concurrency:   c.Checker.Concurrency,
		BatchSize:     c.Checker.BatchSize,
		BatchInterval: c.Checker.BatchInterval,
		Probe: probe.Config{
			Timeout:   c.Checker.Timeout,
			UserAgent: c.Checker.UserAgent,
			Accept:    c.Checker.Accept,
		},
	}
}

// LoggingConfig converts the log section to a logging.Config writing to stderr.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
