// ABOUTME: Configuration loaded from a YAML file, then overridden by CONCEPTGRAPH_* environment variables.
// ABOUTME: Validates oracle bounds and refuses non-loopback server binds unless remote access is allowed.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNonLoopbackBind is returned when the server address is not loopback and remote access is off.
	ErrNonLoopbackBind = errors.New(
		"server address is not loopback but remote access is not allowed; set CONCEPTGRAPH_ALLOW_REMOTE=true to bind it",
	)
	// ErrInvalid is returned for out-of-range values.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the full configuration.
type Config struct {
	Oracle OracleConfig `yaml:"oracle"`
	Graph  GraphConfig  `yaml:"graph"`
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// OracleConfig configures the bounded oracle.
type OracleConfig struct {
	Bound   int           `yaml:"bound"`
	Timeout time.Duration `yaml:"timeout"`
}

// GraphConfig configures graph history.
type GraphConfig struct {
	UndoDepth int `yaml:"undo_depth"` // 0 keeps every checkpoint
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	AllowRemote bool          `yaml:"allow_remote"`
	MaxSessions int           `yaml:"max_sessions"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

// StoreConfig configures checkpoint persistence.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables persistence
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Oracle: OracleConfig{Bound: 6, Timeout: 10 * time.Second},
		Graph:  GraphConfig{UndoDepth: 50},
		Server: ServerConfig{Addr: "127.0.0.1:7780", MaxSessions: 100, SessionTTL: time.Hour},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides, and
// validates. A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CONCEPTGRAPH_* variables that are set and non-empty.
func (c *Config) ApplyEnv() error {
	ints := []struct {
		key string
		dst *int
	}{
		{"CONCEPTGRAPH_ORACLE_BOUND", &c.Oracle.Bound},
		{"CONCEPTGRAPH_UNDO_DEPTH", &c.Graph.UndoDepth},
		{"CONCEPTGRAPH_MAX_SESSIONS", &c.Server.MaxSessions},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s=%q: %w", e.key, v, ErrInvalid)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CONCEPTGRAPH_ORACLE_TIMEOUT", &c.Oracle.Timeout},
		{"CONCEPTGRAPH_SESSION_TTL", &c.Server.SessionTTL},
	}
	for _, e := range durations {
		if v := os.Getenv(e.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s=%q: %w", e.key, v, ErrInvalid)
			}
			*e.dst = d
		}
	}

	c.Server.Addr = envOrDefault("CONCEPTGRAPH_ADDR", c.Server.Addr)
	c.Store.Path = envOrDefault("CONCEPTGRAPH_STORE", c.Store.Path)
	c.Log.Level = envOrDefault("CONCEPTGRAPH_LOG_LEVEL", c.Log.Level)
	if v := os.Getenv("CONCEPTGRAPH_ALLOW_REMOTE"); v != "" {
		c.Server.AllowRemote = v == "true" || v == "1" || v == "yes"
	}
	return nil
}

// Validate checks ranges and the bind policy.
func (c *Config) Validate() error {
	if c.Oracle.Bound < 1 {
		return fmt.Errorf("oracle.bound must be at least 1, got %d: %w", c.Oracle.Bound, ErrInvalid)
	}
	if c.Oracle.Timeout < 0 || c.Server.SessionTTL < 0 || c.Graph.UndoDepth < 0 || c.Server.MaxSessions < 0 {
		return fmt.Errorf("negative limit: %w", ErrInvalid)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w: %w", err, ErrInvalid)
	}
	if c.Server.AllowRemote {
		return nil
	}
	// Only 127.0.0.0/8, ::1, and "localhost" count as loopback.
	if host, _, err := net.SplitHostPort(c.Server.Addr); err == nil && host != "" {
		ip := net.ParseIP(host)
		switch {
		case ip != nil && ip.IsLoopback():
		case ip == nil && host == "localhost":
		default:
			return fmt.Errorf("%w: %s", ErrNonLoopbackBind, c.Server.Addr)
		}
	}
	return nil
}

// Logger builds a logrus logger at the configured level.
func (l LogConfig) Logger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
