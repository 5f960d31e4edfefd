// Package config loads sharedstore configuration.
//
// Configuration is YAML with ${VAR_NAME} environment expansion. Variables
// may come from a .env file loaded before expansion. Duration strings such
// as "1s" or "250ms" are parsed into time.Duration values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete sharedstore configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Lifecycle   LifecycleConfig   `yaml:"lifecycle"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StoreConfig locates the store and its schema.
type StoreConfig struct {
	Name string `yaml:"name"`

	// GroupPrefix is the app group; the group id is "<prefix>.database"
	// unless GroupID overrides it.
	GroupPrefix string `yaml:"group_prefix"`
	GroupID     string `yaml:"group_id"`

	// ContainerRoot holds one shared directory per group. Empty selects the
	// per-user default.
	ContainerRoot string `yaml:"container_root"`

	// SchemaDir holds the CUE entity declarations.
	SchemaDir string `yaml:"schema_dir"`
}

// DiagnosticsConfig configures failure reporting.
type DiagnosticsConfig struct {
	// Endpoint receives JSON event posts. Empty logs events instead.
	Endpoint string `yaml:"endpoint"`

	GracePeriod    time.Duration `yaml:"-"`
	GracePeriodRaw string        `yaml:"grace_period"`

	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// LifecycleConfig configures the process lifecycle snapshot.
type LifecycleConfig struct {
	// ProtectedDir is probed for writability to report protected data
	// availability. Empty reports it as always available.
	ProtectedDir string `yaml:"protected_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Name:        "Database",
			GroupPrefix: "group.sharedstore",
			SchemaDir:   "schema",
		},
		Diagnostics: DiagnosticsConfig{
			GracePeriod:   time.Second,
			RatePerSecond: 1,
			Burst:         5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file on top of Default. Environment variables
// in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for configuration already in memory.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	cfg.Diagnostics.GracePeriod = 0
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if cfg.Diagnostics.GracePeriod == 0 {
		cfg.Diagnostics.GracePeriod = time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a .env file into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading env file %s: %w", path, err)
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarRe.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func parseDurations(cfg *Config) error {
	if cfg.Diagnostics.GracePeriodRaw != "" {
		d, err := time.ParseDuration(cfg.Diagnostics.GracePeriodRaw)
		if err != nil {
			return fmt.Errorf("parsing grace_period %q: %w", cfg.Diagnostics.GracePeriodRaw, err)
		}
		cfg.Diagnostics.GracePeriod = d
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Store.Name == "" {
		return fmt.Errorf("store.name is required")
	}
	if c.Store.GroupID == "" && c.Store.GroupPrefix == "" {
		return fmt.Errorf("store.group_prefix or store.group_id is required")
	}
	if c.Diagnostics.GracePeriod < 0 {
		return fmt.Errorf("diagnostics.grace_period must not be negative")
	}
	if c.Diagnostics.RatePerSecond <= 0 {
		return fmt.Errorf("diagnostics.rate_per_second must be positive")
	}
	if c.Diagnostics.Burst <= 0 {
		return fmt.Errorf("diagnostics.burst must be positive")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// ResolvedGroupID returns the explicit group id or derives it from the
// group prefix.
func (s StoreConfig) ResolvedGroupID() string {
	if s.GroupID != "" {
		return s.GroupID
	}
	return s.GroupPrefix + ".database"
}

// SlogLevel returns the configured log level. Invalid levels were rejected
// by Validate and map to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	level, err := parseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", s)
	}
}
