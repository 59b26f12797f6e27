/*
Package config loads objq configuration.

Values come from, in increasing precedence: defaults, a YAML file and
environment variables. Command-line flags are applied by the caller.

The YAML file is decoded strictly; unknown keys are an error:

	locale: en
	log_level: info
	data_dir: ./data
	format: table
	view_store: ~/.objq/views.yaml
	max_depth: 32
	http_timeout: 30s

Environment variables:
  - OBJQ_CONFIG_FILE: path to the configuration file
  - OBJQ_LOCALE: collation locale (BCP 47)
  - OBJQ_LOG_LEVEL: log level (debug, info, warn, error)
  - OBJQ_DATA_DIR: directory of parquet tables
  - OBJQ_FORMAT: output format (table, csv, json)
  - OBJQ_VIEW_STORE: view store file
  - OBJQ_MAX_DEPTH: subquery nesting limit
  - OBJQ_HTTP_TIMEOUT: LOAD request timeout
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Environment variable names for configuration.
const (
	EnvConfigFile  = "OBJQ_CONFIG_FILE"
	EnvLocale      = "OBJQ_LOCALE"
	EnvLogLevel    = "OBJQ_LOG_LEVEL"
	EnvDataDir     = "OBJQ_DATA_DIR"
	EnvFormat      = "OBJQ_FORMAT"
	EnvViewStore   = "OBJQ_VIEW_STORE"
	EnvMaxDepth    = "OBJQ_MAX_DEPTH"
	EnvHTTPTimeout = "OBJQ_HTTP_TIMEOUT"
)

// DefaultConfigPaths are searched in order when no file is named
var DefaultConfigPaths = []string{
	"objq.yaml",
	"$HOME/.config/objq/config.yaml",
}

// Config is the CLI configuration
type Config struct {
	Locale      string        `yaml:"locale"`
	LogLevel    string        `yaml:"log_level"`
	DataDir     string        `yaml:"data_dir"`
	Format      string        `yaml:"format"`
	ViewStore   string        `yaml:"view_store"`
	MaxDepth    int           `yaml:"max_depth"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Locale:      "en",
		LogLevel:    "warn",
		Format:      "table",
		MaxDepth:    32,
		HTTPTimeout: 30 * time.Second,
	}
}

// Load builds the configuration from defaults, the file at path (or the
// first default path found when path is empty) and the environment
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile returns the first configuration file that exists, or ""
func FindConfigFile() string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return os.ExpandEnv(p)
	}
	for _, p := range DefaultConfigPaths {
		expanded := os.ExpandEnv(p)
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	return ""
}

// LoadFile decodes the YAML file at path over c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.Decode(data)
}

// Decode decodes YAML over c, rejecting unknown keys
func (c *Config) Decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides c with the OBJQ_* variables getenv reports
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvLocale); v != "" {
		c.Locale = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := getenv(EnvFormat); v != "" {
		c.Format = v
	}
	if v := getenv(EnvViewStore); v != "" {
		c.ViewStore = v
	}
	if v := getenv(EnvMaxDepth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxDepth, err)
		}
		c.MaxDepth = n
	}
	if v := getenv(EnvHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHTTPTimeout, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if _, err := language.Parse(c.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("invalid locale: %s", c.Locale))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	switch strings.ToLower(c.Format) {
	case "table", "csv", "json", "jsonl":
	default:
		errs = append(errs, fmt.Sprintf("invalid format: %s (must be table, csv or json)", c.Format))
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Sprintf("invalid max_depth: %d (must be positive)", c.MaxDepth))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid http_timeout: %s", c.HTTPTimeout))
	}
	if c.DataDir != "" {
		if st, err := os.Stat(c.DataDir); err != nil || !st.IsDir() {
			errs = append(errs, fmt.Sprintf("data_dir is not a directory: %s", c.DataDir))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Level returns the slog level named by LogLevel
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

// ViewStorePath returns ViewStore with ~ and environment variables expanded
func (c *Config) ViewStorePath() string {
	p := os.ExpandEnv(c.ViewStore)
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", s)
}
