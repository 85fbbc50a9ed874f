// Package config handles loading and persisting user configuration for
// trafficsense. Settings live in ~/.trafficsense/config.toml or
// config.json; a .env file and TRAFFICSENSE_* variables override them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	dirName      = ".trafficsense"
	jsonFileName = "config.json"
	tomlFileName = "config.toml"

	defaultEndpoint  = "http://localhost:8000/api/chat/stream"
	defaultTimeout   = 30 * time.Second
	defaultLogLevel  = "warn"
	defaultLogFormat = "text"

	envKeyEndpoint = "TRAFFICSENSE_ENDPOINT"
	envKeyTimeout  = "TRAFFICSENSE_TIMEOUT"
	envKeyLogLevel = "TRAFFICSENSE_LOG_LEVEL"
	envKeyOTLP     = "TRAFFICSENSE_OTLP_ENDPOINT"
)

// Config holds the user's configuration.
type Config struct {
	Endpoint     string `json:"endpoint" toml:"endpoint"`
	Timeout      string `json:"timeout,omitempty" toml:"timeout,omitempty"`
	LogLevel     string `json:"log_level,omitempty" toml:"log_level,omitempty"`
	LogFormat    string `json:"log_format,omitempty" toml:"log_format,omitempty"`
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" toml:"otlp_endpoint,omitempty"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func jsonPath() string {
	return filepath.Join(Dir(), jsonFileName)
}

func tomlPath() string {
	return filepath.Join(Dir(), tomlFileName)
}

// Path returns the config file in use: the TOML file if present,
// otherwise the JSON file (which may not exist yet).
func Path() string {
	if _, err := os.Stat(tomlPath()); err == nil {
		return tomlPath()
	}
	return jsonPath()
}

func defaults() *Config {
	return &Config{
		Endpoint:  defaultEndpoint,
		Timeout:   defaultTimeout.String(),
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

// Load reads the configuration from disk, .env and environment variables.
// A missing file is not an error.
func Load() (*Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	cfg, err := readFile()
	if err != nil {
		return nil, err
	}

	if v := os.Getenv(envKeyEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(envKeyTimeout); v != "" {
		cfg.Timeout = v
	}
	if v := os.Getenv(envKeyLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(envKeyOTLP); v != "" {
		cfg.OTLPEndpoint = v
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile() (*Config, error) {
	cfg := defaults()
	path := Path()

	if strings.HasSuffix(path, ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// normalize fills blanks with defaults and validates the endpoint.
func (c *Config) normalize() error {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	endpoint, err := NormalizeEndpoint(c.Endpoint)
	if err != nil {
		return err
	}
	c.Endpoint = endpoint

	if c.Timeout == "" {
		c.Timeout = defaultTimeout.String()
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	return nil
}

// RequestTimeout returns the parsed header timeout.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

// NormalizeEndpoint adds a missing http:// scheme and checks the URL.
func NormalizeEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// save persists cfg in the format of the file currently in use.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	path := Path()
	if strings.HasSuffix(path, ".toml") {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// update loads the stored file (ignoring env overrides), applies fn and
// writes the result back.
func update(fn func(*Config) error) error {
	cfg, err := readFile()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return save(cfg)
}

// SetEndpoint saves the chat stream endpoint.
func SetEndpoint(endpoint string) error {
	normalized, err := NormalizeEndpoint(endpoint)
	if err != nil {
		return err
	}
	return update(func(c *Config) error {
		c.Endpoint = normalized
		return nil
	})
}

// SetTimeout saves the response header timeout.
func SetTimeout(timeout string) error {
	d, err := time.ParseDuration(timeout)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", timeout)
	}
	return update(func(c *Config) error {
		c.Timeout = d.String()
		return nil
	})
}
