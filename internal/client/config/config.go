package config

import (
	"fmt"
	"net/url"
	"time"
)

// Authentication modes understood by the transport.
const (
	AuthModeCookie = "cookie"
	AuthModeBearer = "bearer"
)

// Config holds runtime settings for the NextShape client.
//
// Units: RequestTimeout and SessionProbeInterval are time.Duration values; a
// zero SessionProbeInterval disables the background session probe.
type Config struct {
	APIBaseURL           string        `envconfig:"API_BASE_URL"`
	RequestTimeout       time.Duration `envconfig:"REQUEST_TIMEOUT"`
	AuthMode             string        `envconfig:"AUTH_MODE"`
	DatabasePath         string        `envconfig:"DATABASE_PATH"`
	LogLevel             string        `envconfig:"LOG_LEVEL"`
	LogFormat            string        `envconfig:"LOG_FORMAT"`
	SessionProbeInterval time.Duration `envconfig:"SESSION_PROBE_INTERVAL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api/"
	c.RequestTimeout = 20 * time.Second
	c.AuthMode = AuthModeCookie
	c.DatabasePath = "nextshape.db"
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.SessionProbeInterval = 0
}

// Validate checks values that later layers cannot recover from.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url %q", c.APIBaseURL)
	}
	if c.AuthMode != AuthModeCookie && c.AuthMode != AuthModeBearer {
		return fmt.Errorf("invalid auth mode %q", c.AuthMode)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.SessionProbeInterval < 0 {
		return fmt.Errorf("session probe interval must not be negative, got %s", c.SessionProbeInterval)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is empty")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones. args are the program arguments without
// the binary name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
