// ABOUTME: Configuration loading and parsing for the bioclin gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default endpoints for the hosted Bioclin platform.
const (
	DefaultBaseURL  = "https://bioclin.vindhyadatascience.com/api/v1"
	DefaultLoginURL = "https://bioclin.vindhyadatascience.com/login"
)

// SessionFileName is the credential file kept in the user's home directory.
const SessionFileName = ".bioclin_session.json"

// Config represents the complete gateway configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Browser BrowserConfig `yaml:"browser"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds the remote Bioclin API configuration
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// SessionConfig holds credential file configuration
type SessionConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"-"`

	TTLRaw string `yaml:"ttl"`
}

// BrowserConfig holds interactive login flow configuration
type BrowserConfig struct {
	LoginURL     string        `yaml:"login_url"`
	ExecPath     string        `yaml:"exec_path"` // browser binary; empty means let chromedp find one
	PollLimit    int           `yaml:"poll_limit"`
	PollInterval time.Duration `yaml:"-"`
	SettleDelay  time.Duration `yaml:"-"`

	PollIntervalRaw string `yaml:"poll_interval"`
	SettleDelayRaw  string `yaml:"settle_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration, with the BIOCLIN_API_URL
// environment override already applied.
func Default() *Config {
	cfg := &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Browser: BrowserConfig{
			LoginURL:     DefaultLoginURL,
			PollLimit:    150,
			PollInterval: 2 * time.Second,
			SettleDelay:  2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Fields left unset fall back to the Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the config at path, or returns Default when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// SessionPath returns the configured credential file path, falling back to
// the per-user default under the home directory.
func (c *Config) SessionPath() (string, error) {
	if c.Session.Path != "" {
		return c.Session.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, SessionFileName), nil
}

// applyEnvOverrides applies environment variables that take precedence over
// both the file and the defaults.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BIOCLIN_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if c.Browser.LoginURL == "" {
		return fmt.Errorf("browser.login_url is required")
	}
	if c.Browser.PollLimit <= 0 {
		return fmt.Errorf("browser.poll_limit must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.API.TimeoutRaw, &cfg.API.Timeout, "api.timeout"},
		{cfg.Session.TTLRaw, &cfg.Session.TTL, "session.ttl"},
		{cfg.Browser.PollIntervalRaw, &cfg.Browser.PollInterval, "browser.poll_interval"},
		{cfg.Browser.SettleDelayRaw, &cfg.Browser.SettleDelay, "browser.settle_delay"},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
