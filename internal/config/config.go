// Package config loads pollchat settings from an optional YAML file and the
// environment. Precedence: defaults, then the file, then environment variables.
// A .env file in the working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the merged configuration of the chat CLI and the docstore server.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures the chat client.
type ClientConfig struct {
	// StoreURL is the base URL of the document store.
	StoreURL string `yaml:"store_url"`

	// User is the local user's email.
	User string `yaml:"user"`

	// PollInterval is the message polling period.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FetchTimeout bounds a single poll fetch. Zero means unbounded.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// HTTPTimeout bounds every store request made by the CLI. Zero means unbounded.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// RosterCron is the gronx schedule for roster refreshes.
	RosterCron string `yaml:"roster_cron"`

	// UniqueRecordKeys appends a random suffix to message record keys.
	UniqueRecordKeys bool `yaml:"unique_record_keys"`

	// RateLimitRPS caps store requests per second. Zero disables limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`

	// RateLimitBurst is the limiter burst size.
	RateLimitBurst int `yaml:"rate_limit_burst"`

	// StoreToken is a pre-issued bearer token for the store.
	StoreToken string `yaml:"store_token"`
}

// ServerConfig configures the docstore server.
type ServerConfig struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// TokenSecret enables bearer-token auth when set. Clients holding the same
	// secret mint their own tokens.
	TokenSecret string `yaml:"token_secret"`

	// TokenTTL is the lifetime of minted tokens.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			StoreURL:       "http://localhost:8080",
			PollInterval:   time.Second,
			HTTPTimeout:    10 * time.Second,
			RosterCron:     "*/30 * * * * *",
			RateLimitBurst: 5,
		},
		Server: ServerConfig{
			Port:     8080,
			DBPath:   "./data/docstore.db",
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a non-empty
// path that does not exist is an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CHAT_STORE_URL"); v != "" {
		c.Client.StoreURL = v
	}
	if v := os.Getenv("CHAT_USER"); v != "" {
		c.Client.User = v
	}
	if v := os.Getenv("CHAT_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_POLL_INTERVAL: %w", err)
		}
		c.Client.PollInterval = d
	}
	if v := os.Getenv("CHAT_ROSTER_CRON"); v != "" {
		c.Client.RosterCron = v
	}
	if v := os.Getenv("CHAT_UNIQUE_RECORD_KEYS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_UNIQUE_RECORD_KEYS: %w", err)
		}
		c.Client.UniqueRecordKeys = b
	}
	if v := os.Getenv("CHAT_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid CHAT_RATE_LIMIT_RPS: %w", err)
		}
		c.Client.RateLimitRPS = f
	}
	if v := os.Getenv("CHAT_STORE_TOKEN"); v != "" {
		c.Client.StoreToken = v
	}
	if v := os.Getenv("CHAT_STORE_TOKEN_SECRET"); v != "" {
		c.Server.TokenSecret = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Server.DBPath = v
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Client.StoreURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid store_url: %q", c.Client.StoreURL)
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("invalid poll_interval: must be positive, got %s", c.Client.PollInterval)
	}
	if c.Client.FetchTimeout < 0 || c.Client.HTTPTimeout < 0 {
		return fmt.Errorf("invalid timeout: must not be negative")
	}
	if !gronx.IsValid(c.Client.RosterCron) {
		return fmt.Errorf("invalid roster_cron: %q", c.Client.RosterCron)
	}
	if c.Client.RateLimitRPS < 0 {
		return fmt.Errorf("invalid rate_limit_rps: must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.TokenTTL <= 0 {
		return fmt.Errorf("invalid token_ttl: must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %q", c.Logging.Format)
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
