// Package config loads the mailer configuration from a YAML file with
// environment variable overrides. Secrets can live in a local .env file or
// in real environment variables on the host.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/optin-mailer/internal/emailaddr"
)

// Provider names accepted in the "provider" field.
const (
	ProviderSparkPost = "sparkpost"
	ProviderSES       = "ses"
	ProviderResend    = "resend"
)

// Config holds all configuration for the mailer and the confirm server.
type Config struct {
	Provider  string          `yaml:"provider"`
	Sender    SenderConfig    `yaml:"sender"`
	Token     TokenConfig     `yaml:"token"`
	Sending   SendingConfig   `yaml:"sending"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	SES       SESConfig       `yaml:"ses"`
	Resend    ResendConfig    `yaml:"resend"`
	Confirm   ConfirmConfig   `yaml:"confirm"`
}

// SenderConfig identifies the from address on outgoing mail.
type SenderConfig struct {
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// TokenConfig holds confirmation token settings. SecretKey has no default:
// a missing key is a fatal configuration error, never silently replaced.
type TokenConfig struct {
	SecretKey   string `yaml:"secret_key"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

// Expiry returns the configured token lifetime.
func (c TokenConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

// SendingConfig governs the dispatch loop.
type SendingConfig struct {
	RateLimit float64 `yaml:"rate_limit"` // sends per second
	ResultLog string  `yaml:"result_log"`
}

// SparkPostConfig holds SparkPost API configuration.
type SparkPostConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c SparkPostConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES API configuration.
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResendConfig holds Resend API configuration.
type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

// ConfirmConfig holds the confirmation landing endpoint settings.
type ConfirmConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Provider == "" {
		cfg.Provider = ProviderSparkPost
	}
	if cfg.SparkPost.BaseURL == "" {
		cfg.SparkPost.BaseURL = "https://api.sparkpost.com/api/v1"
	}
	if cfg.SparkPost.TimeoutSeconds == 0 {
		cfg.SparkPost.TimeoutSeconds = 30
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Sending.RateLimit == 0 {
		cfg.Sending.RateLimit = 10
	}
	if cfg.Sending.ResultLog == "" {
		cfg.Sending.ResultLog = "results.csv"
	}
	if cfg.Token.ExpiryHours == 0 {
		cfg.Token.ExpiryHours = 72
	}
	if cfg.Confirm.Host == "" {
		cfg.Confirm.Host = "localhost"
	}
	if cfg.Confirm.Port == 0 {
		cfg.Confirm.Port = 8085
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("OPTIN_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("OPTIN_FROM_EMAIL"); v != "" {
		cfg.Sender.FromEmail = v
	}
	if v := os.Getenv("OPTIN_FROM_NAME"); v != "" {
		cfg.Sender.FromName = v
	}
	if v := os.Getenv("OPTIN_TOKEN_SECRET"); v != "" {
		cfg.Token.SecretKey = v
	}
	if v := os.Getenv("OPTIN_RESULT_LOG"); v != "" {
		cfg.Sending.ResultLog = v
	}
	if v := os.Getenv("OPTIN_RATE_LIMIT"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OPTIN_RATE_LIMIT %q: %w", v, err)
		}
		cfg.Sending.RateLimit = rate
	}
	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		cfg.SparkPost.BaseURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Resend.APIKey = v
	}

	return cfg, nil
}

// Validate checks everything that is fatal to a run: the token secret, the
// from address, the rate limit, and the selected provider's credentials.
func (c *Config) Validate() error {
	if c.Token.SecretKey == "" {
		return errors.New("token.secret_key is required (set OPTIN_TOKEN_SECRET)")
	}
	if c.Sender.FromEmail == "" {
		return errors.New("sender.from_email is required")
	}
	if !emailaddr.Valid(c.Sender.FromEmail) {
		return fmt.Errorf("sender.from_email %q is not a valid address", c.Sender.FromEmail)
	}
	if c.Sending.RateLimit <= 0 {
		return fmt.Errorf("sending.rate_limit must be > 0, got %v", c.Sending.RateLimit)
	}

	switch c.Provider {
	case ProviderSparkPost:
		if c.SparkPost.APIKey == "" {
			return errors.New("sparkpost.api_key is required (set SPARKPOST_API_KEY)")
		}
	case ProviderSES:
		if c.SES.AccessKey == "" || c.SES.SecretKey == "" {
			return errors.New("ses.access_key and ses.secret_key are required")
		}
	case ProviderResend:
		if c.Resend.APIKey == "" {
			return errors.New("resend.api_key is required (set RESEND_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown provider %q (want sparkpost, ses, or resend)", c.Provider)
	}

	return nil
}
