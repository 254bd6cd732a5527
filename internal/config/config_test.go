package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
provider: resend

sender:
  from_email: "news@example.com"
  from_name: "Example News"

token:
  secret_key: "file-secret"
  expiry_hours: 48

sending:
  rate_limit: 5
  result_log: "out/results.csv"

resend:
  api_key: "re_test_key"

confirm:
  host: "0.0.0.0"
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderResend, cfg.Provider)
	assert.Equal(t, "news@example.com", cfg.Sender.FromEmail)
	assert.Equal(t, "Example News", cfg.Sender.FromName)
	assert.Equal(t, "file-secret", cfg.Token.SecretKey)
	assert.Equal(t, 48, cfg.Token.ExpiryHours)
	assert.Equal(t, 5.0, cfg.Sending.RateLimit)
	assert.Equal(t, "out/results.csv", cfg.Sending.ResultLog)
	assert.Equal(t, "re_test_key", cfg.Resend.APIKey)
	assert.Equal(t, "0.0.0.0", cfg.Confirm.Host)
	assert.Equal(t, 9090, cfg.Confirm.Port)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
sender:
  from_email: "news@example.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderSparkPost, cfg.Provider)
	assert.Equal(t, "https://api.sparkpost.com/api/v1", cfg.SparkPost.BaseURL)
	assert.Equal(t, 30, cfg.SparkPost.TimeoutSeconds)
	assert.Equal(t, "us-east-1", cfg.SES.Region)
	assert.Equal(t, 10.0, cfg.Sending.RateLimit)
	assert.Equal(t, "results.csv", cfg.Sending.ResultLog)
	assert.Equal(t, 72, cfg.Token.ExpiryHours)
	assert.Equal(t, 8085, cfg.Confirm.Port)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
token:
  secret_key: "file-secret"
sparkpost:
  api_key: "file-key"
`)

	t.Setenv("OPTIN_TOKEN_SECRET", "env-secret")
	t.Setenv("SPARKPOST_API_KEY", "env-key")
	t.Setenv("OPTIN_RATE_LIMIT", "2.5")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Token.SecretKey)
	assert.Equal(t, "env-key", cfg.SparkPost.APIKey)
	assert.Equal(t, 2.5, cfg.Sending.RateLimit)
}

func TestLoadFromEnvBadRateLimit(t *testing.T) {
	path := writeConfig(t, `{}`)
	t.Setenv("OPTIN_RATE_LIMIT", "fast")

	_, err := LoadFromEnv(path)
	assert.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Provider:  ProviderSparkPost,
		Sender:    SenderConfig{FromEmail: "news@example.com"},
		Token:     TokenConfig{SecretKey: "secret"},
		Sending:   SendingConfig{RateLimit: 10, ResultLog: "results.csv"},
		SparkPost: SparkPostConfig{APIKey: "key"},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Token.SecretKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_key")
}

func TestValidateFromEmail(t *testing.T) {
	cfg := validConfig()
	cfg.Sender.FromEmail = ""
	assert.Error(t, cfg.Validate())

	cfg.Sender.FromEmail = "not an address"
	assert.Error(t, cfg.Validate())
}

func TestValidateRateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Sending.RateLimit = 0
	assert.Error(t, cfg.Validate())

	cfg.Sending.RateLimit = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateProviderCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.SparkPost.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Provider = ProviderSES
	assert.Error(t, cfg.Validate())
	cfg.SES = SESConfig{AccessKey: "ak", SecretKey: "sk"}
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Provider = "pigeon"
	assert.Error(t, cfg.Validate())
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, int64(45_000_000_000), SparkPostConfig{TimeoutSeconds: 45}.Timeout().Nanoseconds())
	assert.Equal(t, int64(30_000_000_000), SESConfig{TimeoutSeconds: 30}.Timeout().Nanoseconds())
}
