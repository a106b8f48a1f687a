package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("EMAIL_PROVIDER", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.AI.MaxTokens)
	assert.Equal(t, 0.8, cfg.AI.Temperature)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
	assert.Equal(t, 5, cfg.Generation.BatchWidth)
	assert.Equal(t, 24*time.Hour, cfg.Generation.ReportTTL())
}

func TestLoadYAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
ai:
  provider: bedrock
  model: anthropic.claude-test
  max_tokens: 1500
email:
  provider: ses
  sender_name: Dana
generation:
  batch_width: 8
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("EMAIL_PROVIDER", "")
	t.Setenv("GENERATION_BATCH_WIDTH", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "bedrock", cfg.AI.Provider)
	assert.Equal(t, "anthropic.claude-test", cfg.AI.Model)
	assert.Equal(t, 1500, cfg.AI.MaxTokens)
	assert.Equal(t, 0.8, cfg.AI.Temperature, "unset keys keep defaults")
	assert.Equal(t, "ses", cfg.Email.Provider)
	assert.Equal(t, "Dana", cfg.Email.SenderName)
	assert.Equal(t, 3, cfg.Generation.BatchWidth, "env wins over file")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("EMAIL_PROVIDER", "")
	t.Setenv("GENERATION_BATCH_WIDTH", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_PROVIDER")
	assert.Contains(t, err.Error(), "GENERATION_BATCH_WIDTH")
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "w", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/w?sslmode=disable", d.DSN())
	d.URL = "postgres://elsewhere"
	assert.Equal(t, "postgres://elsewhere", d.DSN())
}
