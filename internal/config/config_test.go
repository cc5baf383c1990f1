package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

func TestLoadAndValidate(t *testing.T) {
	content := `
hawc:
  base_url: "https://hawc.example.org"
  token: "abc123"
  timeout: 10s
  poll_interval: 3s

logic:
  rules:
    - name: gof
      failure_bin: 2
      threshold: 0.05
      continuous_on: true
      dichotomous_on: true

chart:
  width: 640
  height: 400

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  db_path: "./data/test.db"
  max_runs: 20

logging:
  level: "debug"
  format: "text"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://hawc.example.org", cfg.HAWC.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.HAWC.Timeout)
	assert.Equal(t, 3*time.Second, cfg.HAWC.PollInterval)
	assert.Equal(t, 3, cfg.HAWC.MaxRetries, "default retained")
	assert.Equal(t, 100, cfg.Chart.Samples, "default retained")
	assert.Equal(t, 640, cfg.Chart.Width)

	require.Len(t, cfg.Logic.Rules, 1)
	rule := cfg.Logic.Rules[0]
	assert.Equal(t, "gof", rule.Name)
	assert.Equal(t, models.BinFailure, rule.FailureBin)
	require.NotNil(t, rule.Threshold)
	assert.InDelta(t, 0.05, *rule.Threshold, 1e-12)
	assert.True(t, rule.ContinuousOn)
	assert.False(t, rule.CancerDichotomousOn)

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://hawcproject.org", cfg.HAWC.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.HAWC.PollInterval)
	assert.Equal(t, time.Second, cfg.Chart.Transition)
	assert.Equal(t, "./data/hawcbmd.db", cfg.Storage.DBPath)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HAWC_BMD_HAWC_BASE_URL", "https://env.example.org")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.org", cfg.HAWC.BaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		HAWC: HAWCConfig{
			BaseURL:      "https://example.com",
			Timeout:      30 * time.Second,
			PollInterval: 3 * time.Second,
			MaxRetries:   3,
		},
		Chart:   ChartConfig{Width: 800, Height: 500, Samples: 100},
		Storage: StorageConfig{DBPath: "./data/test.db", MaxRuns: 10},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing base url", mutate: func(c *Config) { c.HAWC.BaseURL = "" }, wantErr: true},
		{name: "poll interval too small", mutate: func(c *Config) { c.HAWC.PollInterval = 10 * time.Millisecond }, wantErr: true},
		{name: "missing telegram token when enabled", mutate: func(c *Config) {
			c.Telegram = TelegramConfig{Enabled: true, ChatID: "1"}
		}, wantErr: true},
		{name: "rule without name", mutate: func(c *Config) {
			c.Logic.Rules = []models.LogicRule{{FailureBin: models.BinWarning}}
		}, wantErr: true},
		{name: "rule with pass bin", mutate: func(c *Config) {
			c.Logic.Rules = []models.LogicRule{{Name: "gof", FailureBin: models.BinPass}}
		}, wantErr: true},
		{name: "too few samples", mutate: func(c *Config) { c.Chart.Samples = 1 }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "no max runs", mutate: func(c *Config) { c.Storage.MaxRuns = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
