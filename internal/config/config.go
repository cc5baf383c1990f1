package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	HAWC     HAWCConfig     `mapstructure:"hawc"`
	Logic    LogicConfig    `mapstructure:"logic"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HAWCConfig holds HAWC REST API configuration
type HAWCConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LogicConfig holds recommendation rule configuration. Rules listed here
// replace the built-in defaults when a session carries no logic of its own.
type LogicConfig struct {
	Rules []models.LogicRule `mapstructure:"rules"`
}

// ChartConfig holds dose-response chart output configuration
type ChartConfig struct {
	Width      int           `mapstructure:"width"`
	Height     int           `mapstructure:"height"`
	Samples    int           `mapstructure:"samples"`
	Transition time.Duration `mapstructure:"transition"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds run history configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("HAWC_BMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("hawc.base_url", "https://hawcproject.org")
	v.SetDefault("hawc.token", "")
	v.SetDefault("hawc.timeout", "30s")
	v.SetDefault("hawc.poll_interval", "3s")
	v.SetDefault("hawc.max_retries", 3)
	v.SetDefault("hawc.retry_delay_base", "1s")

	v.SetDefault("chart.width", 800)
	v.SetDefault("chart.height", 500)
	v.SetDefault("chart.samples", 100)
	v.SetDefault("chart.transition", "1s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/hawcbmd.db")
	v.SetDefault("storage.max_runs", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.HAWC.BaseURL == "" {
		return eris.New("hawc.base_url is required")
	}
	if c.HAWC.Timeout <= 0 {
		return eris.New("hawc.timeout must be positive")
	}
	if c.HAWC.PollInterval < 500*time.Millisecond {
		return eris.New("hawc.poll_interval must be at least 500ms")
	}
	if c.HAWC.MaxRetries < 1 {
		return eris.New("hawc.max_retries must be at least 1")
	}

	for i, rule := range c.Logic.Rules {
		if rule.Name == "" {
			return eris.Errorf("logic.rules[%d].name is required", i)
		}
		if rule.FailureBin != models.BinWarning && rule.FailureBin != models.BinFailure {
			return eris.Errorf("logic.rules[%d].failure_bin must be 1 (warning) or 2 (failure)", i)
		}
	}

	if c.Chart.Width < 100 || c.Chart.Height < 100 {
		return eris.New("chart.width and chart.height must be at least 100")
	}
	if c.Chart.Samples < 2 {
		return eris.New("chart.samples must be at least 2")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return eris.New("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return eris.New("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return eris.New("storage.db_path is required")
	}
	if c.Storage.MaxRuns < 1 {
		return eris.New("storage.max_runs must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return eris.New("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return eris.New("logging.format must be one of: json, text")
	}

	return nil
}
