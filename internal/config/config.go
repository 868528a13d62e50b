// Package config provides configuration management for the trading copilot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/logging"
	"tradecopilot/internal/models"
	"tradecopilot/internal/signal"
)

// AppName is used for the configuration directory and log file names.
const AppName = "tradecopilot"

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig     `mapstructure:"trading"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Signal      SignalConfig      `mapstructure:"signal"`
	Analyst     AnalystConfig     `mapstructure:"analyst"`
	Server      ServerConfig      `mapstructure:"server"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Log         logging.LogConfig `mapstructure:"log"`
	Credentials Credentials       `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds the simulated trading session settings.
type TradingConfig struct {
	Asset        string        `mapstructure:"asset"` // WDO, DOL
	Contracts    int           `mapstructure:"contracts"`
	Capital      float64       `mapstructure:"capital"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	StartTime    string        `mapstructure:"start_time"`
	EndTime      string        `mapstructure:"end_time"`
}

// RiskConfig holds risk management configuration.
type RiskConfig struct {
	MaxRiskPerTrade float64 `mapstructure:"max_risk_per_trade"`
	MaxDailyLoss    float64 `mapstructure:"max_daily_loss"`
}

// SignalConfig holds the signal generator constants.
type SignalConfig struct {
	ActivationProbability float64 `mapstructure:"activation_probability"`
	StopPoints            float64 `mapstructure:"stop_points"`
	TargetPoints          float64 `mapstructure:"target_points"`
}

// AnalystConfig holds AI analyst configuration.
type AnalystConfig struct {
	Model            string        `mapstructure:"model"`
	VisionModel      string        `mapstructure:"vision_model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`

	// RequestsPerMinute caps dashboard analyst requests; 0 disables the cap.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// ServerConfig holds the dashboard server configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// JournalConfig holds the signal journal configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.asset", string(models.AssetWDO))
	v.SetDefault("trading.contracts", 1)
	v.SetDefault("trading.capital", 5000.0)
	v.SetDefault("trading.tick_interval", "1500ms")
	v.SetDefault("trading.start_time", "09:00")
	v.SetDefault("trading.end_time", "17:00")

	v.SetDefault("risk.max_risk_per_trade", 150.0)
	v.SetDefault("risk.max_daily_loss", 500.0)

	v.SetDefault("signal.activation_probability", signal.DefaultActivationProbability)
	v.SetDefault("signal.stop_points", signal.DefaultStopPoints)
	v.SetDefault("signal.target_points", signal.DefaultTargetPoints)

	v.SetDefault("analyst.model", "gpt-4o-mini")
	v.SetDefault("analyst.vision_model", "gpt-4o-mini")
	v.SetDefault("analyst.timeout", "30s")
	v.SetDefault("analyst.failure_threshold", 3)
	v.SetDefault("analyst.cooldown", "1m")
	v.SetDefault("analyst.requests_per_minute", 6)
	v.SetDefault("analyst.burst", 3)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", "")

	logDefaults := logging.DefaultLogConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.console", logDefaults.Console)
	v.SetDefault("log.file", logDefaults.File)
	v.SetDefault("log.file_path", logDefaults.FilePath)
	v.SetDefault("log.max_size", logDefaults.MaxSize)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age", logDefaults.MaxAge)
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// defaults are static and always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// Missing files are created from templates.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(configDir, "journal.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Use restricted permissions for credentials file
		if err := createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Credentials.OpenAI.BaseURL = v
	}
	if v := os.Getenv("COPILOT_ASSET"); v != "" {
		cfg.Trading.Asset = v
	}
	if v := os.Getenv("COPILOT_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !models.Asset(c.Trading.Asset).Valid() {
		return apperrors.NewValidationError("trading.asset", c.Trading.Asset, "must be WDO or DOL")
	}
	if c.Trading.Contracts < 1 {
		return apperrors.NewValidationError("trading.contracts", c.Trading.Contracts, "must be at least 1")
	}
	if c.Trading.TickInterval <= 0 {
		return apperrors.NewValidationError("trading.tick_interval", c.Trading.TickInterval, "must be positive")
	}
	if c.Risk.MaxRiskPerTrade < 0 {
		return apperrors.NewValidationError("risk.max_risk_per_trade", c.Risk.MaxRiskPerTrade, "must be non-negative")
	}
	if c.Risk.MaxDailyLoss < 0 {
		return apperrors.NewValidationError("risk.max_daily_loss", c.Risk.MaxDailyLoss, "must be non-negative")
	}
	if c.Signal.ActivationProbability < 0 || c.Signal.ActivationProbability > 1 {
		return apperrors.NewValidationError("signal.activation_probability", c.Signal.ActivationProbability, "must be between 0 and 1")
	}
	if c.Signal.StopPoints <= 0 {
		return apperrors.NewValidationError("signal.stop_points", c.Signal.StopPoints, "must be positive")
	}
	if c.Signal.TargetPoints <= 0 {
		return apperrors.NewValidationError("signal.target_points", c.Signal.TargetPoints, "must be positive")
	}
	if c.Analyst.Timeout <= 0 {
		return apperrors.NewValidationError("analyst.timeout", c.Analyst.Timeout, "must be positive")
	}
	if c.Analyst.RequestsPerMinute < 0 {
		return apperrors.NewValidationError("analyst.requests_per_minute", c.Analyst.RequestsPerMinute, "must be non-negative")
	}
	return nil
}

// Asset returns the configured asset.
func (c *Config) Asset() models.Asset {
	return models.ParseAsset(c.Trading.Asset)
}

// RiskBudget returns the configured risk limits.
func (c *Config) RiskBudget() models.RiskBudget {
	return models.RiskBudget{
		MaxRiskPerTrade: c.Risk.MaxRiskPerTrade,
		MaxDailyLoss:    c.Risk.MaxDailyLoss,
	}
}

// SignalConfig returns the signal generator configuration.
func (c *Config) SignalConfig() signal.Config {
	return signal.Config{
		ActivationProbability: c.Signal.ActivationProbability,
		StopPoints:            c.Signal.StopPoints,
		TargetPoints:          c.Signal.TargetPoints,
	}
}

// HasAnalystCredential reports whether an AI credential is configured.
func (c *Config) HasAnalystCredential() bool {
	return c.Credentials.OpenAI.APIKey != ""
}
