// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"tradecopilot/internal/models"
	"tradecopilot/internal/security"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "tradecopilot", "logs", "copilot.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg LogConfig, console io.Writer) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithAsset adds an asset to the logger context.
func WithAsset(logger zerolog.Logger, asset models.Asset) zerolog.Logger {
	return logger.With().Str("asset", string(asset)).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogSignal logs a newly opened trade signal.
func LogSignal(logger zerolog.Logger, sig *models.TradeSignal) {
	logger.Info().
		Str("event", "signal").
		Str("signal_id", sig.ID).
		Str("direction", string(sig.Direction)).
		Float64("entry", sig.EntryPrice).
		Float64("stop", sig.StopLoss).
		Float64("target", sig.TargetFinal).
		Float64("risk_reward", sig.RiskRewardRatio).
		Msg("Signal opened")
}

// LogOutcome logs a signal closed on target or stop.
func LogOutcome(logger zerolog.Logger, sig *models.TradeSignal, outcome models.Outcome, exitPrice, pnl float64) {
	logger.Info().
		Str("event", "outcome").
		Str("signal_id", sig.ID).
		Str("direction", string(sig.Direction)).
		Str("outcome", string(outcome)).
		Float64("exit", exitPrice).
		Float64("pnl", pnl).
		Msg("Signal closed")
}

// LogRiskBlock logs the daily loss breaker tripping.
func LogRiskBlock(logger zerolog.Logger, pnl, limit float64) {
	logger.Warn().
		Str("event", "risk_block").
		Float64("pnl", pnl).
		Float64("limit", limit).
		Msg("Daily loss limit reached, trading blocked")
}

// LogAnalystCall logs a call to the AI analyst. Failures are logged at warn level.
func LogAnalystCall(logger zerolog.Logger, kind string, duration time.Duration, err error) {
	if err != nil {
		logger.Warn().
			Str("event", "analyst_call").
			Str("kind", kind).
			Dur("duration", duration).
			Str("error", security.MaskSecrets(err.Error())).
			Msg("Analyst call failed")
		return
	}
	logger.Debug().
		Str("event", "analyst_call").
		Str("kind", kind).
		Dur("duration", duration).
		Msg("Analyst call completed")
}
