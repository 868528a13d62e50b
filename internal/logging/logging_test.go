package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradecopilot/internal/models"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"bogus": zerolog.InfoLevel,
		"":      zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogSignalFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogSignal(logger, &models.TradeSignal{
		ID: "abc", Direction: models.DirectionBuy, EntryPrice: 5000, StopLoss: 4995, TargetFinal: 5010, RiskRewardRatio: 2,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["event"] != "signal" || entry["direction"] != "BUY" || entry["signal_id"] != "abc" {
		t.Errorf("unexpected log entry: %v", entry)
	}
}

func TestLogAnalystCallFailureIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	LogAnalystCall(logger, "insight", time.Second, context.DeadlineExceeded)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
}

func TestLogAnalystCallMasksKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	key := "sk-abcdefghijklmnopqrstuvwx"
	LogAnalystCall(logger, "charts", time.Second, fmt.Errorf("Incorrect API key provided: %s", key))

	if strings.Contains(buf.String(), key) {
		t.Errorf("log line leaked the key: %s", buf.String())
	}
}

func TestFileOnlyLogger(t *testing.T) {
	cfg := LogConfig{Level: "debug", File: true, FilePath: filepath.Join(t.TempDir(), "logs", "copilot.log"), MaxSize: 1}
	logger := NewLoggerWithConfig(cfg)
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}
	logger.Info().Msg("hello")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := WithLogger(context.Background(), logger)

	fromCtx := FromContext(ctx)
	fromCtx.Info().Msg("x")
	if buf.Len() == 0 {
		t.Error("expected logger from context to write")
	}
	// missing logger is a no-op
	nop := FromContext(context.Background())
	nop.Info().Msg("dropped")
}
