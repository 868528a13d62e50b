package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradecopilot/internal/agents"
	"tradecopilot/internal/analysis"
	"tradecopilot/internal/config"
	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/models"
	"tradecopilot/internal/session"
	"tradecopilot/internal/store"
)

type stubClient struct {
	text   string
	images int
}

func (s *stubClient) Complete(context.Context, string, string) (string, error) {
	return s.text, nil
}

func (s *stubClient) CompleteWithImages(_ context.Context, _, _ string, images []agents.Image) (string, error) {
	s.images = len(images)
	return s.text, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Console = false
	cfg.Log.File = false
	return &App{Config: cfg, ConfigDir: t.TempDir(), Logger: zerolog.Nop()}
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCmd(app)
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, newTestApp(t), "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != Version {
		t.Errorf("version = %q", got["version"])
	}
}

func TestConfigCommands(t *testing.T) {
	app := newTestApp(t)
	app.Config.Credentials.OpenAI.APIKey = "sk-secret"

	out, err := execute(t, app, "config", "show", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Error("config show leaked the API key")
	}

	out, err = execute(t, app, "config", "path")
	if err != nil || strings.TrimSpace(out) != app.ConfigDir {
		t.Errorf("config path = %q, %v", out, err)
	}

	if _, err := execute(t, app, "config", "validate"); err != nil {
		t.Errorf("validate default config: %v", err)
	}

	app.Config.Signal.ActivationProbability = 2
	if _, err := execute(t, app, "config", "validate"); !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("validate bad config = %v, want ErrConfigInvalid", err)
	}
}

func TestConfigValidateRejectsKeyInConfigFile(t *testing.T) {
	app := newTestApp(t)
	content := "[analyst]\nmodel = \"gpt-4o-mini\"\napi_key = \"sk-abcdefghijklmnopqrstuv\"\n"
	if err := os.WriteFile(filepath.Join(app.ConfigDir, "config.toml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, app, "config", "validate")
	if !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Fatalf("validate = %v, want ErrConfigInvalid", err)
	}
	if strings.Contains(err.Error(), "sk-abcdefghijklmnopqrstuv") {
		t.Errorf("error leaked the key: %v", err)
	}
}

func TestZonesTextShowsWidth(t *testing.T) {
	out, err := execute(t, newTestApp(t), "zones", "--open", "5000", "--high", "5030", "--low", "4980", "--vwap", "5005", "--current", "5020")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, " pts") != 2 {
		t.Errorf("zones output missing widths:\n%s", out)
	}
}

func TestAssetChoices(t *testing.T) {
	if got := assetChoices(); got != "WDO or DOL" {
		t.Errorf("assetChoices() = %q", got)
	}
}

func TestConfigFlagLoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	app := &App{Logger: zerolog.Nop()}
	out, err := execute(t, app, "--config", dir, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != dir {
		t.Errorf("config path = %q, want %q", out, dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("config template not created: %v", err)
	}
}

func TestZonesCommand(t *testing.T) {
	args := []string{"zones", "--json", "--open", "5000", "--high", "5030", "--low", "4980", "--vwap", "5005", "--current", "5020"}
	out, err := execute(t, newTestApp(t), args...)
	if err != nil {
		t.Fatal(err)
	}
	var got zonesResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Mode != "pro" || got.Zones.Context != analysis.ContextBullish || got.Bias != models.BiasBullish {
		t.Errorf("zones = %+v", got)
	}

	out, err = execute(t, newTestApp(t), append(args, "--auto")...)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Mode != "auto" || got.Zones.Context != analysis.ContextUptrend {
		t.Errorf("auto zones = %+v", got)
	}
}

func TestComputeZonesCoercesGarbage(t *testing.T) {
	in := models.ParseManualInput(map[string]string{"open": "abc", "high": "5030", "low": "4980", "vwap": "", "current": "5000"})
	if in.Open != 0 || in.ReferencePrice != 0 {
		t.Fatalf("input = %+v", in)
	}
	res := computeZones(in, false)
	if res.Zones.Buy.Min > res.Zones.Buy.Max || res.Zones.Sell.Min > res.Zones.Sell.Max {
		t.Errorf("zones not ordered: %+v", res.Zones)
	}
}

func TestInsightAndChartsCommands(t *testing.T) {
	app := newTestApp(t)

	out, err := execute(t, app, "insight", "--ticks", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, agents.MsgNotConfigured) {
		t.Errorf("insight without credential = %q", out)
	}

	client := &stubClient{text: "Buyers defend 5000."}
	app.NewClient = func(*config.Config) agents.LLMClient { return client }

	out, err = execute(t, app, "insight", "--ticks", "3")
	if err != nil || !strings.Contains(out, "Buyers defend 5000.") {
		t.Errorf("insight = %q, %v", out, err)
	}

	out, err = execute(t, app, "charts")
	if err != nil || !strings.Contains(out, agents.MsgNoCharts) {
		t.Errorf("charts without images = %q, %v", out, err)
	}

	chart := filepath.Join(t.TempDir(), "daily.png")
	if err := os.WriteFile(chart, []byte("\x89PNG\r\n\x1a\nchart"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, app, "charts", "--daily", chart)
	if err != nil || !strings.Contains(out, "Buyers defend 5000.") || client.images != 1 {
		t.Errorf("charts = %q, %v, images %d", out, err, client.images)
	}

	if _, err := execute(t, app, "charts", "--daily", filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for a missing chart file")
	}
}

func TestJournalCommands(t *testing.T) {
	app := newTestApp(t)
	if _, err := execute(t, app, "journal", "list"); !errors.Is(err, apperrors.ErrJournalDisabled) {
		t.Fatalf("journal list while disabled = %v", err)
	}

	app.Config.Journal.Enabled = true
	app.Config.Journal.Path = filepath.Join(t.TempDir(), "journal.db")

	journal, err := app.OpenJournal()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	opened := time.Date(2026, 10, 16, 10, 0, 0, 0, time.Local)
	sig := &models.TradeSignal{
		ID: "sig-1", Direction: models.DirectionBuy, EntryPrice: 5000, StopLoss: 4995,
		Target1: 5005, TargetFinal: 5010, RiskRewardRatio: 2, Reason: "test", Timestamp: opened,
	}
	if err := journal.RecordSignal(ctx, store.NewSignalRecord(sig, models.AssetWDO, 1)); err != nil {
		t.Fatal(err)
	}
	if err := journal.CloseSignal(ctx, "sig-1", models.OutcomeTarget, 5010, 100, opened.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	journal.Close()

	out, err := execute(t, app, "journal", "list", "--json", "--day", "2026-10-16")
	if err != nil {
		t.Fatal(err)
	}
	var records []store.SignalRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(records) != 1 || records[0].ID != "sig-1" || records[0].PnL != 100 {
		t.Errorf("records = %+v", records)
	}

	out, err = execute(t, app, "journal", "summary", "--json", "--day", "2026-10-16")
	if err != nil {
		t.Fatal(err)
	}
	var summary store.DaySummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Signals != 1 || summary.Wins != 1 || summary.PnL != 100 {
		t.Errorf("summary = %+v", summary)
	}

	if _, err := execute(t, app, "journal", "summary", "--day", "16/10/2026"); err == nil {
		t.Error("expected error for a malformed day")
	}
}

func TestRunCommandStopsAfterTicks(t *testing.T) {
	out, err := execute(t, newTestApp(t), "run", "--json", "--ticks", "3", "--interval", "2ms")
	if err != nil {
		t.Fatal(err)
	}

	dec := json.NewDecoder(strings.NewReader(out))
	views := 0
	for {
		var v session.View
		if err := dec.Decode(&v); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decoding view %d: %v", views, err)
		}
		if v.Asset != models.AssetWDO {
			t.Errorf("view asset = %s", v.Asset)
		}
		views++
	}
	if views != 3 {
		t.Errorf("printed %d views, want 3", views)
	}
}

func TestTickPrinterReportsSignalEvents(t *testing.T) {
	var buf bytes.Buffer
	output := NewPlainOutput(&buf, false)
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	p := newTickPrinter(output, session.View{UpdatedAt: start})

	sig := &models.TradeSignal{ID: "a", Direction: models.DirectionBuy, EntryPrice: 5000, StopLoss: 4995, Target1: 5005, TargetFinal: 5010, Reason: "Buyers in control"}
	v := session.View{Bias: models.BiasBullish, Signal: sig, SignalRisk: 50, SignalReward: 100, UpdatedAt: start.Add(time.Second)}
	v.Snapshot.Price = 5000
	v.Snapshot.Timestamp = v.UpdatedAt
	p.print(v)
	p.print(v) // same tick, ignored

	closed := session.View{
		Bias:       models.BiasBullish,
		LastClosed: &session.ClosedSignal{Signal: *sig, Outcome: models.OutcomeTarget, ExitPrice: 5010, PnL: 100},
		UpdatedAt:  start.Add(2 * time.Second),
	}
	closed.Risk.CurrentPnL = 100
	p.print(closed)

	out := buf.String()
	if p.ticks != 2 {
		t.Errorf("ticks = %d, want 2", p.ticks)
	}
	if strings.Count(out, "Buyers in control") != 1 {
		t.Errorf("signal printed wrong number of times:\n%s", out)
	}
	if !strings.Contains(out, "risk R$ 50,00 reward R$ 100,00") {
		t.Errorf("missing signal card amounts:\n%s", out)
	}
	if !strings.Contains(out, "BUY closed at target 5010.0: +R$ 100,00") {
		t.Errorf("missing close line:\n%s", out)
	}
}
