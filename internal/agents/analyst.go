package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/logging"
	"tradecopilot/internal/models"
	"tradecopilot/internal/resilience"
)

// Request kinds.
const (
	KindInsight = "insight"
	KindCharts  = "charts"
)

// Call statuses reported to the Observer.
const (
	StatusOK           = "ok"
	StatusEmpty        = "empty"
	StatusError        = "error"
	StatusRejected     = "rejected"
	StatusCanceled     = "canceled"
	StatusUnconfigured = "unconfigured"
)

// User-visible analyst messages.
const (
	MsgNotConfigured       = "AI credential not configured."
	MsgChartsNotConfigured = "AI credential not configured. Add a key to analyze charts."
	MsgNoCharts            = "No chart provided for analysis."
	MsgNoInsight           = "No analysis available right now."
	MsgNoChartAnalysis     = "Could not analyze the charts."
	MsgInsightFailed       = "Could not reach the analyst right now."
	MsgChartsFailed        = "Could not process the images. Check that the format is valid."
)

const insightSystemPrompt = `You are a senior day-trading analyst for Brazilian dollar futures (B3).
Write a short, direct summary for the trader in at most two paragraphs. Avoid jargon.
Talk about sentiment and caution, and finish with a quick psychological risk-management tip.`

const chartsSystemPrompt = `You are a tape-reading and technical-analysis specialist for dollar futures (WDO/DOL).
Analyze the supplied daily and/or intraday charts and locate where large institutional players are positioned.
1. Identify high-volume areas (volume profile, consolidations).
2. Estimate the average price of buyers and sellers.
3. Mark the supports and resistances that matter for today.
4. If a VWAP is visible, comment on its importance.
Answer in bullet points using professional trading language and conclude with where liquidity is concentrated
and where the market tends to go if those zones break.`

// Observer receives one notification per analyst call.
type Observer interface {
	ObserveAnalystCall(kind, status string, duration time.Duration)
}

// AnalystConfig holds analyst call settings.
type AnalystConfig struct {
	Timeout time.Duration
	Breaker resilience.Config
}

// DefaultAnalystConfig returns the defaults.
func DefaultAnalystConfig() AnalystConfig {
	return AnalystConfig{
		Timeout: 30 * time.Second,
		Breaker: resilience.DefaultConfig(),
	}
}

// Analyst turns market state and chart images into free-text commentary.
// It never returns errors: every failure maps to a fixed message.
type Analyst struct {
	client   LLMClient
	config   AnalystConfig
	breaker  *resilience.Breaker
	logger   zerolog.Logger
	observer Observer
}

// NewAnalyst creates an analyst. A nil client means no credential is configured.
func NewAnalyst(client LLMClient, config AnalystConfig, logger zerolog.Logger) *Analyst {
	return &Analyst{
		client:  client,
		config:  config,
		breaker: resilience.New("analyst", config.Breaker, nil),
		logger:  logging.WithOperation(logger, "analyst"),
	}
}

// SetObserver registers a call observer.
func (a *Analyst) SetObserver(o Observer) {
	a.observer = o
}

// Configured reports whether a client is available.
func (a *Analyst) Configured() bool {
	return a.client != nil
}

// Breaker exposes the breaker guarding the analyst endpoint.
func (a *Analyst) Breaker() *resilience.Breaker {
	return a.breaker
}

// Insight comments on the current snapshot, bias and reference zones.
func (a *Analyst) Insight(ctx context.Context, s models.MarketSnapshot, bias models.Bias, zones []models.ReferenceZone) string {
	if a.client == nil {
		a.observe(KindInsight, StatusUnconfigured, 0)
		return MsgNotConfigured
	}

	prompt := InsightPrompt(s, bias, zones)
	text, err := a.call(ctx, KindInsight, func(ctx context.Context) (string, error) {
		return a.client.Complete(ctx, insightSystemPrompt, prompt)
	})
	switch {
	case err != nil:
		return MsgInsightFailed
	case text == "":
		return MsgNoInsight
	}
	return text
}

// AnalyzeCharts comments on up to two chart screenshots. Empty inputs are skipped.
func (a *Analyst) AnalyzeCharts(ctx context.Context, daily, intraday []byte) string {
	if a.client == nil {
		a.observe(KindCharts, StatusUnconfigured, 0)
		return MsgChartsNotConfigured
	}

	images := make([]Image, 0, 2)
	for _, data := range [][]byte{daily, intraday} {
		if len(data) > 0 {
			images = append(images, NewImage(data))
		}
	}
	if len(images) == 0 {
		a.logger.Debug().Err(apperrors.ErrNoImages).Str("kind", KindCharts).Msg("Chart analysis skipped")
		return MsgNoCharts
	}

	prompt := ChartsPrompt(len(daily) > 0, len(intraday) > 0)
	text, err := a.call(ctx, KindCharts, func(ctx context.Context) (string, error) {
		return a.client.CompleteWithImages(ctx, chartsSystemPrompt, prompt, images)
	})
	switch {
	case err != nil:
		return MsgChartsFailed
	case text == "":
		return MsgNoChartAnalysis
	}
	return text
}

func (a *Analyst) call(ctx context.Context, kind string, fn func(context.Context) (string, error)) (string, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := resilience.Call(ctx, a.breaker, fn)
	duration := time.Since(start)
	text = strings.TrimSpace(text)

	status := StatusOK
	switch {
	case apperrors.Is(err, resilience.ErrOpen):
		status = StatusRejected
		err = apperrors.NewAnalystError(kind, "call", apperrors.ErrAnalystUnavailable)
	case apperrors.Is(err, context.Canceled):
		a.logger.Debug().Str("kind", kind).Dur("duration", duration).Msg("Analyst call canceled")
		a.observe(kind, StatusCanceled, duration)
		return "", apperrors.NewAnalystError(kind, "call", err)
	case err != nil:
		status = StatusError
		err = apperrors.NewAnalystError(kind, "call", err)
	case text == "":
		status = StatusEmpty
	}

	logging.LogAnalystCall(a.logger, kind, duration, err)
	a.observe(kind, status, duration)
	return text, err
}

func (a *Analyst) observe(kind, status string, d time.Duration) {
	if a.observer != nil {
		a.observer.ObserveAnalystCall(kind, status, d)
	}
}

// InsightPrompt renders the user prompt for a market insight.
func InsightPrompt(s models.MarketSnapshot, bias models.Bias, zones []models.ReferenceZone) string {
	var b strings.Builder
	b.WriteString("Current data:\n")
	fmt.Fprintf(&b, "- Price: %.1f\n", s.Price)
	fmt.Fprintf(&b, "- VWAP: %.1f\n", s.ReferencePrice)
	fmt.Fprintf(&b, "- Buy aggression: %d%%\n", s.AggressionBuy)
	fmt.Fprintf(&b, "- Sell aggression: %d%%\n", s.AggressionSell)
	fmt.Fprintf(&b, "- Computed bias: %s\n", bias)
	fmt.Fprintf(&b, "- Day high: %.1f\n", s.High)
	fmt.Fprintf(&b, "- Day low: %.1f\n", s.Low)

	if len(zones) > 0 {
		b.WriteString("\nRelevant reference zones:\n")
		for _, z := range zones {
			fmt.Fprintf(&b, "- %s: %.1f (%s)\n", z.Label, z.Price, z.Kind)
		}
	}
	return b.String()
}

// ChartsPrompt renders the user prompt for chart analysis.
func ChartsPrompt(daily, intraday bool) string {
	switch {
	case daily && intraday:
		return "The first image is the daily chart and the second is the intraday chart."
	case daily:
		return "The image is the daily chart."
	default:
		return "The image is the intraday chart."
	}
}
