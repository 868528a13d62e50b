// Package store provides the optional signal journal.
package store

import (
	"context"
	"time"

	"tradecopilot/internal/models"
)

// Journal records signals and their outcomes. The live session remains the
// source of truth; the journal is an append-mostly history.
type Journal interface {
	RecordSignal(ctx context.Context, rec SignalRecord) error
	CloseSignal(ctx context.Context, id string, outcome models.Outcome, exitPrice, pnl float64, at time.Time) error
	ListSignals(ctx context.Context, filter SignalFilter) ([]SignalRecord, error)
	DailySummary(ctx context.Context, day time.Time) (*DaySummary, error)
	Close() error
}

// SignalRecord is a journaled signal.
type SignalRecord struct {
	ID          string           `json:"id"`
	Asset       models.Asset     `json:"asset"`
	Direction   models.Direction `json:"type"`
	Contracts   int              `json:"contracts"`
	EntryPrice  float64          `json:"entry_price"`
	StopLoss    float64          `json:"stop_loss"`
	Target1     float64          `json:"target1"`
	TargetFinal float64          `json:"target_final"`
	RiskReward  float64          `json:"risk_reward"`
	Reason      string           `json:"reason"`
	OpenedAt    time.Time        `json:"opened_at"`
	Outcome     models.Outcome   `json:"outcome,omitempty"`
	ExitPrice   float64          `json:"exit_price,omitempty"`
	PnL         float64          `json:"pnl,omitempty"`
	ClosedAt    *time.Time       `json:"closed_at,omitempty"`
}

// NewSignalRecord builds a record for a freshly opened signal.
func NewSignalRecord(sig *models.TradeSignal, asset models.Asset, contracts int) SignalRecord {
	return SignalRecord{
		ID:          sig.ID,
		Asset:       asset,
		Direction:   sig.Direction,
		Contracts:   contracts,
		EntryPrice:  sig.EntryPrice,
		StopLoss:    sig.StopLoss,
		Target1:     sig.Target1,
		TargetFinal: sig.TargetFinal,
		RiskReward:  sig.RiskRewardRatio,
		Reason:      sig.Reason,
		OpenedAt:    sig.Timestamp,
	}
}

// Open reports whether the signal is still active.
func (r SignalRecord) Open() bool {
	return r.ClosedAt == nil
}

// SignalFilter narrows ListSignals.
type SignalFilter struct {
	Asset    models.Asset
	From     time.Time
	To       time.Time
	OpenOnly bool
	Limit    int
}

// DaySummary aggregates one trading day.
type DaySummary struct {
	Day     time.Time `json:"day"`
	Signals int       `json:"signals"`
	Closed  int       `json:"closed"`
	Wins    int       `json:"wins"`
	Losses  int       `json:"losses"`
	PnL     float64   `json:"pnl"`
}

// WinRate returns wins as a percentage of closed signals.
func (s DaySummary) WinRate() float64 {
	if s.Closed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closed) * 100
}
