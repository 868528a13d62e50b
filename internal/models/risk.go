package models

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// RiskBudget is the operator's risk configuration. The core reads it, never writes it.
type RiskBudget struct {
	MaxRiskPerTrade float64 `json:"maxRiskPerTrade"`
	MaxDailyLoss    float64 `json:"maxDailyLoss"`
}

// RiskStatus tracks the realized result of the trading day.
type RiskStatus struct {
	CurrentPnL  float64 `json:"currentPnL"`
	TradesCount int     `json:"tradesCount"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Blocked     bool    `json:"isBlocked"`
	MaxLossHit  bool    `json:"maxLossHit"`
}

// LossPercent returns how much of the daily loss limit has been consumed, in [0, 100].
func (r RiskStatus) LossPercent(maxDailyLoss float64) float64 {
	if maxDailyLoss <= 0 {
		if r.CurrentPnL < 0 {
			return 100
		}
		return 0
	}
	loss := math.Abs(math.Min(0, r.CurrentPnL))
	return math.Min(100, loss/maxDailyLoss*100)
}

// Remaining returns how much more can be lost before the daily limit is hit.
// It never goes below zero.
func (r RiskStatus) Remaining(maxDailyLoss float64) float64 {
	return math.Max(0, maxDailyLoss+r.CurrentPnL)
}

// ManualReferenceInput pins the simulator to values read off a real chart.
type ManualReferenceInput struct {
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	ReferencePrice float64 `json:"vwap"`
	Current        float64 `json:"current"`
}

// Range returns high minus low.
func (m ManualReferenceInput) Range() float64 {
	return m.High - m.Low
}

// ParseManualInput builds a manual reference from raw operator fields.
// Missing or non-numeric fields become zero.
func ParseManualInput(fields map[string]string) ManualReferenceInput {
	return ManualReferenceInput{
		Open:           CoerceFloat(fields["open"]),
		High:           CoerceFloat(fields["high"]),
		Low:            CoerceFloat(fields["low"]),
		ReferencePrice: CoerceFloat(fields["vwap"]),
		Current:        CoerceFloat(fields["current"]),
	}
}

// CoerceFloat converts operator input to a number, yielding zero when it is not numeric.
func CoerceFloat(v interface{}) float64 {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// CoerceInt converts operator input to an integer, yielding zero when it is not numeric.
func CoerceInt(v interface{}) int {
	return int(CoerceFloat(v))
}
