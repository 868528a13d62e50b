package models

import (
	"math"
	"time"
)

// Direction represents the side of a trade idea.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (d Direction) Sign() float64 {
	if d == DirectionSell {
		return -1
	}
	return 1
}

// Outcome describes how an active signal was closed.
type Outcome string

const (
	OutcomeTarget Outcome = "TARGET"
	OutcomeStop   Outcome = "STOP"

	// OutcomeDiscarded marks a signal dropped by an asset change or day reset.
	// It realizes no P&L.
	OutcomeDiscarded Outcome = "DISCARDED"
)

// TradeSignal is a trade idea with entry, stop and targets.
// For BUY: StopLoss < EntryPrice < Target1 < TargetFinal. SELL is the mirror image.
type TradeSignal struct {
	ID              string    `json:"id"`
	Direction       Direction `json:"type"`
	EntryPrice      float64   `json:"entryPrice"`
	StopLoss        float64   `json:"stopLoss"`
	Target1         float64   `json:"target1"`
	TargetFinal     float64   `json:"targetFinal"`
	RiskRewardRatio float64   `json:"riskRewardRatio"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// Hit reports whether price has reached the final target or the stop.
func (s *TradeSignal) Hit(price float64) (Outcome, bool) {
	switch s.Direction {
	case DirectionBuy:
		if price >= s.TargetFinal {
			return OutcomeTarget, true
		}
		if price <= s.StopLoss {
			return OutcomeStop, true
		}
	case DirectionSell:
		if price <= s.TargetFinal {
			return OutcomeTarget, true
		}
		if price >= s.StopLoss {
			return OutcomeStop, true
		}
	}
	return "", false
}

// PnL returns the realized result of closing the signal at exitPrice.
func (s *TradeSignal) PnL(exitPrice, valuePerPoint float64, contracts int) float64 {
	return (exitPrice - s.EntryPrice) * s.Direction.Sign() * valuePerPoint * float64(contracts)
}

// RiskAmount returns the currency at risk between entry and stop.
func (s *TradeSignal) RiskAmount(valuePerPoint float64, contracts int) float64 {
	return math.Abs(s.EntryPrice-s.StopLoss) * valuePerPoint * float64(contracts)
}

// RewardAmount returns the currency gained if the final target is reached.
func (s *TradeSignal) RewardAmount(valuePerPoint float64, contracts int) float64 {
	return math.Abs(s.TargetFinal-s.EntryPrice) * valuePerPoint * float64(contracts)
}
