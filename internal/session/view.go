package session

import (
	"time"

	"tradecopilot/internal/models"
)

// View is an immutable copy of session state published to readers.
type View struct {
	Asset          models.Asset                 `json:"asset"`
	AssetName      string                       `json:"assetName"`
	Running        bool                         `json:"running"`
	Manual         *models.ManualReferenceInput `json:"manual,omitempty"`
	Snapshot       models.MarketSnapshot        `json:"snapshot"`
	Bias           models.Bias                  `json:"bias"`
	Zones          models.ZonePair              `json:"zones"`
	ReferenceZones []models.ReferenceZone       `json:"referenceZones"`
	NearReference  []models.ReferenceZone       `json:"nearReference,omitempty"`
	Signal         *models.TradeSignal          `json:"signal,omitempty"`
	SignalRisk     float64                      `json:"signalRisk,omitempty"`
	SignalReward   float64                      `json:"signalReward,omitempty"`
	LastClosed     *ClosedSignal                `json:"lastClosed,omitempty"`
	Risk           models.RiskStatus            `json:"risk"`
	LossPercent    float64                      `json:"lossPercent"`
	RemainingLoss  float64                      `json:"remainingLoss"`
	Settings       Settings                     `json:"settings"`
	History        []models.PricePoint          `json:"history"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
}

// View builds a deep copy of the current state.
func (s *Session) View(running bool) View {
	v := View{
		Asset:          s.settings.Asset,
		AssetName:      s.settings.Asset.Spec().Name,
		Running:        running,
		Manual:         s.Manual(),
		Snapshot:       s.snapshot,
		Bias:           s.bias,
		Zones:          s.zones,
		ReferenceZones: s.ReferenceZones(),
		Signal:         s.ActiveSignal(),
		Risk:           s.risk,
		LossPercent:    s.risk.LossPercent(s.settings.Budget.MaxDailyLoss),
		RemainingLoss:  s.risk.Remaining(s.settings.Budget.MaxDailyLoss),
		Settings:       s.settings,
		History:        append([]models.PricePoint(nil), s.history...),
		UpdatedAt:      s.snapshot.Timestamp,
	}
	if v.Signal != nil {
		spec := s.settings.Asset.Spec()
		v.SignalRisk = v.Signal.RiskAmount(spec.ValuePerPoint, s.settings.Contracts)
		v.SignalReward = v.Signal.RewardAmount(spec.ValuePerPoint, s.settings.Contracts)
	}
	if s.closed != nil {
		c := *s.closed
		v.LastClosed = &c
	}
	for _, z := range s.refZones {
		if z.IsNear(s.snapshot.Price) {
			v.NearReference = append(v.NearReference, z)
		}
	}
	return v
}
