// Package analysis derives the directional bias and the buy/sell zones from market data.
package analysis

import (
	"tradecopilot/internal/models"
)

// ClassifyBias derives the directional lean of a snapshot.
//
// Price above both the reference average and the open is bullish, below both is bearish,
// anything else (including price sitting on the reference) is neutral.
func ClassifyBias(s models.MarketSnapshot) models.Bias {
	switch {
	case s.Price > s.ReferencePrice && s.Price > s.Open:
		return models.BiasBullish
	case s.Price < s.ReferencePrice && s.Price < s.Open:
		return models.BiasBearish
	default:
		return models.BiasNeutral
	}
}
