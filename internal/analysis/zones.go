package analysis

import (
	"tradecopilot/internal/models"
)

// Fibonacci ratios used to project zones beyond the day's range.
const (
	Fib382 = 0.382
	Fib618 = 0.618
)

// Zone offsets in points.
const (
	refBand         = 2.0  // half-width of the band around the reference price
	extensionPoints = 5.0  // how far zones reach past the day's extremes
	edgePoints      = 3.0  // width of the zones hugging the extremes
	retestPoints    = 2.0  // pullback depth for breakout/breakdown retests
	narrowRange     = 20.0 // ranges below this are treated as consolidation
)

// Context labels attached to zone pairs.
const (
	ContextUptrend       = "uptrend, prefer pullback entries at reference"
	ContextDowntrend     = "downtrend, sell rallies at reference"
	ContextRange         = "range-bound, trade extremes"
	ContextBullish       = "bullish, await pullback"
	ContextBreakout      = "breakout above high, wait for retest"
	ContextBearish       = "bearish, sell rallies"
	ContextBreakdown     = "breakdown below low, do not counter-trend buy"
	ContextConsolidation = "narrow consolidation, trade extremes only"
)

// AutoZones carves buy and sell zones from a live snapshot and its bias.
func AutoZones(s models.MarketSnapshot, bias models.Bias) models.ZonePair {
	ref := s.ReferencePrice

	switch bias {
	case models.BiasBullish:
		return models.ZonePair{
			Buy:     models.NewZone(ref-refBand, ref+refBand, models.StrengthHigh),
			Sell:    models.NewZone(s.High, s.High+extensionPoints, models.StrengthMedium),
			Context: ContextUptrend,
		}
	case models.BiasBearish:
		return models.ZonePair{
			Buy:     models.NewZone(s.Low-extensionPoints, s.Low, models.StrengthMedium),
			Sell:    models.NewZone(ref-refBand, ref+refBand, models.StrengthHigh),
			Context: ContextDowntrend,
		}
	default:
		return models.ZonePair{
			Buy:     models.NewZone(s.Low, s.Low+edgePoints, models.StrengthMedium),
			Sell:    models.NewZone(s.High-edgePoints, s.High, models.StrengthMedium),
			Context: ContextRange,
		}
	}
}

// ProZones carves Fibonacci-flavored zones from values read off a real chart.
//
// A narrow range containing the current price overrides every other branch.
func ProZones(m models.ManualReferenceInput) models.ZonePair {
	rng := m.Range()
	fib38 := rng * Fib382
	fib61 := rng * Fib618
	ref := m.ReferencePrice

	if m.Low < m.Current && m.Current < m.High && rng < narrowRange {
		return models.ZonePair{
			Buy:     models.NewZone(m.Low, m.Low+edgePoints, models.StrengthHigh),
			Sell:    models.NewZone(m.High-edgePoints, m.High, models.StrengthHigh),
			Context: ContextConsolidation,
		}
	}

	if m.Current > ref {
		if m.Current > m.High {
			return models.ZonePair{
				Buy:     models.NewZone(m.High-retestPoints, m.High, models.StrengthMedium),
				Sell:    models.NewZone(m.High+fib38, m.High+fib61, models.StrengthLow),
				Context: ContextBreakout,
			}
		}
		return models.ZonePair{
			Buy:     models.NewZone(ref-refBand, ref+refBand, models.StrengthHigh),
			Sell:    models.NewZone(m.High-retestPoints, m.High+extensionPoints, models.StrengthMedium),
			Context: ContextBullish,
		}
	}

	if m.Current < m.Low {
		return models.ZonePair{
			Buy:     models.NewZone(m.Low-fib61, m.Low-fib38, models.StrengthLow),
			Sell:    models.NewZone(m.Low, m.Low+retestPoints, models.StrengthMedium),
			Context: ContextBreakdown,
		}
	}
	return models.ZonePair{
		Buy:     models.NewZone(m.Low-extensionPoints, m.Low+retestPoints, models.StrengthMedium),
		Sell:    models.NewZone(ref-refBand, ref+refBand, models.StrengthHigh),
		Context: ContextBearish,
	}
}
