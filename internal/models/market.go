// Package models provides domain models for the trading copilot.
package models

import (
	"strings"
	"time"
)

// Asset represents a tradeable dollar futures contract.
type Asset string

const (
	AssetWDO Asset = "WDO" // Mini dollar
	AssetDOL Asset = "DOL" // Full dollar
)

// AssetSpec holds the contract parameters of an asset.
type AssetSpec struct {
	Name          string
	TickSize      float64
	ValuePerPoint float64 // currency per contract per point
}

var assetSpecs = map[Asset]AssetSpec{
	AssetWDO: {Name: "Mini Dólar", TickSize: 0.5, ValuePerPoint: 10},
	AssetDOL: {Name: "Dólar Cheio", TickSize: 0.5, ValuePerPoint: 50},
}

// Spec returns the contract parameters of the asset.
// Unknown assets resolve to the WDO parameters.
func (a Asset) Spec() AssetSpec {
	if spec, ok := assetSpecs[a]; ok {
		return spec
	}
	return assetSpecs[AssetWDO]
}

// Valid reports whether a is one of the supported assets.
func (a Asset) Valid() bool {
	_, ok := assetSpecs[a]
	return ok
}

// ParseAsset converts operator input into an Asset, defaulting to WDO.
func ParseAsset(s string) Asset {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if a.Valid() {
		return a
	}
	return AssetWDO
}

// Assets returns the supported assets in display order.
func Assets() []Asset {
	return []Asset{AssetWDO, AssetDOL}
}

// MarketSnapshot is a single simulated market state.
// A snapshot is never mutated; each tick produces a new one.
type MarketSnapshot struct {
	Price          float64   `json:"price"`
	Open           float64   `json:"open"`
	High           float64   `json:"high"`
	Low            float64   `json:"low"`
	ReferencePrice float64   `json:"vwap"`
	Volume         int64     `json:"volume"`
	AggressionBuy  int       `json:"aggressionBuy"`  // percent, 10-90 in auto mode
	AggressionSell int       `json:"aggressionSell"` // always 100 - AggressionBuy
	Timestamp      time.Time `json:"timestamp"`
}

// Bias is the directional lean derived from a snapshot.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// PricePoint is one entry of the rolling price history.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}
