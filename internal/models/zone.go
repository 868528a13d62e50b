package models

import "math"

// Strength grades how reliable a zone is.
type Strength string

const (
	StrengthHigh   Strength = "HIGH"
	StrengthMedium Strength = "MEDIUM"
	StrengthLow    Strength = "LOW"
)

// Zone is a closed price interval flagged as an entry region.
type Zone struct {
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Strength Strength `json:"strength"`
}

// NewZone builds a zone from two bounds in any order.
func NewZone(a, b float64, strength Strength) Zone {
	return Zone{Min: math.Min(a, b), Max: math.Max(a, b), Strength: strength}
}

// Contains reports whether price lies inside the zone.
func (z Zone) Contains(price float64) bool {
	return price >= z.Min && price <= z.Max
}

// Width returns the size of the zone in points.
func (z Zone) Width() float64 {
	return z.Max - z.Min
}

// ZonePair bundles the buy and sell regions with a context label.
type ZonePair struct {
	Buy     Zone   `json:"buyRegion"`
	Sell    Zone   `json:"sellRegion"`
	Context string `json:"trendContext"`
}

// InBuy reports whether price is inside the buy region.
func (p ZonePair) InBuy(price float64) bool {
	return p.Buy.Contains(price)
}

// InSell reports whether price is inside the sell region.
func (p ZonePair) InSell(price float64) bool {
	return p.Sell.Contains(price)
}

// ReferenceKind classifies a PTAX reference level.
type ReferenceKind string

const (
	ReferenceAttraction ReferenceKind = "ATTRACTION"
	ReferenceDefense    ReferenceKind = "DEFENSE"
	ReferenceNeutral    ReferenceKind = "NEUTRAL"
)

// nearDistance is the distance in points under which price counts as inside a reference zone.
const nearDistance = 5.0

// ReferenceZone is a labeled price level (PTAX fixing windows, previews, opening).
type ReferenceZone struct {
	Price       float64       `json:"price"`
	Kind        ReferenceKind `json:"type"`
	Probability Strength      `json:"probability"`
	Label       string        `json:"timeLabel"`
}

// IsNear reports whether price is close enough to the level to matter.
func (z ReferenceZone) IsNear(price float64) bool {
	return math.Abs(price-z.Price) < nearDistance
}

// DefaultReferenceZones derives the reference levels shown around a base price.
func DefaultReferenceZones(base float64) []ReferenceZone {
	return []ReferenceZone{
		{Price: base + 15, Kind: ReferenceDefense, Probability: StrengthHigh, Label: "PTAX 10:00"},
		{Price: base - 10, Kind: ReferenceAttraction, Probability: StrengthMedium, Label: "Preview 1"},
		{Price: base - 25, Kind: ReferenceNeutral, Probability: StrengthLow, Label: "Opening"},
	}
}
