// Package simulator generates synthetic market snapshots for the copilot.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"tradecopilot/internal/models"
)

// Seed values used when there is no previous snapshot.
const (
	SeedPrice      = 5000.0
	SeedRangeWidth = 10.0
	SeedVolume     = 1000

	// DefaultTickSize is used when an asset does not define one.
	DefaultTickSize = 0.5
)

const (
	maxStep           = 1.0 // max price offset per tick, in points
	vwapDecay         = 0.95
	aggressionStep    = 5.0
	aggressionFloor   = 10.0
	aggressionCeiling = 90.0
	manualAggSpread   = 10 // manual mode swings aggression up to ±10 around 50
	maxVolumeStep     = 50
)

// Rand is the random source used by the generator.
// *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Generator produces market snapshots from an injected random source and clock.
type Generator struct {
	rng Rand
	now func() time.Time
}

// NewGenerator creates a generator. A nil rng falls back to a time-seeded source,
// a nil clock to time.Now.
func NewGenerator(rng Rand, now func() time.Time) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rng, now: now}
}

// Seed returns the fixed opening snapshot.
func Seed(ts time.Time) models.MarketSnapshot {
	return models.MarketSnapshot{
		Price:          SeedPrice,
		Open:           SeedPrice,
		High:           SeedPrice + SeedRangeWidth,
		Low:            SeedPrice - SeedRangeWidth,
		ReferencePrice: SeedPrice,
		Volume:         SeedVolume,
		AggressionBuy:  50,
		AggressionSell: 50,
		Timestamp:      ts,
	}
}

// Next produces the snapshot that follows prev.
//
// Without a previous snapshot it returns the seed, whatever the asset or manual input.
// With a manual reference the price is anchored to manual.Current instead of prev.Price.
func (g *Generator) Next(prev *models.MarketSnapshot, asset models.Asset, manual *models.ManualReferenceInput) models.MarketSnapshot {
	now := g.now()
	if prev == nil {
		return Seed(now)
	}

	tick := asset.Spec().TickSize
	if tick <= 0 {
		tick = DefaultTickSize
	}
	volume := prev.Volume + int64(g.rng.Intn(maxVolumeStep))

	if manual != nil {
		return g.nextManual(*manual, tick, volume, now)
	}

	price := RoundTick(prev.Price+g.offset(), tick)

	// a flat tick counts as selling pressure
	buy := float64(prev.AggressionBuy)
	if price > prev.Price {
		buy = math.Min(aggressionCeiling, buy+g.rng.Float64()*aggressionStep)
	} else {
		buy = math.Max(aggressionFloor, buy-g.rng.Float64()*aggressionStep)
	}
	aggBuy := int(math.Round(buy))

	return models.MarketSnapshot{
		Price:          price,
		Open:           prev.Open,
		High:           math.Max(prev.High, price),
		Low:            math.Min(prev.Low, price),
		ReferencePrice: RoundTick(prev.ReferencePrice*vwapDecay+price*(1-vwapDecay), tick),
		Volume:         volume,
		AggressionBuy:  aggBuy,
		AggressionSell: 100 - aggBuy,
		Timestamp:      now,
	}
}

func (g *Generator) nextManual(m models.ManualReferenceInput, tick float64, volume int64, now time.Time) models.MarketSnapshot {
	price := RoundTick(m.Current+g.offset(), tick)

	// symmetric swing around an even split
	d := g.rng.Intn(2*manualAggSpread+1) - manualAggSpread

	return models.MarketSnapshot{
		Price:          price,
		Open:           m.Open,
		High:           math.Max(m.High, price),
		Low:            math.Min(m.Low, price),
		ReferencePrice: m.ReferencePrice,
		Volume:         volume,
		AggressionBuy:  50 + d,
		AggressionSell: 50 - d,
		Timestamp:      now,
	}
}

// offset returns a random move in [-maxStep, +maxStep).
func (g *Generator) offset() float64 {
	return (g.rng.Float64() - 0.5) * 2 * maxStep
}

// RoundTick snaps v to the nearest multiple of tick, rounding halves up.
func RoundTick(v, tick float64) float64 {
	if tick <= 0 {
		return v
	}
	return math.Floor(v/tick+0.5) * tick
}
