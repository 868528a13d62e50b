// Package signal emits trade ideas consistent with the current bias and risk budget.
package signal

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"tradecopilot/internal/models"
)

// Default demo constants.
const (
	DefaultActivationProbability = 0.2
	DefaultStopPoints            = 5.0
	DefaultTargetPoints          = 10.0
)

// Canned rationale per direction.
const (
	ReasonBuy  = "Strong buying flow above VWAP. Pullback identified."
	ReasonSell = "Lost VWAP with selling aggression. Bearish structure."
)

// Config holds the tunable constants of the generator.
type Config struct {
	// ActivationProbability is the chance that a call produces an idea at all.
	ActivationProbability float64
	StopPoints            float64
	TargetPoints          float64
}

// DefaultConfig returns the demo constants.
func DefaultConfig() Config {
	return Config{
		ActivationProbability: DefaultActivationProbability,
		StopPoints:            DefaultStopPoints,
		TargetPoints:          DefaultTargetPoints,
	}
}

// Rand is the random source behind the activation gate.
type Rand interface {
	Float64() float64
}

// Generator produces trade signals.
type Generator struct {
	config Config
	rng    Rand
	now    func() time.Time
	newID  func() string
}

// NewGenerator creates a signal generator. A nil rng falls back to a time-seeded source.
func NewGenerator(config Config, rng Rand, now func() time.Time) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{
		config: config,
		rng:    rng,
		now:    now,
		newID:  uuid.NewString,
	}
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.config
}

// Maybe returns a trade idea or nil.
//
// Nil is returned when the activation gate does not fire, when the bias is neutral,
// or when the stop distance would cost more than maxRiskPerTrade.
func (g *Generator) Maybe(s models.MarketSnapshot, bias models.Bias, maxRiskPerTrade float64, contracts int, valuePerPoint float64) *models.TradeSignal {
	if g.rng.Float64() >= g.config.ActivationProbability {
		return nil
	}

	var dir models.Direction
	var reason string
	switch bias {
	case models.BiasBullish:
		dir, reason = models.DirectionBuy, ReasonBuy
	case models.BiasBearish:
		dir, reason = models.DirectionSell, ReasonSell
	default:
		return nil
	}

	stop := g.config.StopPoints
	target := g.config.TargetPoints
	if stop <= 0 || target <= 0 {
		return nil
	}

	financialRisk := stop * valuePerPoint * float64(contracts)
	if financialRisk > maxRiskPerTrade {
		return nil
	}

	sign := dir.Sign()
	return &models.TradeSignal{
		ID:              g.newID(),
		Direction:       dir,
		EntryPrice:      s.Price,
		StopLoss:        s.Price - sign*stop,
		Target1:         s.Price + sign*target*0.5,
		TargetFinal:     s.Price + sign*target,
		RiskRewardRatio: target / stop,
		Reason:          reason,
		Timestamp:       g.now(),
	}
}
