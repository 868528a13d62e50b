// Package session runs the simulated trading day: ticks, bias, zones, signal
// lifecycle and the daily loss breaker.
package session

import (
	"math"
	"math/rand"
	"time"

	"tradecopilot/internal/analysis"
	"tradecopilot/internal/models"
	"tradecopilot/internal/signal"
	"tradecopilot/internal/simulator"
)

// HistoryLength is the number of price points kept for the chart.
const HistoryLength = 30

// Rand is the random source shared by the tick and signal generators.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Settings are the operator-adjustable session parameters.
type Settings struct {
	Asset     models.Asset      `json:"asset"`
	Contracts int               `json:"contracts"`
	Budget    models.RiskBudget `json:"budget"`
}

// DefaultSettings returns one WDO contract with the default risk limits.
func DefaultSettings() Settings {
	return Settings{
		Asset:     models.AssetWDO,
		Contracts: 1,
		Budget:    models.RiskBudget{MaxRiskPerTrade: 150, MaxDailyLoss: 500},
	}
}

// Normalize coerces operator settings into a usable form. Unknown assets fall
// back to WDO, fewer than one contract becomes one and negative limits become
// zero.
func (s Settings) Normalize() Settings {
	if !s.Asset.Valid() {
		s.Asset = models.AssetWDO
	}
	if s.Contracts < 1 {
		s.Contracts = 1
	}
	s.Budget.MaxRiskPerTrade = math.Max(s.Budget.MaxRiskPerTrade, 0)
	s.Budget.MaxDailyLoss = math.Max(s.Budget.MaxDailyLoss, 0)
	return s
}

// ClosedSignal is a signal cleared by the lifecycle check.
type ClosedSignal struct {
	Signal    models.TradeSignal `json:"signal"`
	Outcome   models.Outcome     `json:"outcome"`
	ExitPrice float64            `json:"exitPrice"`
	PnL       float64            `json:"pnl"`
	ClosedAt  time.Time          `json:"closedAt"`
}

// TickReport describes what happened during one Step.
type TickReport struct {
	Snapshot models.MarketSnapshot
	Bias     models.Bias
	Zones    models.ZonePair
	Opened   *models.TradeSignal
	Closed   *ClosedSignal
	Risk     models.RiskStatus
	// Blocked is true when the session is blocked after this step.
	Blocked bool
	// Tripped is true only on the step whose loss tripped the breaker.
	Tripped bool
	// Skipped is true when the step did nothing because the session was already blocked.
	Skipped bool
}

// Session holds the state of one simulated trading day. It is not safe for
// concurrent use; the Driver is its only writer.
type Session struct {
	settings Settings
	ticks    *simulator.Generator
	signals  *signal.Generator
	now      func() time.Time

	snapshot models.MarketSnapshot
	bias     models.Bias
	zones    models.ZonePair
	refZones []models.ReferenceZone
	active   *models.TradeSignal
	closed   *ClosedSignal
	risk     models.RiskStatus
	manual   *models.ManualReferenceInput
	history  []models.PricePoint
}

// New creates a session seeded at the opening snapshot. A nil rng uses a
// time-seeded source and a nil clock uses time.Now.
func New(settings Settings, signalCfg signal.Config, rng Rand, now func() time.Time) *Session {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	s := &Session{
		settings: settings.Normalize(),
		ticks:    simulator.NewGenerator(rng, now),
		signals:  signal.NewGenerator(signalCfg, rng, now),
		now:      now,
	}
	s.reseed()
	return s
}

// reseed restarts the price series at the opening snapshot and returns the
// signal it discarded, if any.
func (s *Session) reseed() *ClosedSignal {
	discarded := s.discard()
	s.snapshot = simulator.Seed(s.now())
	s.bias = models.BiasNeutral
	s.refZones = models.DefaultReferenceZones(s.snapshot.Price)
	s.closed = nil
	s.history = []models.PricePoint{{Time: s.snapshot.Timestamp, Price: s.snapshot.Price}}
	if s.manual != nil {
		s.zones = analysis.ProZones(*s.manual)
	} else {
		s.zones = analysis.AutoZones(s.snapshot, s.bias)
	}
	return discarded
}

// discard drops the active signal at the last observed price without
// realizing its P&L.
func (s *Session) discard() *ClosedSignal {
	if s.active == nil {
		return nil
	}
	discarded := &ClosedSignal{
		Signal:    *s.active,
		Outcome:   models.OutcomeDiscarded,
		ExitPrice: s.snapshot.Price,
		ClosedAt:  s.snapshot.Timestamp,
	}
	s.active = nil
	return discarded
}

// Step advances the session by one tick: snapshot, bias, zones, then either a
// lifecycle check on the active signal or a chance to open a new one.
func (s *Session) Step() TickReport {
	if s.risk.Blocked {
		return TickReport{
			Snapshot: s.snapshot,
			Bias:     s.bias,
			Zones:    s.zones,
			Risk:     s.risk,
			Blocked:  true,
			Skipped:  true,
		}
	}

	prev := s.snapshot
	s.snapshot = s.ticks.Next(&prev, s.settings.Asset, s.manual)
	s.bias = analysis.ClassifyBias(s.snapshot)
	if s.manual == nil {
		s.zones = analysis.AutoZones(s.snapshot, s.bias)
	}
	s.appendHistory(s.snapshot)

	report := TickReport{
		Snapshot: s.snapshot,
		Bias:     s.bias,
		Zones:    s.zones,
	}

	if s.active == nil {
		spec := s.settings.Asset.Spec()
		if sig := s.signals.Maybe(s.snapshot, s.bias, s.settings.Budget.MaxRiskPerTrade, s.settings.Contracts, spec.ValuePerPoint); sig != nil {
			s.active = sig
			opened := *sig
			report.Opened = &opened
		}
	} else if outcome, hit := s.active.Hit(s.snapshot.Price); hit {
		closed := s.close(outcome, s.snapshot.Price)
		report.Closed = &closed
		report.Tripped = s.checkBreaker()
	}

	report.Risk = s.risk
	report.Blocked = s.risk.Blocked
	return report
}

func (s *Session) close(outcome models.Outcome, exitPrice float64) ClosedSignal {
	spec := s.settings.Asset.Spec()
	pnl := s.active.PnL(exitPrice, spec.ValuePerPoint, s.settings.Contracts)

	s.risk.CurrentPnL += pnl
	s.risk.TradesCount++
	if outcome == models.OutcomeTarget {
		s.risk.Wins++
	} else {
		s.risk.Losses++
	}

	closed := ClosedSignal{
		Signal:    *s.active,
		Outcome:   outcome,
		ExitPrice: exitPrice,
		PnL:       pnl,
		ClosedAt:  s.snapshot.Timestamp,
	}
	s.closed = &closed
	s.active = nil
	return closed
}

// checkBreaker blocks the session once the loss limit is reached. The block
// is latched for the rest of the day.
func (s *Session) checkBreaker() bool {
	if s.risk.Blocked {
		return false
	}
	if s.risk.CurrentPnL <= -s.settings.Budget.MaxDailyLoss {
		s.risk.Blocked = true
		s.risk.MaxLossHit = true
		return true
	}
	return false
}

func (s *Session) appendHistory(snap models.MarketSnapshot) {
	s.history = append(s.history, models.PricePoint{Time: snap.Timestamp, Price: snap.Price})
	if len(s.history) > HistoryLength {
		s.history = append([]models.PricePoint(nil), s.history[len(s.history)-HistoryLength:]...)
	}
}

// Settings returns the current settings.
func (s *Session) Settings() Settings {
	return s.settings
}

// SettingsChange reports the side effects of UpdateSettings.
type SettingsChange struct {
	Settings     Settings
	AssetChanged bool
	Tripped      bool
	Discarded    *ClosedSignal
}

// UpdateSettings applies new operator settings after normalizing them.
// Changing the asset reseeds the price series and discards the active signal.
// The day's result carries over, so a lower loss limit may trip the breaker
// immediately.
func (s *Session) UpdateSettings(settings Settings) SettingsChange {
	settings = settings.Normalize()
	change := SettingsChange{Settings: settings, AssetChanged: settings.Asset != s.settings.Asset}
	s.settings = settings
	if change.AssetChanged {
		change.Discarded = s.reseed()
	}
	change.Tripped = s.checkBreaker()
	return change
}

// SetManualReference pins ticks and zones to operator-read chart values.
// Zones are computed once here and held until the reference is cleared.
func (s *Session) SetManualReference(in models.ManualReferenceInput) models.ZonePair {
	manual := in
	s.manual = &manual
	s.zones = analysis.ProZones(manual)
	return s.zones
}

// ClearManualReference returns to automatic ticks and zones.
func (s *Session) ClearManualReference() {
	s.manual = nil
	s.zones = analysis.AutoZones(s.snapshot, s.bias)
}

// Manual returns a copy of the manual reference, or nil in auto mode.
func (s *Session) Manual() *models.ManualReferenceInput {
	if s.manual == nil {
		return nil
	}
	m := *s.manual
	return &m
}

// ResetDay clears the day's result and the breaker, keeping the price series.
// It returns the discarded active signal, if any.
func (s *Session) ResetDay() *ClosedSignal {
	s.risk = models.RiskStatus{}
	s.closed = nil
	return s.discard()
}

// Snapshot returns the latest snapshot.
func (s *Session) Snapshot() models.MarketSnapshot {
	return s.snapshot
}

// Bias returns the latest bias.
func (s *Session) Bias() models.Bias {
	return s.bias
}

// Zones returns the latest zones.
func (s *Session) Zones() models.ZonePair {
	return s.zones
}

// ReferenceZones returns a copy of the reference zones.
func (s *Session) ReferenceZones() []models.ReferenceZone {
	return append([]models.ReferenceZone(nil), s.refZones...)
}

// ActiveSignal returns a copy of the active signal, or nil.
func (s *Session) ActiveSignal() *models.TradeSignal {
	if s.active == nil {
		return nil
	}
	sig := *s.active
	return &sig
}

// Risk returns the day's risk status.
func (s *Session) Risk() models.RiskStatus {
	return s.risk
}

// Blocked reports whether the daily loss limit has blocked the session.
func (s *Session) Blocked() bool {
	return s.risk.Blocked
}
