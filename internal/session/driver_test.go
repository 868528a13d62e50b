package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/models"
	"tradecopilot/internal/signal"
	"tradecopilot/internal/store"
)

func newSeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

type fakeRecorder struct {
	mu       sync.Mutex
	ticks    int
	signals  int
	outcomes []models.Outcome
	risk     models.RiskStatus
}

func (f *fakeRecorder) RecordTick(models.Asset, float64) { f.mu.Lock(); f.ticks++; f.mu.Unlock() }
func (f *fakeRecorder) RecordSignal(models.Direction)    { f.mu.Lock(); f.signals++; f.mu.Unlock() }
func (f *fakeRecorder) RecordOutcome(o models.Outcome) {
	f.mu.Lock()
	f.outcomes = append(f.outcomes, o)
	f.mu.Unlock()
}
func (f *fakeRecorder) RecordRisk(r models.RiskStatus) { f.mu.Lock(); f.risk = r; f.mu.Unlock() }

type fakeJournal struct {
	mu      sync.Mutex
	opened  []store.SignalRecord
	closed  map[string]models.Outcome
	failAll bool
	flaky   int
	calls   int
}

func (f *fakeJournal) RecordSignal(_ context.Context, rec store.SignalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return errors.New("disk full")
	}
	if f.flaky > 0 {
		f.flaky--
		return errors.New("database is locked")
	}
	f.opened = append(f.opened, rec)
	return nil
}

func (f *fakeJournal) CloseSignal(_ context.Context, id string, outcome models.Outcome, _, _ float64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed == nil {
		f.closed = make(map[string]models.Outcome)
	}
	f.closed[id] = outcome
	return nil
}

func (f *fakeJournal) ListSignals(context.Context, store.SignalFilter) ([]store.SignalRecord, error) {
	return nil, nil
}

func (f *fakeJournal) DailySummary(context.Context, time.Time) (*store.DaySummary, error) {
	return &store.DaySummary{}, nil
}

func (f *fakeJournal) Close() error { return nil }

func startDriver(t *testing.T, s *Session, opts DriverOptions) (*Driver, context.CancelFunc) {
	t.Helper()
	opts.Logger = zerolog.Nop()
	d := NewDriver(s, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	return d, cancel
}

func TestDriverStepOnceJournalsAndMeters(t *testing.T) {
	rng := &scriptedRand{intn: 10, floats: []float64{0.5, 0.1}}
	s := newTestSession(DefaultSettings(), rng)
	pin(s, 5010)

	rec := &fakeRecorder{}
	journal := &fakeJournal{}
	d, _ := startDriver(t, s, DriverOptions{Interval: time.Hour, Recorder: rec, Journal: journal})
	ctx := context.Background()

	r, err := d.StepOnce(ctx)
	if err != nil {
		t.Fatalf("StepOnce() error = %v", err)
	}
	if r.Opened == nil {
		t.Fatal("expected a signal")
	}
	if len(journal.opened) != 1 || journal.opened[0].ID != r.Opened.ID || journal.opened[0].Asset != models.AssetWDO {
		t.Errorf("journal opened = %+v", journal.opened)
	}

	if _, err := d.SetManualReference(ctx, models.ManualReferenceInput{Open: 4990, High: 5030, Low: 4980, ReferencePrice: 4990, Current: 5020}); err != nil {
		t.Fatal(err)
	}
	r, err = d.StepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Closed == nil || r.Closed.Outcome != models.OutcomeTarget {
		t.Fatalf("closed = %+v", r.Closed)
	}
	if journal.closed[r.Closed.Signal.ID] != models.OutcomeTarget {
		t.Errorf("journal closed = %+v", journal.closed)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.ticks != 2 || rec.signals != 1 || len(rec.outcomes) != 1 || rec.risk.CurrentPnL != 100 {
		t.Errorf("recorder = %+v", rec)
	}

	v := d.View()
	if v.Risk.CurrentPnL != 100 || v.Signal != nil || v.LastClosed == nil {
		t.Errorf("published view = %+v", v)
	}
}

func TestDriverJournalFailureDoesNotStopTicks(t *testing.T) {
	rng := &scriptedRand{intn: 10, floats: []float64{0.5, 0.1}}
	s := newTestSession(DefaultSettings(), rng)
	pin(s, 5010)
	d, _ := startDriver(t, s, DriverOptions{Interval: time.Hour, Journal: &fakeJournal{failAll: true}})

	r, err := d.StepOnce(context.Background())
	if err != nil || r.Opened == nil {
		t.Fatalf("StepOnce() = %+v, %v", r, err)
	}
	if d.View().Signal == nil {
		t.Error("signal lost after journal failure")
	}
}

func TestDriverRetriesTransientJournalErrors(t *testing.T) {
	rng := &scriptedRand{intn: 10, floats: []float64{0.5, 0.1}}
	s := newTestSession(DefaultSettings(), rng)
	pin(s, 5010)
	journal := &fakeJournal{flaky: 1}
	d, _ := startDriver(t, s, DriverOptions{Interval: time.Hour, Journal: journal})

	r, err := d.StepOnce(context.Background())
	if err != nil || r.Opened == nil {
		t.Fatalf("StepOnce() = %+v, %v", r, err)
	}
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if journal.calls != 2 || len(journal.opened) != 1 {
		t.Errorf("calls = %d, opened = %d, want 2 and 1", journal.calls, len(journal.opened))
	}
}

func TestDriverTicksWhenRunning(t *testing.T) {
	s := New(DefaultSettings(), signal.DefaultConfig(), newSeededRand(7), nil)
	rec := &fakeRecorder{}
	d, _ := startDriver(t, s, DriverOptions{Interval: 5 * time.Millisecond, Recorder: rec})

	views, unsubscribe := d.Subscribe()
	defer unsubscribe()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	seen := 0
	for seen < 3 {
		select {
		case v := <-views:
			if v.Running {
				seen++
			}
		case <-deadline:
			t.Fatalf("saw %d running views before timeout", seen)
		}
	}

	if err := d.Pause(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.View().Running {
		t.Error("view still running after pause")
	}
	rec.mu.Lock()
	ticks := rec.ticks
	rec.mu.Unlock()
	if ticks < 2 {
		t.Errorf("ticks = %d, want at least 2", ticks)
	}
}

func TestDriverStopsOnBreaker(t *testing.T) {
	settings := DefaultSettings()
	settings.Budget.MaxDailyLoss = 50
	s := newTestSession(settings, &scriptedRand{intn: 10})
	s.active = buyAt(5000)
	pin(s, 4990)

	d, _ := startDriver(t, s, DriverOptions{Interval: time.Hour})
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	r, err := d.StepOnce(ctx)
	if err != nil || !r.Tripped {
		t.Fatalf("StepOnce() = %+v, %v", r, err)
	}
	v := d.View()
	if v.Running || !v.Risk.Blocked || v.LossPercent != 100 {
		t.Errorf("view after breaker = running %v risk %+v loss %v", v.Running, v.Risk, v.LossPercent)
	}

	err = d.Start(ctx)
	var rerr *apperrors.RiskError
	if !errors.Is(err, apperrors.ErrSessionBlocked) || !errors.As(err, &rerr) {
		t.Errorf("Start() on blocked session = %v", err)
	} else if rerr.Limit != 50 || rerr.Current > -50 {
		t.Errorf("risk error = %+v", rerr)
	}
	if _, err := d.StepOnce(ctx); !errors.Is(err, apperrors.ErrSessionBlocked) {
		t.Errorf("StepOnce() on blocked session = %v", err)
	}

	if err := d.ResetDay(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(ctx); err != nil {
		t.Errorf("Start() after reset = %v", err)
	}
}

func TestDriverUpdateSettings(t *testing.T) {
	s := newTestSession(DefaultSettings(), &scriptedRand{intn: 10})
	d, _ := startDriver(t, s, DriverOptions{Interval: time.Hour})
	ctx := context.Background()

	settings := DefaultSettings()
	settings.Asset = models.AssetDOL
	settings.Contracts = 2
	applied, err := d.UpdateSettings(ctx, settings)
	if err != nil || applied != settings {
		t.Fatalf("UpdateSettings() = %+v, %v", applied, err)
	}
	if v := d.View(); v.Asset != models.AssetDOL || v.Settings.Contracts != 2 {
		t.Errorf("view = %+v", v.Settings)
	}

	settings.Contracts = 0
	applied, err = d.UpdateSettings(ctx, settings)
	if err != nil || applied.Contracts != 1 {
		t.Errorf("UpdateSettings() = %+v, %v, want contracts clamped to 1", applied, err)
	}
}

func TestDriverJournalsDiscardedSignals(t *testing.T) {
	rng := &scriptedRand{intn: 10, floats: []float64{0.5, 0.1}}
	s := newTestSession(DefaultSettings(), rng)
	pin(s, 5010)
	journal := &fakeJournal{}
	d, _ := startDriver(t, s, DriverOptions{Interval: time.Hour, Journal: journal})
	ctx := context.Background()

	r, err := d.StepOnce(ctx)
	if err != nil || r.Opened == nil {
		t.Fatalf("StepOnce() = %+v, %v", r, err)
	}
	settings := DefaultSettings()
	settings.Asset = models.AssetDOL
	if _, err := d.UpdateSettings(ctx, settings); err != nil {
		t.Fatal(err)
	}

	journal.mu.Lock()
	outcome := journal.closed[r.Opened.ID]
	journal.mu.Unlock()
	if outcome != models.OutcomeDiscarded {
		t.Errorf("journal outcome after asset change = %q, want DISCARDED", outcome)
	}
	if v := d.View(); v.Signal != nil || v.LastClosed != nil {
		t.Errorf("view after asset change = signal %+v last %+v", v.Signal, v.LastClosed)
	}
}

func TestDriverResetDayJournalsDiscardedSignal(t *testing.T) {
	rng := &scriptedRand{intn: 10, floats: []float64{0.5, 0.1}}
	s := newTestSession(DefaultSettings(), rng)
	pin(s, 5010)
	journal := &fakeJournal{}
	d, _ := startDriver(t, s, DriverOptions{Interval: time.Hour, Journal: journal})
	ctx := context.Background()

	r, err := d.StepOnce(ctx)
	if err != nil || r.Opened == nil {
		t.Fatalf("StepOnce() = %+v, %v", r, err)
	}
	if err := d.ResetDay(ctx); err != nil {
		t.Fatal(err)
	}
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if journal.closed[r.Opened.ID] != models.OutcomeDiscarded {
		t.Errorf("journal closed = %+v", journal.closed)
	}
}

func TestDriverCallerGivesUp(t *testing.T) {
	s := newTestSession(DefaultSettings(), &scriptedRand{intn: 10})
	d := NewDriver(s, DriverOptions{Interval: time.Hour, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	zones, err := d.SetManualReference(ctx, models.ManualReferenceInput{Open: 5000, High: 5030, Low: 4990, ReferencePrice: 5010, Current: 5020})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SetManualReference() err = %v", err)
	}
	if zones != (models.ZonePair{}) {
		t.Errorf("canceled call returned zones %+v", zones)
	}
}

func TestDriverStopped(t *testing.T) {
	s := newTestSession(DefaultSettings(), &scriptedRand{})
	d := NewDriver(s, DriverOptions{Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	views, _ := d.Subscribe()

	go d.Run(ctx)
	cancel()
	<-d.Done()

	if err := d.Pause(context.Background()); !errors.Is(err, apperrors.ErrDriverStopped) {
		t.Errorf("Pause() after stop = %v", err)
	}
	if _, ok := <-views; ok {
		t.Error("subscriber channel not closed on stop")
	}
	if err := d.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}
