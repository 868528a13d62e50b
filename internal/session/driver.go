package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/logging"
	"tradecopilot/internal/models"
	"tradecopilot/internal/resilience"
	"tradecopilot/internal/store"
)

// DefaultTickInterval is the wall-clock interval between ticks.
const DefaultTickInterval = 1500 * time.Millisecond

const (
	subscriberBuffer = 16
	journalTimeout   = 2 * time.Second
)

// Recorder receives tick and signal metrics.
type Recorder interface {
	RecordTick(asset models.Asset, price float64)
	RecordSignal(direction models.Direction)
	RecordOutcome(outcome models.Outcome)
	RecordRisk(status models.RiskStatus)
}

// DriverOptions configures a Driver. Journal and Recorder are optional.
type DriverOptions struct {
	Interval time.Duration
	Journal  store.Journal
	Recorder Recorder
	Logger   zerolog.Logger
}

type command struct {
	fn    func() (any, error)
	reply chan result
}

type result struct {
	value any
	err   error
}

// Driver owns a Session and advances it on a ticker. All mutations go through
// its command channel so the loop goroutine is the only writer; readers get
// published View copies.
type Driver struct {
	session  *Session
	interval time.Duration
	journal  store.Journal
	recorder Recorder
	base     zerolog.Logger
	logger   zerolog.Logger

	cmds    chan command
	done    chan struct{}
	started atomic.Bool
	running bool // loop goroutine only

	latest atomic.Pointer[View]

	subsMu sync.Mutex
	subs   map[int]chan View
	nextID int
}

// NewDriver creates a driver around a session. The driver starts paused.
func NewDriver(s *Session, opts DriverOptions) *Driver {
	if opts.Interval <= 0 {
		opts.Interval = DefaultTickInterval
	}
	d := &Driver{
		session:  s,
		interval: opts.Interval,
		journal:  opts.Journal,
		recorder: opts.Recorder,
		base:     logging.WithOperation(opts.Logger, "driver"),
		cmds:     make(chan command),
		done:     make(chan struct{}),
		subs:     make(map[int]chan View),
	}
	d.logger = logging.WithAsset(d.base, s.Settings().Asset)
	v := s.View(false)
	d.latest.Store(&v)
	return d
}

// Run drives the session until ctx is canceled.
func (d *Driver) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return apperrors.Wrap(apperrors.ErrDriverStopped, "driver already started")
	}
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.interval).Msg("Driver started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Driver stopped")
			d.closeSubscribers()
			return ctx.Err()
		case cmd := <-d.cmds:
			value, err := cmd.fn()
			cmd.reply <- result{value: value, err: err}
			d.publish()
		case <-ticker.C:
			if d.running {
				d.tick(ctx)
				d.publish()
			}
		}
	}
}

func (d *Driver) tick(ctx context.Context) {
	report := d.session.Step()
	if report.Skipped {
		d.running = false
		return
	}
	d.handle(ctx, report)
}

// handle logs, meters and journals the result of a step.
func (d *Driver) handle(ctx context.Context, report TickReport) {
	asset := d.session.Settings().Asset
	if d.recorder != nil {
		d.recorder.RecordTick(asset, report.Snapshot.Price)
	}

	if report.Opened != nil {
		logging.LogSignal(d.logger, report.Opened)
		if d.recorder != nil {
			d.recorder.RecordSignal(report.Opened.Direction)
		}
		d.journalOpen(ctx, report.Opened, asset)
	}

	if c := report.Closed; c != nil {
		logging.LogOutcome(d.logger, &c.Signal, c.Outcome, c.ExitPrice, c.PnL)
		if d.recorder != nil {
			d.recorder.RecordOutcome(c.Outcome)
		}
		d.journalClose(ctx, c)
	}

	if d.recorder != nil {
		d.recorder.RecordRisk(report.Risk)
	}

	if report.Tripped {
		logging.LogRiskBlock(d.logger, report.Risk.CurrentPnL, d.session.Settings().Budget.MaxDailyLoss)
		d.running = false
	}
}

func (d *Driver) blockedError() error {
	return apperrors.NewRiskError("daily_loss", d.session.Risk().CurrentPnL,
		d.session.Settings().Budget.MaxDailyLoss, "daily loss limit reached")
}

// handleDiscard logs and journals a signal dropped without reaching its stop
// or target, so the journal row does not stay open.
func (d *Driver) handleDiscard(ctx context.Context, asset models.Asset, c *ClosedSignal) {
	if c == nil {
		return
	}
	d.logger.Info().
		Str("signal_id", c.Signal.ID).
		Str("asset", string(asset)).
		Str("direction", string(c.Signal.Direction)).
		Float64("price", c.ExitPrice).
		Msg("Active signal discarded")
	d.journalClose(ctx, c)
}

func (d *Driver) journalOpen(ctx context.Context, sig *models.TradeSignal, asset models.Asset) {
	if d.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	rec := store.NewSignalRecord(sig, asset, d.session.Settings().Contracts)
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		return d.journal.RecordSignal(ctx, rec)
	})
	if err != nil {
		d.logger.Warn().Err(err).Str("signal_id", sig.ID).Msg("Failed to journal signal")
	}
}

func (d *Driver) journalClose(ctx context.Context, c *ClosedSignal) {
	if d.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		err := d.journal.CloseSignal(ctx, c.Signal.ID, c.Outcome, c.ExitPrice, c.PnL, c.ClosedAt)
		if errors.Is(err, apperrors.ErrSignalNotFound) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		d.logger.Warn().Err(err).Str("signal_id", c.Signal.ID).Msg("Failed to journal outcome")
	}
}

func (d *Driver) publish() {
	v := d.session.View(d.running)
	d.latest.Store(&v)

	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- v:
		default:
			// slow consumer, drop this view
		}
	}
}

// View returns the most recently published view.
func (d *Driver) View() View {
	return *d.latest.Load()
}

// Subscribe returns a channel of published views and a cancel function.
// Views are dropped for subscribers that fall behind.
func (d *Driver) Subscribe() (<-chan View, func()) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan View, subscriberBuffer)
	d.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subsMu.Lock()
			defer d.subsMu.Unlock()
			if c, ok := d.subs[id]; ok {
				delete(d.subs, id)
				close(c)
			}
		})
	}
}

func (d *Driver) closeSubscribers() {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for id, ch := range d.subs {
		delete(d.subs, id)
		close(ch)
	}
}

// Done is closed when Run returns.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// do runs fn on the loop goroutine and waits for it to finish.
func (d *Driver) do(ctx context.Context, fn func() error) error {
	_, err := call(ctx, d, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// call runs fn on the loop goroutine and returns its result. The result only
// crosses over through the reply channel; a caller that gives up gets the
// zero value.
func call[T any](ctx context.Context, d *Driver, fn func() (T, error)) (T, error) {
	var zero T
	cmd := command{
		fn:    func() (any, error) { return fn() },
		reply: make(chan result, 1),
	}
	select {
	case d.cmds <- cmd:
	case <-d.done:
		return zero, apperrors.ErrDriverStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		value, _ := r.value.(T)
		return value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Start resumes ticking. It fails when the daily loss limit has blocked the session.
func (d *Driver) Start(ctx context.Context) error {
	return d.do(ctx, func() error {
		if d.session.Blocked() {
			return d.blockedError()
		}
		d.running = true
		return nil
	})
}

// Pause stops ticking.
func (d *Driver) Pause(ctx context.Context) error {
	return d.do(ctx, func() error {
		d.running = false
		return nil
	})
}

// StepOnce advances a single tick whether or not the driver is running.
func (d *Driver) StepOnce(ctx context.Context) (TickReport, error) {
	return call(ctx, d, func() (TickReport, error) {
		report := d.session.Step()
		if report.Skipped {
			return report, d.blockedError()
		}
		d.handle(ctx, report)
		return report, nil
	})
}

// UpdateSettings applies new settings, coercing out-of-range values. Changing
// the asset reseeds the series and discards the active signal.
func (d *Driver) UpdateSettings(ctx context.Context, settings Settings) (Settings, error) {
	return call(ctx, d, func() (Settings, error) {
		prevAsset := d.session.Settings().Asset
		change := d.session.UpdateSettings(settings)
		d.handleDiscard(ctx, prevAsset, change.Discarded)
		if change.AssetChanged {
			d.logger = logging.WithAsset(d.base, change.Settings.Asset)
			d.logger.Info().Msg("Asset changed, series reseeded")
		}
		if change.Tripped {
			logging.LogRiskBlock(d.logger, d.session.Risk().CurrentPnL, change.Settings.Budget.MaxDailyLoss)
			d.running = false
		}
		return change.Settings, nil
	})
}

// SetManualReference switches to manual mode and returns the computed zones.
func (d *Driver) SetManualReference(ctx context.Context, in models.ManualReferenceInput) (models.ZonePair, error) {
	return call(ctx, d, func() (models.ZonePair, error) {
		zones := d.session.SetManualReference(in)
		d.logger.Info().
			Float64("current", in.Current).
			Float64("range", in.Range()).
			Str("context", zones.Context).
			Msg("Manual reference set")
		return zones, nil
	})
}

// ClearManualReference returns to automatic mode.
func (d *Driver) ClearManualReference(ctx context.Context) error {
	return d.do(ctx, func() error {
		d.session.ClearManualReference()
		return nil
	})
}

// ResetDay clears the day's result and unblocks the session.
func (d *Driver) ResetDay(ctx context.Context) error {
	return d.do(ctx, func() error {
		d.handleDiscard(ctx, d.session.Settings().Asset, d.session.ResetDay())
		if d.recorder != nil {
			d.recorder.RecordRisk(d.session.Risk())
		}
		return nil
	})
}
