// Package resilience guards calls to flaky collaborators such as the AI analyst.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the state of a breaker.
type State string

const (
	StateClosed   State = "CLOSED"    // calls pass through
	StateOpen     State = "OPEN"      // calls rejected until cooldown elapses
	StateHalfOpen State = "HALF_OPEN" // one trial request allowed
)

// ErrOpen is returned when the breaker rejects a call.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before allowing a trial request.
	Cooldown time.Duration
}

// DefaultConfig returns the analyst defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	}
}

// Breaker implements the circuit breaker pattern. Caller cancellation is not
// counted as a failure, so superseded requests never trip it.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probing     bool
	stats       Stats
	lastChanged time.Time
}

// Stats holds breaker counters.
type Stats struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	Requests    int64     `json:"requests"`
	Successes   int64     `json:"successes"`
	Failures    int64     `json:"failures"`
	Rejected    int64     `json:"rejected"`
	Canceled    int64     `json:"canceled"`
	LastChanged time.Time `json:"last_changed"`
}

// FailureRate returns failures as a percentage of admitted requests.
func (s Stats) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests) * 100
}

// New creates a breaker. A nil clock uses time.Now.
func New(name string, config Config, now func() time.Time) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		name:        name,
		config:      config,
		now:         now,
		state:       StateClosed,
		lastChanged: now(),
	}
}

// Call runs fn through the breaker and returns its result.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}

	v, err := fn(ctx)
	b.record(ctx, err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.stats.Rejected++
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probing = true
	case StateHalfOpen:
		if b.probing {
			b.stats.Rejected++
			return ErrOpen
		}
		b.probing = true
	}
	b.stats.Requests++
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
	}

	switch {
	case err == nil:
		b.stats.Successes++
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		b.stats.Canceled++
	default:
		b.stats.Failures++
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
			b.transition(StateOpen)
			b.openedAt = b.now()
		}
	}
}

func (b *Breaker) transition(state State) {
	b.state = state
	b.lastChanged = b.now()
	b.failures = 0
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Stats returns a snapshot of the counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Name = b.name
	s.State = b.state
	s.LastChanged = b.lastChanged
	return s
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	b.transition(StateClosed)
}
