package agents

import (
	"context"
	"sync"
	"time"

	"tradecopilot/internal/models"
)

// Commentary is the latest display-only analyst output for one request kind.
type Commentary struct {
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Pending   bool      `json:"pending"`
	UpdatedAt time.Time `json:"updated_at"`
}

type inflight struct {
	cancel context.CancelFunc
	seq    uint64
}

// Desk runs analyst requests in the background. A new request cancels any
// in-flight request of the same kind; superseded results are discarded.
type Desk struct {
	analyst *Analyst
	now     func() time.Time

	mu       sync.Mutex
	slots    map[string]Commentary
	inflight map[string]inflight
	seq      uint64
	closed   bool
	wg       sync.WaitGroup
	onUpdate func(Commentary)
}

// NewDesk creates a desk around an analyst. A nil clock uses time.Now.
func NewDesk(analyst *Analyst, now func() time.Time) *Desk {
	if now == nil {
		now = time.Now
	}
	return &Desk{
		analyst:  analyst,
		now:      now,
		slots:    make(map[string]Commentary),
		inflight: make(map[string]inflight),
	}
}

// OnUpdate registers a callback invoked after each completed request.
func (d *Desk) OnUpdate(fn func(Commentary)) {
	d.mu.Lock()
	d.onUpdate = fn
	d.mu.Unlock()
}

// RequestInsight starts an insight request for a snapshot copy.
func (d *Desk) RequestInsight(ctx context.Context, s models.MarketSnapshot, bias models.Bias, zones []models.ReferenceZone) {
	zones = append([]models.ReferenceZone(nil), zones...)
	d.request(ctx, KindInsight, func(ctx context.Context) string {
		return d.analyst.Insight(ctx, s, bias, zones)
	})
}

// RequestCharts starts a chart analysis request.
func (d *Desk) RequestCharts(ctx context.Context, daily, intraday []byte) {
	d.request(ctx, KindCharts, func(ctx context.Context) string {
		return d.analyst.AnalyzeCharts(ctx, daily, intraday)
	})
}

func (d *Desk) request(parent context.Context, kind string, run func(context.Context) string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if prev, ok := d.inflight[kind]; ok {
		prev.cancel()
	}
	d.seq++
	seq := d.seq
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	d.inflight[kind] = inflight{cancel: cancel, seq: seq}

	slot := d.slots[kind]
	slot.Kind = kind
	slot.Pending = true
	d.slots[kind] = slot
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer cancel()

		text := run(ctx)

		d.mu.Lock()
		cur, ok := d.inflight[kind]
		if !ok || cur.seq != seq || ctx.Err() != nil {
			d.mu.Unlock()
			return
		}
		delete(d.inflight, kind)
		c := Commentary{Kind: kind, Text: text, UpdatedAt: d.now()}
		d.slots[kind] = c
		notify := d.onUpdate
		d.mu.Unlock()

		if notify != nil {
			notify(c)
		}
	}()
}

// Cancel aborts the in-flight request of a kind, keeping the previous text.
func (d *Desk) Cancel(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.inflight[kind]; ok {
		cur.cancel()
		delete(d.inflight, kind)
		slot := d.slots[kind]
		slot.Pending = false
		d.slots[kind] = slot
	}
}

// Commentary returns the slot for a kind.
func (d *Desk) Commentary(kind string) Commentary {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.slots[kind]
	if !ok {
		return Commentary{Kind: kind}
	}
	return c
}

// All returns the insight and charts slots.
func (d *Desk) All() []Commentary {
	return []Commentary{d.Commentary(KindInsight), d.Commentary(KindCharts)}
}

// Wait blocks until all in-flight requests have returned.
func (d *Desk) Wait() {
	d.wg.Wait()
}

// Close cancels in-flight requests and waits for them to return.
func (d *Desk) Close() {
	d.mu.Lock()
	d.closed = true
	for kind, cur := range d.inflight {
		cur.cancel()
		delete(d.inflight, kind)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
