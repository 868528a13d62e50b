// Package metrics records copilot activity for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradecopilot/internal/models"
)

// Recorder holds the copilot collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	ticks           prometheus.Counter
	signals         *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	dailyPnL        prometheus.Gauge
	riskBlocked     prometheus.Gauge
	analystRequests *prometheus.CounterVec
	analystDuration *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates a recorder with its own registry, including Go runtime collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "copilot_ticks_total",
			Help: "Total number of simulated ticks",
		}),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_signals_total",
				Help: "Total number of signals opened",
			},
			[]string{"direction"},
		),
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_signal_outcomes_total",
				Help: "Total number of signals closed by outcome",
			},
			[]string{"outcome"},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "copilot_last_price",
				Help: "Last simulated price for an asset",
			},
			[]string{"asset"},
		),
		dailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "copilot_daily_pnl",
			Help: "Realized session P&L in BRL",
		}),
		riskBlocked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "copilot_risk_blocked",
			Help: "1 when the daily loss limit has blocked the session",
		}),
		analystRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_analyst_requests_total",
				Help: "Total number of analyst requests by kind and status",
			},
			[]string{"kind", "status"},
		),
		analystDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "copilot_analyst_duration_seconds",
				Help:    "Duration of analyst calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"kind"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_http_requests_total",
				Help: "Total number of dashboard HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "copilot_http_request_duration_seconds",
				Help:    "Dashboard HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler exposing the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordTick records one simulated tick.
func (r *Recorder) RecordTick(asset models.Asset, price float64) {
	r.ticks.Inc()
	r.lastPrice.WithLabelValues(string(asset)).Set(price)
}

// RecordSignal records an opened signal.
func (r *Recorder) RecordSignal(direction models.Direction) {
	r.signals.WithLabelValues(string(direction)).Inc()
}

// RecordOutcome records a closed signal.
func (r *Recorder) RecordOutcome(outcome models.Outcome) {
	r.outcomes.WithLabelValues(string(outcome)).Inc()
}

// RecordRisk records the session P&L and breaker state.
func (r *Recorder) RecordRisk(status models.RiskStatus) {
	r.dailyPnL.Set(status.CurrentPnL)
	if status.Blocked {
		r.riskBlocked.Set(1)
	} else {
		r.riskBlocked.Set(0)
	}
}

// ObserveAnalystCall records an analyst call.
func (r *Recorder) ObserveAnalystCall(kind, status string, duration time.Duration) {
	r.analystRequests.WithLabelValues(kind, status).Inc()
	if duration > 0 {
		r.analystDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// RecordHTTPRequest records a dashboard request. route should be the
// templated path to keep label cardinality low.
func (r *Recorder) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
