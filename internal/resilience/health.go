package resilience

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency_ns,omitempty"`
}

// HealthCheck checks one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// SystemHealth is the aggregate of every registered check.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	Components []ComponentHealth `json:"components"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	startTime time.Time
	now       func() time.Time
}

// NewHealthMonitor creates a monitor. A nil clock uses time.Now.
func NewHealthMonitor(now func() time.Time) *HealthMonitor {
	if now == nil {
		now = time.Now
	}
	return &HealthMonitor{
		checks:    make(map[string]HealthCheck),
		startTime: now(),
		now:       now,
	}
}

// RegisterComponent adds or replaces a named check.
func (m *HealthMonitor) RegisterComponent(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs every check. The overall status is the worst component status.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Uptime:     m.now().Sub(m.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	for _, name := range names {
		c := checks[name](ctx)
		c.Name = name
		if c.LastCheck.IsZero() {
			c.LastCheck = m.now()
		}
		health.Components = append(health.Components, c)
		health.Status = worse(health.Status, c.Status)
	}
	return health
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// DatabaseHealthCheck pings a database. Slow pings are degraded.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := ping(ctx)
		health := ComponentHealth{Latency: time.Since(start)}

		switch {
		case err != nil:
			health.Status = HealthStatusUnhealthy
			health.Message = fmt.Sprintf("Database ping failed: %v", err)
		case health.Latency > 100*time.Millisecond:
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("Database slow: %v", health.Latency)
		default:
			health.Status = HealthStatusHealthy
		}
		return health
	}
}

// BreakerHealthCheck reports an open or probing breaker as degraded.
func BreakerHealthCheck(b *Breaker) HealthCheck {
	return func(context.Context) ComponentHealth {
		stats := b.Stats()
		rate := fmt.Sprintf("failure rate %.1f%%", stats.FailureRate())
		switch b.State() {
		case StateOpen:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "circuit open, requests rejected; " + rate}
		case StateHalfOpen:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "circuit half-open, probing; " + rate}
		default:
			return ComponentHealth{Status: HealthStatusHealthy, Message: rate}
		}
	}
}

// LoopHealthCheck reports a background loop as unhealthy once done is closed.
func LoopHealthCheck(done <-chan struct{}) HealthCheck {
	return func(context.Context) ComponentHealth {
		select {
		case <-done:
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: "stopped"}
		default:
			return ComponentHealth{Status: HealthStatusHealthy}
		}
	}
}
