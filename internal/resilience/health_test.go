package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHealthMonitorAggregatesWorstStatus(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	m := NewHealthMonitor(clock.now)

	done := make(chan struct{})
	breaker := New("analyst", Config{FailureThreshold: 1, Cooldown: time.Minute}, clock.now)
	m.RegisterComponent("driver", LoopHealthCheck(done))
	m.RegisterComponent("analyst", BreakerHealthCheck(breaker))
	m.RegisterComponent("journal", DatabaseHealthCheck(func(context.Context) error { return nil }))

	clock.advance(90 * time.Second)
	h := m.Check(context.Background())
	if h.Status != HealthStatusHealthy || len(h.Components) != 3 {
		t.Fatalf("health = %+v", h)
	}
	if h.Components[0].Name != "analyst" || h.Components[2].Name != "journal" {
		t.Errorf("components not sorted: %+v", h.Components)
	}
	if h.Uptime != "1m30s" {
		t.Errorf("uptime = %s", h.Uptime)
	}

	_ = execute(context.Background(), breaker, fail)
	h = m.Check(context.Background())
	if h.Status != HealthStatusDegraded {
		t.Errorf("open breaker: status = %s, want DEGRADED", h.Status)
	}
	if msg := h.Components[0].Message; msg != "circuit open, requests rejected; failure rate 100.0%" {
		t.Errorf("analyst message = %q", msg)
	}

	close(done)
	if h := m.Check(context.Background()); h.Status != HealthStatusUnhealthy {
		t.Errorf("stopped loop: status = %s, want UNHEALTHY", h.Status)
	}
}

func TestDatabaseHealthCheckFailure(t *testing.T) {
	check := DatabaseHealthCheck(func(context.Context) error { return errors.New("database is locked") })
	if c := check(context.Background()); c.Status != HealthStatusUnhealthy || c.Message == "" {
		t.Errorf("check = %+v", c)
	}
}
