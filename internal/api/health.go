package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status   string `json:"status"` // "up", "down", "not_configured"
	Critical bool   `json:"critical"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}

// PingFunc probes one dependency.
type PingFunc func(ctx context.Context) error

type probe struct {
	ping     PingFunc
	critical bool
}

// HealthChecker pings the configured dependencies concurrently.
type HealthChecker struct {
	probes    map[string]probe
	startTime time.Time
}

// NewHealthChecker creates a checker with no probes.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{probes: map[string]probe{}, startTime: time.Now()}
}

// Add registers a probe. A critical probe that fails makes the service
// unhealthy; a non-critical one only degrades it.
func (hc *HealthChecker) Add(name string, critical bool, ping PingFunc) *HealthChecker {
	hc.probes[name] = probe{ping: ping, critical: critical}
	return hc
}

// RedisPing adapts a go-redis client.
func RedisPing(c redis.Cmdable) PingFunc {
	return func(ctx context.Context) error { return c.Ping(ctx).Err() }
}

// Check runs every probe with a 3-second timeout each.
func (hc *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]ComponentCheck, len(hc.probes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, p := range hc.probes {
		wg.Add(1)
		go func(name string, p probe) {
			defer wg.Done()
			c := runProbe(ctx, p)
			mu.Lock()
			checks[name] = c
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	return HealthStatus{
		Status: overallStatus(checks),
		Uptime: formatUptime(time.Since(hc.startTime)),
		Checks: checks,
	}
}

func runProbe(ctx context.Context, p probe) ComponentCheck {
	if p.ping == nil {
		return ComponentCheck{Status: "not_configured", Critical: p.critical}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := p.ping(ctx)
	c := ComponentCheck{Status: "up", Critical: p.critical, Latency: time.Since(start).String()}
	if err != nil {
		c.Status = "down"
		c.Message = err.Error()
	}
	return c
}

func overallStatus(checks map[string]ComponentCheck) string {
	status := "healthy"
	for _, c := range checks {
		if c.Status != "down" {
			continue
		}
		if c.Critical {
			return "unhealthy"
		}
		status = "degraded"
	}
	return status
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// HealthCheck reports dependency health. It answers 503 when a critical
// dependency is down so it can double as a readiness probe.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.Health == nil {
		httputil.OK(w, HealthStatus{Status: "healthy", Checks: map[string]ComponentCheck{}})
		return
	}
	st := h.Health.Check(r.Context())
	code := http.StatusOK
	if st.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, st)
}
