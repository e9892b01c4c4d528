package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/memorial-crm/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// PingFunc probes one dependency.
type PingFunc func(ctx context.Context) error

type dependency struct {
	name     string
	critical bool
	ping     PingFunc
	slow     time.Duration
}

// HealthChecker probes the configured dependencies (document store, search
// index). Failing critical dependencies make the service unhealthy; others
// only degrade it.
type HealthChecker struct {
	deps      []dependency
	startTime time.Time
	timeout   time.Duration
}

// NewHealthChecker creates a checker with no dependencies.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startTime: time.Now(), timeout: 3 * time.Second}
}

// AddCheck registers a dependency probe. Latency above slow reports the
// dependency as degraded.
func (hc *HealthChecker) AddCheck(name string, critical bool, slow time.Duration, ping PingFunc) *HealthChecker {
	hc.deps = append(hc.deps, dependency{name: name, critical: critical, ping: ping, slow: slow})
	return hc
}

const healthVersion = "1.0.0"

// HandleHealth always returns 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  hc.overallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := hc.overallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

// runAllChecks probes every dependency concurrently.
func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	checks := make(map[string]ComponentCheck, len(hc.deps))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, d := range hc.deps {
		wg.Add(1)
		go func(d dependency) {
			defer wg.Done()
			c := hc.check(ctx, d)
			mu.Lock()
			checks[d.name] = c
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return checks
}

func (hc *HealthChecker) check(ctx context.Context, d dependency) ComponentCheck {
	pingCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := d.ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if d.slow > 0 && latency > d.slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

func (hc *HealthChecker) overallStatus(checks map[string]ComponentCheck) string {
	overall := "healthy"
	for _, d := range hc.deps {
		c := checks[d.name]
		switch {
		case c.Status == "down" && d.critical:
			return "unhealthy"
		case c.Status != "up":
			overall = "degraded"
		}
	}
	return overall
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
