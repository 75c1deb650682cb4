// Package handlers implements the HTTP handlers served by swiftfs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "github.com/3leaps/swiftfs/internal/errors"
)

// Health states reported per check and overall.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusTimeout   = "timeout"
)

// DefaultCheckTimeout bounds each checker run.
const DefaultCheckTimeout = 5 * time.Second

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthResponse is the body of a successful health probe.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthManager runs registered checkers and serves the probe endpoints.
type HealthManager struct {
	version string
	started time.Time
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager returns a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		started:  time.Now(),
		timeout:  DefaultCheckTimeout,
		checkers: make(map[string]HealthChecker),
	}
}

// SetTimeout changes the per-check timeout. Non-positive values are ignored.
func (m *HealthManager) SetTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

// RegisterChecker adds or replaces the checker named name.
func (m *HealthManager) RegisterChecker(name string, c HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

// HealthHandler runs every checker. It responds 200 when all are healthy
// or some timed out, and 503 when any failed.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	m.respond(w, r, m.determineOverallStatus(checks), checks)
}

// LivenessHandler reports that the process is serving requests.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, StatusHealthy, nil)
}

// ReadinessHandler reports whether dependencies are usable.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.HealthHandler(w, r)
}

// StartupHandler reports that initialization finished.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, StatusHealthy, nil)
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]HealthChecker, len(names))
	for i, name := range names {
		checkers[i] = m.checkers[name]
	}
	m.mu.RUnlock()

	results := make(map[string]string, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(name string, c HealthChecker) {
			defer wg.Done()
			status := m.check(ctx, c)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, checkers[i])
	}
	wg.Wait()
	return results
}

func (m *HealthManager) check(ctx context.Context, c HealthChecker) string {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := c.CheckHealth(ctx)
	switch {
	case err == nil:
		return StatusHealthy
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusUnhealthy
	}
}

// determineOverallStatus folds per-check states: any failure is
// unhealthy, otherwise any timeout is degraded.
func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := StatusHealthy
	for _, s := range checks {
		switch s {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

func (m *HealthManager) respond(w http.ResponseWriter, r *http.Request, status string, checks map[string]string) {
	if status == StatusUnhealthy {
		details := make(map[string]any, len(checks))
		for k, v := range checks {
			details[k] = v
		}
		apperrors.WriteError(w, http.StatusServiceUnavailable, apperrors.HTTPError{
			Code:      apperrors.CodeServiceUnavailable,
			Message:   "one or more health checks failed",
			Details:   map[string]any{"checks": details},
			RequestID: apperrors.RequestIDFrom(r),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(m.started).Round(time.Second).String(),
		Checks:    checks,
	})
}

var (
	globalMu            sync.RWMutex
	globalHealthManager *HealthManager
)

// InitHealthManager installs the process-wide manager used by the
// package-level handlers.
func InitHealthManager(version string) *HealthManager {
	m := NewHealthManager(version)
	globalMu.Lock()
	globalHealthManager = m
	globalMu.Unlock()
	return m
}

// GetHealthManager returns the process-wide manager, or nil.
func GetHealthManager() *HealthManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalHealthManager
}

// HealthHandler serves /health from the process-wide manager.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	withManager(w, r, (*HealthManager).HealthHandler)
}

// LivenessHandler serves /health/live from the process-wide manager.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	withManager(w, r, (*HealthManager).LivenessHandler)
}

// ReadinessHandler serves /health/ready from the process-wide manager.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	withManager(w, r, (*HealthManager).ReadinessHandler)
}

// StartupHandler serves /health/startup from the process-wide manager.
func StartupHandler(w http.ResponseWriter, r *http.Request) {
	withManager(w, r, (*HealthManager).StartupHandler)
}

func withManager(w http.ResponseWriter, r *http.Request, fn func(*HealthManager, http.ResponseWriter, *http.Request)) {
	m := GetHealthManager()
	if m == nil {
		apperrors.WriteError(w, http.StatusServiceUnavailable, apperrors.HTTPError{
			Code:      apperrors.CodeServiceUnavailable,
			Message:   "health manager not initialized",
			RequestID: apperrors.RequestIDFrom(r),
		})
		return
	}
	fn(m, w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
