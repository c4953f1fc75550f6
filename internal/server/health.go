// Package server serves estimates over HTTP with health checks and graceful
// shutdown.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/program"
	"golang.org/x/sync/errgroup"
)

// HealthStatus is the state of one check or of the server as a whole.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the body of every health endpoint. Only /health fills
// Version and Checks.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker runs one named check. The name is filled in by the server.
type HealthChecker func(ctx context.Context) HealthCheck

// defaultCheckTimeout bounds each check when HealthConfig leaves it unset.
const defaultCheckTimeout = 5 * time.Second

// HealthServer serves liveness, readiness and component health.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	timeout time.Duration
	ready   atomic.Bool
	live    atomic.Bool
}

type HealthConfig struct {
	Version string
	// CheckTimeout bounds every check on /health. Zero means 5s.
	CheckTimeout time.Duration
}

// NewHealthServer returns a server that is live but not yet ready.
func NewHealthServer(config *HealthConfig) *HealthServer {
	s := &HealthServer{checks: make(map[string]HealthChecker), timeout: defaultCheckTimeout}
	if config != nil {
		s.version = config.Version
		if config.CheckTimeout > 0 {
			s.timeout = config.CheckTimeout
		}
	}
	s.live.Store(true)
	return s
}

// RegisterCheck adds a check, replacing any earlier one with the same name.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

func (s *HealthServer) SetReady(ready bool) { s.ready.Store(ready) }

func (s *HealthServer) SetLive(live bool) { s.live.Store(live) }

func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Register mounts /health, /ready and /live on mux, each also under its
// Kubernetes-style z alias.
func (s *HealthServer) Register(mux *http.ServeMux) {
	routes := map[string]http.HandlerFunc{
		"health": s.handleHealth,
		"ready":  s.flagHandler(&s.ready),
		"live":   s.flagHandler(&s.live),
	}
	for name, h := range routes {
		mux.HandleFunc("GET /"+name, h)
		mux.HandleFunc("GET /"+name+"z", h)
	}
}

// flagHandler answers from a single flag.
func (s *HealthServer) flagHandler(flag *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
		if !flag.Load() {
			resp.Status = HealthStatusUnhealthy
		}
		writeHealth(w, resp)
	}
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, s.Check(r.Context()))
}

// Check runs every registered check concurrently and folds their statuses:
// one unhealthy check makes the whole unhealthy, otherwise one degraded
// check makes it degraded. Checks are reported in name order.
func (s *HealthServer) Check(ctx context.Context) HealthResponse {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checkers := make([]HealthChecker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = s.checks[name]
	}
	s.mu.RUnlock()

	results := make([]HealthCheck, len(names))
	var g errgroup.Group
	for i, checker := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = checker(cctx)
			results[i].Name = names[i]
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Checks:    results,
	}
	for _, c := range results {
		if severity(c.Status) > severity(resp.Status) {
			resp.Status = c.Status
		}
	}
	return resp
}

func severity(s HealthStatus) int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	}
	return 2
}

func writeHealth(w http.ResponseWriter, resp HealthResponse) {
	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func checkResult(st HealthStatus, details map[string]string, format string, args ...any) HealthCheck {
	return HealthCheck{Status: st, Message: fmt.Sprintf(format, args...), Details: details}
}

// TemporalHealthChecker wraps a connectivity check such as the Temporal
// client's CheckHealth.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return checkResult(HealthStatusUnhealthy, nil, "Temporal connection failed: %v", err)
		}
		return checkResult(HealthStatusHealthy, nil, "Temporal connection OK")
	}
}

// CatalogHealthChecker is unhealthy while the catalog lacks either qubit or
// QEC scheme presets.
func CatalogHealthChecker(c *hardware.Catalog) HealthChecker {
	return func(context.Context) HealthCheck {
		qubits, schemes := len(c.Qubits()), len(c.Schemes())
		details := map[string]string{
			"qubits":      strconv.Itoa(qubits),
			"qec_schemes": strconv.Itoa(schemes),
		}
		if qubits == 0 || schemes == 0 {
			return checkResult(HealthStatusUnhealthy, details, "Hardware catalog is empty")
		}
		return checkResult(HealthStatusHealthy, details, "Hardware catalog OK")
	}
}

var canaryCounts = program.LogicalCounts{NumQubits: 2, TCount: 4, MeasurementCount: 2}

// EstimatorHealthChecker runs a tiny canary estimate on the named presets.
// It is unhealthy when the estimate fails and degraded when it takes longer
// than slow; a zero slow never degrades.
func EstimatorHealthChecker(e *estimator.Estimator, c *hardware.Catalog, qubit, scheme string, slow time.Duration) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		q, sc, err := estimator.ResolveHardware(c, hardware.QubitSpec{Name: qubit}, hardware.SchemeSpec{Name: scheme})
		if err != nil {
			return checkResult(HealthStatusUnhealthy, nil, "Estimator presets unavailable: %v", err)
		}
		start := time.Now()
		_, err = e.Estimate(ctx, estimator.Input{
			Counts:      canaryCounts,
			Qubit:       q,
			Scheme:      sc,
			Constraints: model.DefaultConstraints(),
			ErrorBudget: estimator.DefaultErrorBudget,
		})
		elapsed := time.Since(start)
		details := map[string]string{"qubit": q.Name, "qec_scheme": sc.Name, "duration": elapsed.String()}

		switch {
		case err != nil:
			return checkResult(HealthStatusUnhealthy, details, "Canary estimate failed: %v", err)
		case slow > 0 && elapsed > slow:
			return checkResult(HealthStatusDegraded, details, "Canary estimate took longer than %s", slow)
		}
		return checkResult(HealthStatusHealthy, details, "Estimator OK")
	}
}
