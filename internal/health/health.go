// Package health aggregates component probes for the /health endpoints.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/vzahanych/binsight/internal/logger"
)

// Status classifies a component's health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Check is the result of a single component probe.
type Check struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Checker probes one component. Implementations must be cheap enough to run
// on every health poll and must never mutate the component they inspect.
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// Report is the aggregate of all registered checks.
type Report struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Manager runs registered checkers and aggregates their results.
type Manager struct {
	logger    *logger.Logger
	mu        sync.RWMutex
	checkers  []Checker
	startTime time.Time
}

// NewManager creates an empty health manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		logger:    log,
		startTime: time.Now(),
	}
}

// Register adds a checker to the registry.
func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check runs every registered checker. A single degraded component degrades
// the whole report; the process is still serving, so there is no harder
// failure state than degraded here.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	checks := make(map[string]Check, len(m.checkers))
	overall := StatusHealthy

	for _, checker := range m.checkers {
		check := checker.Check(ctx)
		check.Name = checker.Name()
		check.Timestamp = now
		checks[check.Name] = check

		if check.Status == StatusDegraded {
			overall = StatusDegraded
		}
	}

	return Report{
		Status:    overall,
		Timestamp: now,
		Uptime:    time.Since(m.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
}
