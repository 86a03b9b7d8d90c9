package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vzahanych/binsight/internal/logger"
)

// stopTimeout caps how long a single service may take to stop before
// shutdown moves on to the next one.
const stopTimeout = 10 * time.Second

// Service is anything the manager can run.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// ServiceWithEvents additionally receives the shared event bus at
// registration time.
type ServiceWithEvents interface {
	Service
	SetEventBus(bus *EventBus)
}

// entry pairs a registered service with its status tracker.
// Registration order is start order; shutdown walks it backwards.
type entry struct {
	svc    Service
	status *ServiceStatus
}

// Manager starts and stops the registered services and owns the event
// bus they share.
type Manager struct {
	log     *logger.Logger
	bus     *EventBus
	mu      sync.RWMutex
	entries []*entry
	wg      sync.WaitGroup
}

// NewManager creates a manager with an empty registry and a fresh bus.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		log: log,
		bus: NewEventBus(100),
	}
}

// GetEventBus returns the bus shared by all registered services.
func (m *Manager) GetEventBus() *EventBus {
	return m.bus
}

// Register adds a service. Register dependencies before their
// dependents: start runs in registration order and shutdown in
// reverse.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ws, ok := svc.(ServiceWithEvents); ok {
		ws.SetEventBus(m.bus)
	}
	m.entries = append(m.entries, &entry{
		svc:    svc,
		status: NewServiceStatus(svc.Name()),
	})
}

// Start launches every registered service in its own goroutine. A
// service whose Start returns an error is recorded on its status and
// announced as a service.error event; it does not abort the others,
// so Start itself always returns nil.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info("Launching services", "count", len(m.entries))

	for _, e := range m.entries {
		e := e
		e.status.SetStatus(StatusStarting)

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()

			m.bus.Publish(Event{
				Type:   EventTypeServiceStarted,
				Source: "manager",
				Data:   map[string]interface{}{"service": e.svc.Name()},
			})

			if err := e.svc.Start(ctx); err != nil {
				e.status.SetError(err)
				m.log.Error("Service start failed", "service", e.svc.Name(), "error", err)
				m.bus.Publish(Event{
					Type:   EventTypeServiceError,
					Source: e.svc.Name(),
					Data:   map[string]interface{}{"error": err.Error()},
				})
				return
			}
			e.status.SetStatus(StatusRunning)
			m.log.Info("Service running", "service", e.svc.Name())
		}()
	}

	// Launches are asynchronous; give them a beat so immediate
	// failures surface before the caller proceeds.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Shutdown stops services in reverse registration order, giving each
// up to stopTimeout, then closes the bus. It returns early with an
// error when ctx expires first.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info("Stopping services", "count", len(m.entries))
	defer m.bus.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(m.entries) - 1; i >= 0; i-- {
			m.stopEntry(ctx, m.entries[i])
		}
		m.wg.Wait()
	}()

	select {
	case <-done:
		m.log.Info("All services stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (m *Manager) stopEntry(ctx context.Context, e *entry) {
	e.status.SetStatus(StatusStopping)

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	if err := e.svc.Stop(stopCtx); err != nil {
		e.status.SetError(err)
		m.log.Error("Service stop failed", "service", e.svc.Name(), "error", err)
	} else {
		e.status.SetStatus(StatusStopped)
		m.log.Info("Service stopped", "service", e.svc.Name())
	}

	m.bus.Publish(Event{
		Type:   EventTypeServiceStopped,
		Source: "manager",
		Data:   map[string]interface{}{"service": e.svc.Name()},
	})
}

// GetServiceCount reports how many services are registered.
func (m *Manager) GetServiceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// GetServiceStatus returns the tracker for the named service, nil when
// no such service is registered.
func (m *Manager) GetServiceStatus(name string) *ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.svc.Name() == name {
			return e.status
		}
	}
	return nil
}
