package service

import (
	"sync"
)

// Status is a service lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// ServiceStatus tracks one service's state behind a lock so the
// manager can write it from the service goroutine while observers
// read it.
type ServiceStatus struct {
	mu    sync.RWMutex
	name  string
	state Status
	err   error
}

// NewServiceStatus creates a tracker in the stopped state.
func NewServiceStatus(name string) *ServiceStatus {
	return &ServiceStatus{name: name, state: StatusStopped}
}

// Name returns the service name this tracker belongs to.
func (s *ServiceStatus) Name() string {
	return s.name
}

// SetStatus moves the tracker to the given state. Entering
// StatusRunning clears any error from a previous attempt.
func (s *ServiceStatus) SetStatus(state Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state == StatusRunning {
		s.err = nil
	}
}

// SetError records err and moves the tracker to StatusError.
func (s *ServiceStatus) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatusError
	s.err = err
}

// GetStatus returns the current state.
func (s *ServiceStatus) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// GetError returns the recorded error, nil when none.
func (s *ServiceStatus) GetError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
