package service

import (
	"sync"
	"time"
)

// EventType names a category of bus event.
type EventType string

const (
	// Lifecycle events published by the manager
	EventTypeServiceStarted EventType = "service.started"
	EventTypeServiceStopped EventType = "service.stopped"
	EventTypeServiceError   EventType = "service.error"

	// Model events
	EventTypeModelLoaded       EventType = "model.loaded"
	EventTypeWeightsDownloaded EventType = "model.weights_downloaded"

	// Prediction events
	EventTypePredictionCompleted EventType = "prediction.completed"
	EventTypePredictionFailed    EventType = "prediction.failed"
	EventTypeVideoProcessed      EventType = "prediction.video_processed"

	// Storage events
	EventTypeRetentionSweep EventType = "storage.retention_sweep"
	EventTypeStorageWarning EventType = "storage.warning"
)

// Event is one message on the bus.
type Event struct {
	Type      EventType
	Source    string // name of the emitting service
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventBus fans events out to subscribers by type. Publishing never
// blocks: a subscriber that stops draining its channel loses events
// rather than stalling the publisher.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[EventType][]chan Event
	buffer int
	closed bool
}

// NewEventBus returns a bus whose subscriber channels hold buffer
// events before drops begin.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 100
	}
	return &EventBus{
		subs:   make(map[EventType][]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns a channel that receives every subsequent event of
// the given type. The channel closes when the bus closes; subscribing
// to an already closed bus returns a closed channel.
func (b *EventBus) Subscribe(t EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[t] = append(b.subs[t], ch)
	return ch
}

// Publish delivers the event to current subscribers of its type,
// stamping the timestamp unless the caller set one. Publishing on a
// closed bus is a no-op, so services still winding down during
// shutdown cannot hit a closed channel.
func (b *EventBus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[ev.Type] {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop
		}
	}
}

// Close closes every subscriber channel and drops the registry.
// Idempotent.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for t, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(b.subs, t)
	}
}
