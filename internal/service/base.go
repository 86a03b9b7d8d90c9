package service

import (
	"github.com/vzahanych/binsight/internal/logger"
)

// ServiceBase carries the name, logger and bus plumbing common to
// every service implementation. Embed it and implement Start and Stop.
type ServiceBase struct {
	name string
	log  *logger.Logger
	bus  *EventBus
}

// NewServiceBase creates the embeddable base for a named service.
func NewServiceBase(name string, log *logger.Logger) *ServiceBase {
	return &ServiceBase{name: name, log: log}
}

// Name returns the service name.
func (b *ServiceBase) Name() string {
	return b.name
}

// SetEventBus injects the shared bus; the manager calls this at
// registration.
func (b *ServiceBase) SetEventBus(bus *EventBus) {
	b.bus = bus
}

// PublishEvent emits an event with this service as the source. Safe
// without a bus; the event is dropped.
func (b *ServiceBase) PublishEvent(t EventType, data map[string]interface{}) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(Event{Type: t, Source: b.name, Data: data})
}

// LogInfo logs at info level with the service name attached.
func (b *ServiceBase) LogInfo(msg string, fields ...interface{}) {
	b.log.Info(msg, append([]interface{}{"service", b.name}, fields...)...)
}

// LogError logs err with the service name attached.
func (b *ServiceBase) LogError(msg string, err error, fields ...interface{}) {
	b.log.Error(msg, append([]interface{}{"service", b.name, "error", err}, fields...)...)
}
