// Package eventbus carries jobline events between the orchestrator, worker
// runners and notification consumers.
package eventbus

import (
	"context"

	"github.com/dukex/jobline/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes an event. Events sharing a key keep their order;
// worker events use the job id.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes decoded events to one handler per event type.
// Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the concrete event struct. A returned
// error nacks the message for redelivery.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
