package shared

import "context"

// EventHandler consumes domain events. EventTypes names the subscriptions;
// an empty slice subscribes to everything.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher fans domain events out to handlers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber manages handler registrations. Subscribe without event
// types falls back to the handler's own EventTypes.
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus is the full publish/subscribe surface.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
