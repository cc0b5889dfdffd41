package event

import (
	"context"
	"sync"

	"github.com/noro/control-plane/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus implements shared.EventBus with in-process pub/sub.
// Dispatch is synchronous: Publish returns after every interested handler
// has run. Handler failures are logged and do not block other handlers or
// fail the publishing operation.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	wildcard []shared.EventHandler
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]shared.EventHandler),
		logger:   logger.Named("eventbus"),
	}
}

// Publish dispatches events to all registered handlers synchronously
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		for _, handler := range b.handlersFor(evt.EventType()) {
			if err := b.dispatch(ctx, handler, evt); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", evt.EventType()),
					zap.String("event_id", evt.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types.
// If no event types are provided, the handler's own EventTypes() is used;
// an empty result subscribes it to all events.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
	} else {
		for _, eventType := range eventTypes {
			b.handlers[eventType] = append(b.handlers[eventType], handler)
		}
	}
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from every event type
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcard = removeHandler(b.wildcard, handler)
	for eventType, handlers := range b.handlers {
		b.handlers[eventType] = removeHandler(handlers, handler)
		if len(b.handlers[eventType]) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.handlers[eventType]
	result := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	result = append(result, typed...)
	result = append(result, b.wildcard...)
	return result
}

// dispatch runs a single handler, converting panics into logged errors so
// one misbehaving subscriber cannot take down the publisher.
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", evt.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, evt)
}

func removeHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
