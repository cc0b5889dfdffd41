// Package testutil holds the small helpers shared by the integration tests.
package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/noro/control-plane/internal/domain/shared"
)

// MockEventHandler records every domain event routed to it.
type MockEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
}

// NewMockEventHandler subscribes to the given event types; with none it
// receives everything the bus publishes.
func NewMockEventHandler(eventTypes ...string) *MockEventHandler {
	return &MockEventHandler{eventTypes: eventTypes}
}

func (h *MockEventHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return nil
}

// Handled returns a snapshot of the events seen so far.
func (h *MockEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// NewTestUUID derives a stable UUID from a seed so fixtures line up
// across test runs.
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestTenantID is the tenant every integration fixture provisions under.
func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// TestUserID is the default acting user in integration fixtures.
func TestUserID() uuid.UUID {
	return NewTestUUID("test-user")
}
