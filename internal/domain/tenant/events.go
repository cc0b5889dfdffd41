package tenant

import (
	"github.com/noro/control-plane/internal/domain/shared"
)

// Event types emitted by the tenant aggregate
const (
	EventTenantCreated       = "tenant_created"
	EventTenantSuspended     = "tenant_suspended"
	EventTenantCancelled     = "tenant_cancelled"
	EventTenantStatusChanged = "tenant_status_changed"
)

const aggregateType = "tenant"

// TenantCreatedEvent is emitted when provisioning completes successfully
type TenantCreatedEvent struct {
	shared.BaseDomainEvent
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	SchemaName string `json:"schema_name"`
	Plan       Plan   `json:"plan"`
}

// NewTenantCreatedEvent creates a tenant created event
func NewTenantCreatedEvent(t *Tenant) *TenantCreatedEvent {
	return &TenantCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTenantCreated, aggregateType, t.ID, t.ID),
		Name:            t.Name,
		Slug:            t.Slug,
		SchemaName:      t.SchemaName,
		Plan:            t.Plan,
	}
}

// TenantSuspendedEvent is emitted when a tenant is suspended
type TenantSuspendedEvent struct {
	shared.BaseDomainEvent
	Slug   string `json:"slug"`
	Reason string `json:"reason,omitempty"`
}

// NewTenantSuspendedEvent creates a tenant suspended event
func NewTenantSuspendedEvent(t *Tenant, reason string) *TenantSuspendedEvent {
	return &TenantSuspendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTenantSuspended, aggregateType, t.ID, t.ID),
		Slug:            t.Slug,
		Reason:          reason,
	}
}

// TenantCancelledEvent is emitted when a tenant is terminated
type TenantCancelledEvent struct {
	shared.BaseDomainEvent
	Slug       string `json:"slug"`
	FromStatus Status `json:"from_status"`
}

// NewTenantCancelledEvent creates a tenant cancelled event
func NewTenantCancelledEvent(t *Tenant, from Status) *TenantCancelledEvent {
	return &TenantCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTenantCancelled, aggregateType, t.ID, t.ID),
		Slug:            t.Slug,
		FromStatus:      from,
	}
}

// TenantStatusChangedEvent is emitted for remaining status transitions
type TenantStatusChangedEvent struct {
	shared.BaseDomainEvent
	Slug       string `json:"slug"`
	FromStatus Status `json:"from_status"`
	ToStatus   Status `json:"to_status"`
	Reason     string `json:"reason,omitempty"`
}

// NewTenantStatusChangedEvent creates a status changed event
func NewTenantStatusChangedEvent(t *Tenant, from Status) *TenantStatusChangedEvent {
	return &TenantStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTenantStatusChanged, aggregateType, t.ID, t.ID),
		Slug:            t.Slug,
		FromStatus:      from,
		ToStatus:        t.Status,
		Reason:          t.StatusReason,
	}
}
