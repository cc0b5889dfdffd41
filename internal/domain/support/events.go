package support

import "github.com/noro/control-plane/internal/domain/shared"

// Event types emitted by the ticket aggregate
const (
	EventTicketCreated       = "ticket_created"
	EventTicketStatusChanged = "ticket_status_changed"
)

const aggregateType = "ticket"

// TicketCreatedEvent is emitted when a new ticket is opened
type TicketCreatedEvent struct {
	shared.BaseDomainEvent
	Subject        string         `json:"subject"`
	Priority       TicketPriority `json:"priority"`
	RequesterEmail string         `json:"requester_email"`
}

// NewTicketCreatedEvent creates a ticket created event
func NewTicketCreatedEvent(t *Ticket) *TicketCreatedEvent {
	return &TicketCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTicketCreated, aggregateType, t.ID, t.TenantID),
		Subject:         t.Subject,
		Priority:        t.Priority,
		RequesterEmail:  t.RequesterEmail,
	}
}

// TicketStatusChangedEvent is emitted on every state machine move
type TicketStatusChangedEvent struct {
	shared.BaseDomainEvent
	FromStatus     TicketStatus `json:"from_status"`
	ToStatus       TicketStatus `json:"to_status"`
	RequesterEmail string       `json:"requester_email"`
}

// NewTicketStatusChangedEvent creates a status changed event
func NewTicketStatusChangedEvent(t *Ticket, from, to TicketStatus) *TicketStatusChangedEvent {
	return &TicketStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTicketStatusChanged, aggregateType, t.ID, t.TenantID),
		FromStatus:      from,
		ToStatus:        to,
		RequesterEmail:  t.RequesterEmail,
	}
}
