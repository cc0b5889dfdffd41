package support

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// TicketStatus represents the lifecycle state of a support ticket
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusWaitingCustomer TicketStatus = "waiting_customer"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
)

// TicketPriority drives the first-response SLA window
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// ticketTransitions is the allowed state machine. Closed is terminal.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:            {TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved},
	TicketStatusInProgress:      {TicketStatusWaitingCustomer, TicketStatusResolved},
	TicketStatusWaitingCustomer: {TicketStatusInProgress},
	TicketStatusResolved:        {TicketStatusClosed},
}

// slaWindows maps priority to the first-response deadline
var slaWindows = map[TicketPriority]time.Duration{
	PriorityUrgent: 2 * time.Hour,
	PriorityHigh:   8 * time.Hour,
	PriorityNormal: 24 * time.Hour,
	PriorityLow:    72 * time.Hour,
}

// AutoCloseAfter is how long a resolved ticket sits before auto-closing
const AutoCloseAfter = 7 * 24 * time.Hour

const maxSubjectLength = 200

// Ticket is a support request raised against a tenant
type Ticket struct {
	shared.BaseAggregateRoot
	TenantID       uuid.UUID
	Subject        string
	Status         TicketStatus
	Priority       TicketPriority
	RequesterEmail string
	AssigneeID     *uuid.UUID
	FirstReplyAt   *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
}

// NewTicket creates an open ticket
func NewTicket(tenantID uuid.UUID, subject, requesterEmail string, priority TicketPriority) (*Ticket, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, shared.NewDomainError("INVALID_TICKET", "Subject is required")
	}
	if len(subject) > maxSubjectLength {
		return nil, shared.NewDomainError("INVALID_TICKET", "Subject exceeds maximum length")
	}
	if requesterEmail == "" {
		return nil, shared.NewDomainError("INVALID_TICKET", "Requester email is required")
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if _, ok := slaWindows[priority]; !ok {
		return nil, shared.NewDomainError("INVALID_PRIORITY", "Invalid ticket priority")
	}

	t := &Ticket{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TenantID:          tenantID,
		Subject:           subject,
		Status:            TicketStatusOpen,
		Priority:          priority,
		RequesterEmail:    requesterEmail,
	}
	t.AddDomainEvent(NewTicketCreatedEvent(t))
	return t, nil
}

// CanTransitionTo reports whether the state machine allows the move
func (t *Ticket) CanTransitionTo(target TicketStatus) bool {
	for _, allowed := range ticketTransitions[t.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the ticket through the state machine. Invalid moves
// return INVALID_TRANSITION with both states named.
func (t *Ticket) TransitionTo(target TicketStatus, at time.Time) error {
	switch target {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved, TicketStatusClosed:
	default:
		return shared.NewDomainError("INVALID_STATUS", "Unknown ticket status: "+string(target))
	}
	if !t.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_TRANSITION",
			"Cannot transition ticket from "+string(t.Status)+" to "+string(target))
	}

	from := t.Status
	t.Status = target
	switch target {
	case TicketStatusResolved:
		t.ResolvedAt = &at
	case TicketStatusClosed:
		t.ClosedAt = &at
	}
	t.Touch()
	t.AddDomainEvent(NewTicketStatusChangedEvent(t, from, target))
	return nil
}

// Assign sets the staff member working the ticket
func (t *Ticket) Assign(userID uuid.UUID) error {
	if t.Status == TicketStatusClosed {
		return shared.NewDomainError("TICKET_CLOSED", "Cannot assign a closed ticket")
	}
	t.AssigneeID = &userID
	t.Touch()
	return nil
}

// SetPriority changes the priority of a ticket that is still being worked
func (t *Ticket) SetPriority(priority TicketPriority) error {
	if _, ok := slaWindows[priority]; !ok {
		return shared.NewDomainError("INVALID_PRIORITY", "Invalid ticket priority")
	}
	if t.Status == TicketStatusClosed {
		return shared.NewDomainError("TICKET_CLOSED", "Cannot reprioritize a closed ticket")
	}
	if t.Priority == priority {
		return nil
	}
	t.Priority = priority
	t.Touch()
	return nil
}

// RecordFirstReply stamps the SLA clock on the first staff response
func (t *Ticket) RecordFirstReply(at time.Time) {
	if t.FirstReplyAt == nil {
		t.FirstReplyAt = &at
		t.Touch()
	}
}

// SLADeadline returns when the first response is due
func (t *Ticket) SLADeadline() time.Time {
	return t.CreatedAt.Add(slaWindows[t.Priority])
}

// IsSLABreached reports whether the ticket is past its first-response
// deadline with no staff reply recorded
func (t *Ticket) IsSLABreached(now time.Time) bool {
	if t.FirstReplyAt != nil {
		return false
	}
	switch t.Status {
	case TicketStatusResolved, TicketStatusClosed:
		return false
	}
	return now.After(t.SLADeadline())
}

// Escalate bumps the priority one step towards urgent. Returns false
// when the ticket is already urgent.
func (t *Ticket) Escalate() bool {
	next := map[TicketPriority]TicketPriority{
		PriorityLow:    PriorityNormal,
		PriorityNormal: PriorityHigh,
		PriorityHigh:   PriorityUrgent,
	}
	escalated, ok := next[t.Priority]
	if !ok {
		return false
	}
	t.Priority = escalated
	t.Touch()
	return true
}

// ShouldAutoClose reports whether a resolved ticket has aged out
func (t *Ticket) ShouldAutoClose(now time.Time) bool {
	if t.Status != TicketStatusResolved || t.ResolvedAt == nil {
		return false
	}
	return now.Sub(*t.ResolvedAt) >= AutoCloseAfter
}
