package support

import (
	"strings"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// AuthorKind distinguishes who wrote a message
type AuthorKind string

const (
	AuthorCustomer AuthorKind = "customer"
	AuthorStaff    AuthorKind = "staff"
	AuthorSystem   AuthorKind = "system"
)

const maxMessageLength = 32 * 1024

// Message is one entry in a ticket's conversation thread
type Message struct {
	shared.BaseEntity
	TicketID   uuid.UUID
	AuthorKind AuthorKind
	AuthorID   *uuid.UUID
	Body       string
	Internal   bool
}

// NewMessage appends a message to a ticket's thread. Closed tickets do not
// accept new messages.
func NewMessage(ticket *Ticket, authorKind AuthorKind, authorID *uuid.UUID, body string, internal bool) (*Message, error) {
	if ticket.Status == TicketStatusClosed {
		return nil, shared.NewDomainError("TICKET_CLOSED", "Cannot add messages to a closed ticket")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Message body is required")
	}
	if len(body) > maxMessageLength {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Message body exceeds maximum length")
	}
	switch authorKind {
	case AuthorCustomer, AuthorStaff, AuthorSystem:
	default:
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Invalid author kind")
	}
	return &Message{
		BaseEntity: shared.NewBaseEntity(),
		TicketID:   ticket.ID,
		AuthorKind: authorKind,
		AuthorID:   authorID,
		Body:       body,
		Internal:   internal,
	}, nil
}
