package support

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// Repository persists tickets and their message threads
type Repository interface {
	Create(ctx context.Context, ticket *Ticket) error
	Save(ctx context.Context, ticket *Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	FindAll(ctx context.Context, tenantID *uuid.UUID, status *TicketStatus, filter shared.Filter) ([]Ticket, int64, error)

	AddMessage(ctx context.Context, msg *Message) error
	FindMessages(ctx context.Context, ticketID uuid.UUID) ([]Message, error)

	// FindSLACandidates returns unresolved tickets with no first reply
	// created before the given cutoff per priority window
	FindSLACandidates(ctx context.Context, now time.Time) ([]Ticket, error)
	// FindAutoCloseCandidates returns resolved tickets older than the
	// auto-close window
	FindAutoCloseCandidates(ctx context.Context, now time.Time) ([]Ticket, error)
}
