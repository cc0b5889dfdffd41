package support

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/support"
	"github.com/noro/control-plane/internal/domain/tenant"
	"go.uber.org/zap"
)

// TicketService drives the support ticket state machine and enqueues the
// asynchronous follow-ups (notifications, SLA checks, auto-close).
// Enqueue failures are logged, never propagated: a missed notification
// must not fail the ticket operation itself.
type TicketService struct {
	ticketRepo support.Repository
	tenantRepo tenant.Repository
	jobRepo    job.Repository
	eventBus   shared.EventPublisher
	logger     *zap.Logger
}

// NewTicketService creates a new TicketService
func NewTicketService(
	ticketRepo support.Repository,
	tenantRepo tenant.Repository,
	jobRepo job.Repository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		tenantRepo: tenantRepo,
		jobRepo:    jobRepo,
		eventBus:   eventBus,
		logger:     logger.Named("ticket"),
	}
}

// CreateTicketRequest is the input for opening a ticket
type CreateTicketRequest struct {
	TenantID       uuid.UUID              `json:"tenant_id" binding:"required"`
	Subject        string                 `json:"subject" binding:"required"`
	RequesterEmail string                 `json:"requester_email" binding:"required,email"`
	Priority       support.TicketPriority `json:"priority"`
}

// Create opens a ticket and schedules its SLA check at the deadline
func (s *TicketService) Create(ctx context.Context, req CreateTicketRequest) (*support.Ticket, error) {
	if _, err := s.tenantRepo.FindByID(ctx, req.TenantID); err != nil {
		return nil, err
	}

	ticket, err := support.NewTicket(req.TenantID, req.Subject, req.RequesterEmail, req.Priority)
	if err != nil {
		return nil, err
	}
	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, ticket)
	s.enqueueSLACheck(ctx, ticket)
	s.enqueueNotification(ctx, ticket, "Ticket received: "+ticket.Subject,
		"We have received your request and will get back to you shortly.")

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("tenant_id", ticket.TenantID.String()),
		zap.String("priority", string(ticket.Priority)),
	)
	return ticket, nil
}

// Get returns a ticket by id
func (s *TicketService) Get(ctx context.Context, id uuid.UUID) (*support.Ticket, error) {
	return s.ticketRepo.FindByID(ctx, id)
}

// List returns tickets, optionally filtered by tenant and status
func (s *TicketService) List(ctx context.Context, tenantID *uuid.UUID, status *support.TicketStatus, filter shared.Filter) ([]support.Ticket, int64, error) {
	return s.ticketRepo.FindAll(ctx, tenantID, status, filter)
}

// Transition moves a ticket through the state machine. A move into
// resolved schedules the auto-close job.
func (s *TicketService) Transition(ctx context.Context, id uuid.UUID, target support.TicketStatus) (*support.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := ticket.TransitionTo(target, now); err != nil {
		return nil, err
	}
	if err := s.ticketRepo.Save(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, ticket)
	s.enqueueNotification(ctx, ticket, "Ticket update: "+ticket.Subject,
		"Your ticket is now "+string(ticket.Status)+".")

	if target == support.TicketStatusResolved {
		s.enqueueAutoClose(ctx, ticket, now)
	}
	return ticket, nil
}

// Assign sets the staff member working a ticket
func (s *TicketService) Assign(ctx context.Context, id, userID uuid.UUID) (*support.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ticket.Assign(userID); err != nil {
		return nil, err
	}
	if err := s.ticketRepo.Save(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateTicketRequest is a partial ticket update; nil fields are untouched
type UpdateTicketRequest struct {
	Status     *support.TicketStatus   `json:"status"`
	AssignedTo *uuid.UUID              `json:"assigned_to"`
	Priority   *support.TicketPriority `json:"priority"`
}

// IsEmpty reports whether the patch carries no changes
func (r UpdateTicketRequest) IsEmpty() bool {
	return r.Status == nil && r.AssignedTo == nil && r.Priority == nil
}

// Update applies a partial update in one save. A status move goes through
// the state machine exactly as Transition does; assignment and priority
// follow their own domain rules. An empty patch is rejected.
func (s *TicketService) Update(ctx context.Context, id uuid.UUID, req UpdateTicketRequest) (*support.Ticket, error) {
	if req.IsEmpty() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Update carries no changes")
	}

	ticket, err := s.ticketRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if req.Priority != nil {
		if err := ticket.SetPriority(*req.Priority); err != nil {
			return nil, err
		}
	}
	if req.AssignedTo != nil {
		if err := ticket.Assign(*req.AssignedTo); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if err := ticket.TransitionTo(*req.Status, now); err != nil {
			return nil, err
		}
	}

	if err := s.ticketRepo.Save(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, ticket)
	if req.Status != nil {
		s.enqueueNotification(ctx, ticket, "Ticket update: "+ticket.Subject,
			"Your ticket is now "+string(ticket.Status)+".")
		if *req.Status == support.TicketStatusResolved {
			s.enqueueAutoClose(ctx, ticket, now)
		}
	}
	return ticket, nil
}

// AddMessageRequest is the input for appending to a ticket thread
type AddMessageRequest struct {
	AuthorKind support.AuthorKind `json:"author_kind" binding:"required"`
	AuthorID   *uuid.UUID         `json:"author_id"`
	Body       string             `json:"body" binding:"required"`
	Internal   bool               `json:"internal"`
}

// AddMessage appends a message. The first non-internal staff reply stops
// the SLA clock; non-internal messages notify the requester.
func (s *TicketService) AddMessage(ctx context.Context, ticketID uuid.UUID, req AddMessageRequest) (*support.Message, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	msg, err := support.NewMessage(ticket, req.AuthorKind, req.AuthorID, req.Body, req.Internal)
	if err != nil {
		return nil, err
	}
	if err := s.ticketRepo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	if req.AuthorKind == support.AuthorStaff && !req.Internal {
		ticket.RecordFirstReply(time.Now())
		if err := s.ticketRepo.Save(ctx, ticket); err != nil {
			return nil, err
		}
	}

	if !req.Internal {
		s.enqueueNotification(ctx, ticket, "New reply on: "+ticket.Subject,
			"Your ticket has a new message.")
	}
	return msg, nil
}

// ListMessages returns the full thread of a ticket
func (s *TicketService) ListMessages(ctx context.Context, ticketID uuid.UUID) ([]support.Message, error) {
	if _, err := s.ticketRepo.FindByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.ticketRepo.FindMessages(ctx, ticketID)
}

func (s *TicketService) enqueueSLACheck(ctx context.Context, ticket *support.Ticket) {
	j, err := job.NewScheduledJob(JobTypeSLACheck, SLACheckPayload{TicketID: ticket.ID}, ticket.SLADeadline())
	if err != nil {
		s.logger.Error("failed to build SLA check job", zap.Error(err))
		return
	}
	j.WithIdempotencyKey("sla:" + ticket.ID.String())
	s.enqueue(ctx, j)
}

func (s *TicketService) enqueueAutoClose(ctx context.Context, ticket *support.Ticket, resolvedAt time.Time) {
	j, err := job.NewScheduledJob(JobTypeAutoClose, AutoClosePayload{TicketID: ticket.ID}, resolvedAt.Add(support.AutoCloseAfter))
	if err != nil {
		s.logger.Error("failed to build auto-close job", zap.Error(err))
		return
	}
	// Keyed on the resolution instant: a ticket that is reopened and
	// resolved again gets a fresh auto-close job.
	j.WithIdempotencyKey("autoclose:" + ticket.ID.String() + ":" + resolvedAt.UTC().Format(time.RFC3339))
	s.enqueue(ctx, j)
}

func (s *TicketService) enqueueNotification(ctx context.Context, ticket *support.Ticket, subject, body string) {
	j, err := job.NewJob(JobTypeNotifyEmail, NotifyEmailPayload{
		TicketID:  ticket.ID,
		Recipient: ticket.RequesterEmail,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		s.logger.Error("failed to build notification job", zap.Error(err))
		return
	}
	s.enqueue(ctx, j)
}

func (s *TicketService) enqueue(ctx context.Context, j *job.Job) {
	if _, err := s.jobRepo.Enqueue(ctx, j); err != nil {
		s.logger.Error("failed to enqueue job",
			zap.String("job_type", j.Type),
			zap.Error(err),
		)
	}
}

func (s *TicketService) publishEvents(ctx context.Context, ticket *support.Ticket) {
	events := ticket.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish ticket events", zap.Error(err))
	}
	ticket.ClearDomainEvents()
}
