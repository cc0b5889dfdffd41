package support

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/support"
	"github.com/noro/control-plane/internal/infrastructure/notifier"
	"github.com/noro/control-plane/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// Job type identifiers for the support follow-ups
const (
	JobTypeNotifyEmail = "support_notify_email"
	JobTypeSLACheck    = "support_sla_check"
	JobTypeAutoClose   = "support_ticket_auto_close"
)

// emailDedupeTTL bounds how long a sent notification is remembered. The
// queue delivers at least once; without this a retried job after a crash
// would email the requester twice.
const emailDedupeTTL = 24 * time.Hour

// NotifyEmailPayload is the payload of a support_notify_email job
type NotifyEmailPayload struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}

// SLACheckPayload is the payload of a support_sla_check job
type SLACheckPayload struct {
	TicketID uuid.UUID `json:"ticket_id"`
}

// AutoClosePayload is the payload of a support_ticket_auto_close job
type AutoClosePayload struct {
	TicketID uuid.UUID `json:"ticket_id"`
}

// TicketJobHandlers are the queue handlers behind the ticket service
type TicketJobHandlers struct {
	ticketRepo       support.Repository
	notifier         notifier.Notifier
	idempotencyStore shared.IdempotencyStore
	eventBus         shared.EventPublisher
	escalationEmail  string
	logger           *zap.Logger
}

// NewTicketJobHandlers creates the handler set. escalationEmail receives
// SLA breach notices for unassigned tickets.
func NewTicketJobHandlers(
	ticketRepo support.Repository,
	n notifier.Notifier,
	idempotencyStore shared.IdempotencyStore,
	eventBus shared.EventPublisher,
	escalationEmail string,
	logger *zap.Logger,
) *TicketJobHandlers {
	return &TicketJobHandlers{
		ticketRepo:       ticketRepo,
		notifier:         n,
		idempotencyStore: idempotencyStore,
		eventBus:         eventBus,
		escalationEmail:  escalationEmail,
		logger:           logger.Named("support-jobs"),
	}
}

// Register binds the handlers to their job types on the pool
func (h *TicketJobHandlers) Register(pool *queue.WorkerPool) error {
	if err := pool.Register(JobTypeNotifyEmail, h.HandleNotifyEmail); err != nil {
		return err
	}
	if err := pool.Register(JobTypeSLACheck, h.HandleSLACheck); err != nil {
		return err
	}
	return pool.Register(JobTypeAutoClose, h.HandleAutoClose)
}

// HandleNotifyEmail sends one ticket notification, deduplicated per job
// so a crashed-and-retried send does not email twice
func (h *TicketJobHandlers) HandleNotifyEmail(ctx context.Context, j *job.Job) error {
	var payload NotifyEmailPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return err
	}

	dedupeKey := "email:" + j.ID.String()
	sent, err := h.idempotencyStore.IsProcessed(ctx, dedupeKey)
	if err != nil {
		return err
	}
	if sent {
		h.logger.Debug("notification already sent, skipping",
			zap.String("job_id", j.ID.String()),
		)
		return nil
	}

	if err := h.notifier.SendEmail(ctx, notifier.Email{
		To:      payload.Recipient,
		Subject: payload.Subject,
		Body:    payload.Body,
	}); err != nil {
		// Key stays unmarked so the queue's retry attempts the send again
		return err
	}

	if _, err := h.idempotencyStore.MarkProcessed(ctx, dedupeKey, emailDedupeTTL); err != nil {
		h.logger.Warn("failed to record sent notification",
			zap.String("job_id", j.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// HandleSLACheck fires at the ticket's first-response deadline. If no
// staff reply has landed, the priority is escalated one step and the
// support team is notified. Answered, resolved, or deleted tickets no-op.
func (h *TicketJobHandlers) HandleSLACheck(ctx context.Context, j *job.Job) error {
	var payload SLACheckPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return err
	}

	ticket, err := h.ticketRepo.FindByID(ctx, payload.TicketID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !ticket.IsSLABreached(time.Now()) {
		return nil
	}

	escalated := ticket.Escalate()
	if escalated {
		if err := h.ticketRepo.Save(ctx, ticket); err != nil {
			return err
		}
	}
	h.logger.Warn("ticket breached first-response SLA",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("priority", string(ticket.Priority)),
		zap.Bool("escalated", escalated),
	)

	return h.notifier.SendEmail(ctx, notifier.Email{
		To:      h.escalationEmail,
		Subject: "SLA breach: " + ticket.Subject,
		Body:    "Ticket " + ticket.ID.String() + " has no first response past its deadline.",
	})
}

// HandleAutoClose closes a resolved ticket after the retention window,
// but only if it is still resolved; a reopened ticket is left alone.
func (h *TicketJobHandlers) HandleAutoClose(ctx context.Context, j *job.Job) error {
	var payload AutoClosePayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return err
	}

	ticket, err := h.ticketRepo.FindByID(ctx, payload.TicketID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !ticket.ShouldAutoClose(time.Now()) {
		return nil
	}

	if err := ticket.TransitionTo(support.TicketStatusClosed, time.Now()); err != nil {
		return err
	}
	if err := h.ticketRepo.Save(ctx, ticket); err != nil {
		return err
	}

	events := ticket.GetDomainEvents()
	if len(events) > 0 {
		if pubErr := h.eventBus.Publish(ctx, events...); pubErr != nil {
			h.logger.Error("failed to publish auto-close events", zap.Error(pubErr))
		}
		ticket.ClearDomainEvents()
	}

	h.logger.Info("ticket auto-closed", zap.String("ticket_id", ticket.ID.String()))
	return nil
}
