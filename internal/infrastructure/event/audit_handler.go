package event

import (
	"context"

	"github.com/noro/control-plane/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditAppender persists domain events to the append-only audit trail
type AuditAppender interface {
	Append(ctx context.Context, event shared.DomainEvent) error
}

// AuditTrailHandler subscribes to all domain events and records them for
// the admin activity feed. It is a wildcard subscriber: every published
// event lands in the trail.
type AuditTrailHandler struct {
	appender AuditAppender
	logger   *zap.Logger
}

// NewAuditTrailHandler creates a new audit trail handler
func NewAuditTrailHandler(appender AuditAppender, logger *zap.Logger) *AuditTrailHandler {
	return &AuditTrailHandler{
		appender: appender,
		logger:   logger.Named("audit"),
	}
}

// Handle persists the event. Errors are returned to the bus, which logs
// them; an audit write failure never fails the originating operation.
func (h *AuditTrailHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if err := h.appender.Append(ctx, event); err != nil {
		return err
	}
	h.logger.Debug("audit event recorded",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
	)
	return nil
}

// EventTypes returns an empty slice: the audit trail receives all events
func (h *AuditTrailHandler) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*AuditTrailHandler)(nil)
