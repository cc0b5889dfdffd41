package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AuditEvent is a persisted domain event for the admin activity trail
type AuditEvent struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   uuid.UUID
	TenantID      uuid.UUID
	Payload       json.RawMessage
	OccurredAt    time.Time
}

// GormAuditEventRepository persists domain events as an append-only trail
type GormAuditEventRepository struct {
	db *gorm.DB
}

// NewGormAuditEventRepository creates a new GormAuditEventRepository
func NewGormAuditEventRepository(db *gorm.DB) *GormAuditEventRepository {
	return &GormAuditEventRepository{db: db}
}

// Append records a domain event. The full event struct is serialized as
// the payload so event-specific fields survive.
func (r *GormAuditEventRepository) Append(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	model := models.AuditEventModel{
		ID:            event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		TenantID:      event.TenantID(),
		Payload:       string(payload),
		OccurredAt:    event.OccurredAt(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// List returns audit events, newest first, optionally scoped to a tenant
func (r *GormAuditEventRepository) List(ctx context.Context, tenantID *uuid.UUID, filter shared.Filter) ([]AuditEvent, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.AuditEventModel{})
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AuditEventModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("occurred_at DESC").
		Limit(filter.PageSize).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	events := make([]AuditEvent, 0, len(rows))
	for _, m := range rows {
		events = append(events, AuditEvent{
			ID:            m.ID,
			EventType:     m.EventType,
			AggregateType: m.AggregateType,
			AggregateID:   m.AggregateID,
			TenantID:      m.TenantID,
			Payload:       json.RawMessage(m.Payload),
			OccurredAt:    m.OccurredAt,
		})
	}
	return events, total, nil
}
