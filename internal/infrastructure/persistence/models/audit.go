package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventModel is the append-only record of domain events for the
// admin activity trail
type AuditEventModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	EventType     string    `gorm:"size:100;not null;index"`
	AggregateType string    `gorm:"size:50;not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null;index"`
	TenantID      uuid.UUID `gorm:"type:uuid;index"`
	Payload       string    `gorm:"type:jsonb;not null;default:'{}'"`
	OccurredAt    time.Time `gorm:"not null;index"`
}

// TableName returns the table name
func (AuditEventModel) TableName() string {
	return "audit_events"
}
