package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/support"
)

// TicketModel is the persistence model for support tickets
type TicketModel struct {
	BaseModel
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Subject        string     `gorm:"size:200;not null"`
	Status         string     `gorm:"size:20;not null;index"`
	Priority       string     `gorm:"size:10;not null"`
	RequesterEmail string     `gorm:"size:320;not null"`
	AssigneeID     *uuid.UUID `gorm:"type:uuid;index"`
	FirstReplyAt   *time.Time
	ResolvedAt     *time.Time `gorm:"index"`
	ClosedAt       *time.Time
}

// TableName returns the table name
func (TicketModel) TableName() string {
	return "tickets"
}

// ToDomain converts the model to a domain ticket
func (m *TicketModel) ToDomain() *support.Ticket {
	return &support.Ticket{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
		},
		TenantID:       m.TenantID,
		Subject:        m.Subject,
		Status:         support.TicketStatus(m.Status),
		Priority:       support.TicketPriority(m.Priority),
		RequesterEmail: m.RequesterEmail,
		AssigneeID:     m.AssigneeID,
		FirstReplyAt:   m.FirstReplyAt,
		ResolvedAt:     m.ResolvedAt,
		ClosedAt:       m.ClosedAt,
	}
}

// FromDomain populates the model from a domain ticket
func (m *TicketModel) FromDomain(t *support.Ticket) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.TenantID = t.TenantID
	m.Subject = t.Subject
	m.Status = string(t.Status)
	m.Priority = string(t.Priority)
	m.RequesterEmail = t.RequesterEmail
	m.AssigneeID = t.AssigneeID
	m.FirstReplyAt = t.FirstReplyAt
	m.ResolvedAt = t.ResolvedAt
	m.ClosedAt = t.ClosedAt
}

// MessageModel is the persistence model for ticket messages
type MessageModel struct {
	BaseModel
	TicketID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	AuthorKind string     `gorm:"size:10;not null"`
	AuthorID   *uuid.UUID `gorm:"type:uuid"`
	Body       string     `gorm:"type:text;not null"`
	Internal   bool       `gorm:"not null;default:false"`
}

// TableName returns the table name
func (MessageModel) TableName() string {
	return "ticket_messages"
}

// ToDomain converts the model to a domain message
func (m *MessageModel) ToDomain() support.Message {
	return support.Message{
		BaseEntity: m.BaseModel.ToDomain(),
		TicketID:   m.TicketID,
		AuthorKind: support.AuthorKind(m.AuthorKind),
		AuthorID:   m.AuthorID,
		Body:       m.Body,
		Internal:   m.Internal,
	}
}

// FromDomain populates the model from a domain message
func (m *MessageModel) FromDomain(msg *support.Message) {
	m.FromDomainBaseEntity(msg.BaseEntity)
	m.TicketID = msg.TicketID
	m.AuthorKind = string(msg.AuthorKind)
	m.AuthorID = msg.AuthorID
	m.Body = msg.Body
	m.Internal = msg.Internal
}
