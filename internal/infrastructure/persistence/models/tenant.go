package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/tenant"
)

// TenantModel is the persistence model for tenants
type TenantModel struct {
	BaseModel
	Name         string `gorm:"size:200;not null"`
	Slug         string `gorm:"size:63;not null;uniqueIndex"`
	SchemaName   string `gorm:"size:80;not null"`
	Plan         string `gorm:"size:20;not null"`
	Status       string `gorm:"size:20;not null;index"`
	BillingEmail string `gorm:"size:320"`
	Settings     string `gorm:"type:jsonb;not null;default:'{}'"`
	StatusReason string `gorm:"size:500"`
}

// TableName returns the table name
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the model to a domain tenant
func (m *TenantModel) ToDomain() *tenant.Tenant {
	return &tenant.Tenant{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
		},
		Name:         m.Name,
		Slug:         m.Slug,
		SchemaName:   m.SchemaName,
		Plan:         tenant.Plan(m.Plan),
		Status:       tenant.Status(m.Status),
		BillingEmail: m.BillingEmail,
		Settings:     m.Settings,
		StatusReason: m.StatusReason,
	}
}

// FromDomain populates the model from a domain tenant
func (m *TenantModel) FromDomain(t *tenant.Tenant) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.Name = t.Name
	m.Slug = t.Slug
	m.SchemaName = t.SchemaName
	m.Plan = string(t.Plan)
	m.Status = string(t.Status)
	m.BillingEmail = t.BillingEmail
	m.Settings = t.Settings
	m.StatusReason = t.StatusReason
}

// MembershipModel is the persistence model for tenant memberships.
// The (user_id, tenant_id) pair is unique.
type MembershipModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Role      string    `gorm:"size:20;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name
func (MembershipModel) TableName() string {
	return "memberships"
}

// ToDomain converts the model to a domain membership
func (m *MembershipModel) ToDomain() *tenant.Membership {
	return &tenant.Membership{
		UserID:    m.UserID,
		TenantID:  m.TenantID,
		Role:      tenant.Role(m.Role),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain membership
func (m *MembershipModel) FromDomain(mem *tenant.Membership) {
	m.UserID = mem.UserID
	m.TenantID = mem.TenantID
	m.Role = string(mem.Role)
	m.CreatedAt = mem.CreatedAt
	m.UpdatedAt = mem.UpdatedAt
}
