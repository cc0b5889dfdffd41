package tenant

import (
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// Role represents a user's role within a tenant
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ValidateRole checks that a role is one of the known values
func ValidateRole(role Role) error {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return nil
	default:
		return shared.NewDomainError("INVALID_ROLE", "Invalid membership role")
	}
}

// Membership assigns a user a role within a tenant. Unique on
// (user_id, tenant_id); changing the role updates in place.
type Membership struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMembership creates a membership record
func NewMembership(userID, tenantID uuid.UUID, role Role) (*Membership, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID is required")
	}
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID is required")
	}
	if err := ValidateRole(role); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Membership{
		UserID:    userID,
		TenantID:  tenantID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsOwner returns true for owner memberships
func (m *Membership) IsOwner() bool {
	return m.Role == RoleOwner
}
