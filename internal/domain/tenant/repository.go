package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// Repository persists tenants. Slug and schema name uniqueness is
// enforced by the storage layer; Create surfaces
// shared.ErrAlreadyExists when a concurrent request wins the race.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	Save(ctx context.Context, t *Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	FindAll(ctx context.Context, status *Status, filter shared.Filter) ([]Tenant, int64, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MembershipRepository persists user-tenant role assignments
type MembershipRepository interface {
	// Upsert inserts or updates the role for (userID, tenantID)
	Upsert(ctx context.Context, m *Membership) error
	Remove(ctx context.Context, userID, tenantID uuid.UUID) error
	Find(ctx context.Context, userID, tenantID uuid.UUID) (*Membership, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]Membership, error)
	CountOwners(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
