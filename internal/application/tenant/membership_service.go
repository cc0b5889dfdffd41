package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/tenant"
	"go.uber.org/zap"
)

// MembershipService manages user-tenant role assignments. The invariant it
// protects: a tenant always has at least one owner.
type MembershipService struct {
	tenantRepo     tenant.Repository
	membershipRepo tenant.MembershipRepository
	logger         *zap.Logger
}

// NewMembershipService creates a new MembershipService
func NewMembershipService(
	tenantRepo tenant.Repository,
	membershipRepo tenant.MembershipRepository,
	logger *zap.Logger,
) *MembershipService {
	return &MembershipService{
		tenantRepo:     tenantRepo,
		membershipRepo: membershipRepo,
		logger:         logger.Named("membership"),
	}
}

// AddMemberRequest is the input for adding or updating a member
type AddMemberRequest struct {
	UserID uuid.UUID   `json:"user_id" binding:"required"`
	Role   tenant.Role `json:"role" binding:"required"`
}

// AddMember adds a user to a tenant or updates their role. Demoting the
// last owner is rejected with OWNER_REQUIRED.
func (s *MembershipService) AddMember(ctx context.Context, tenantID uuid.UUID, req AddMemberRequest) (*tenant.Membership, error) {
	if _, err := s.tenantRepo.FindByID(ctx, tenantID); err != nil {
		return nil, err
	}

	m, err := tenant.NewMembership(req.UserID, tenantID, req.Role)
	if err != nil {
		return nil, err
	}

	if req.Role != tenant.RoleOwner {
		existing, err := s.membershipRepo.Find(ctx, req.UserID, tenantID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if existing != nil && existing.IsOwner() {
			if err := s.ensureAnotherOwner(ctx, tenantID); err != nil {
				return nil, err
			}
		}
	}

	if err := s.membershipRepo.Upsert(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("membership upserted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("role", string(req.Role)),
	)
	return m, nil
}

// RemoveMember removes a user from a tenant. Removing the last owner is
// rejected with OWNER_REQUIRED.
func (s *MembershipService) RemoveMember(ctx context.Context, tenantID, userID uuid.UUID) error {
	m, err := s.membershipRepo.Find(ctx, userID, tenantID)
	if err != nil {
		return err
	}
	if m.IsOwner() {
		if err := s.ensureAnotherOwner(ctx, tenantID); err != nil {
			return err
		}
	}
	return s.membershipRepo.Remove(ctx, userID, tenantID)
}

// ListForTenant returns all memberships of a tenant
func (s *MembershipService) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Membership, error) {
	if _, err := s.tenantRepo.FindByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.membershipRepo.ListForTenant(ctx, tenantID)
}

// ListForUser returns all memberships of a user across tenants
func (s *MembershipService) ListForUser(ctx context.Context, userID uuid.UUID) ([]tenant.Membership, error) {
	return s.membershipRepo.ListForUser(ctx, userID)
}

func (s *MembershipService) ensureAnotherOwner(ctx context.Context, tenantID uuid.UUID) error {
	owners, err := s.membershipRepo.CountOwners(ctx, tenantID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return shared.NewDomainError("OWNER_REQUIRED", "A tenant must keep at least one owner")
	}
	return nil
}
