package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func existingTenant(t *testing.T) *tenant.Tenant {
	t.Helper()
	created, err := tenant.NewTenant("Acme", "acme", tenant.DefaultPlan, "")
	require.NoError(t, err)
	require.NoError(t, created.Activate())
	created.ClearDomainEvents()
	return created
}

func membership(t *testing.T, userID, tenantID uuid.UUID, role tenant.Role) *tenant.Membership {
	t.Helper()
	m, err := tenant.NewMembership(userID, tenantID, role)
	require.NoError(t, err)
	return m
}

func TestMembershipService_AddMember(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("adds a member to an existing tenant", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		memberships := new(MockMembershipRepository)
		existing := existingTenant(t)

		tenants.On("FindByID", ctx, existing.ID).Return(existing, nil)
		memberships.On("Find", ctx, userID, existing.ID).Return(nil, shared.ErrNotFound)
		memberships.On("Upsert", ctx, mock.MatchedBy(func(m *tenant.Membership) bool {
			return m.UserID == userID && m.Role == tenant.RoleMember
		})).Return(nil)

		svc := NewMembershipService(tenants, memberships, zap.NewNop())
		m, err := svc.AddMember(ctx, existing.ID, AddMemberRequest{UserID: userID, Role: tenant.RoleMember})

		require.NoError(t, err)
		assert.Equal(t, tenant.RoleMember, m.Role)
		memberships.AssertExpectations(t)
	})

	t.Run("unknown tenant rejected", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		memberships := new(MockMembershipRepository)
		tenantID := uuid.New()

		tenants.On("FindByID", ctx, tenantID).Return(nil, shared.ErrNotFound)

		svc := NewMembershipService(tenants, memberships, zap.NewNop())
		_, err := svc.AddMember(ctx, tenantID, AddMemberRequest{UserID: userID, Role: tenant.RoleMember})

		assert.ErrorIs(t, err, shared.ErrNotFound)
		memberships.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("demoting the last owner blocked", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		memberships := new(MockMembershipRepository)
		existing := existingTenant(t)

		tenants.On("FindByID", ctx, existing.ID).Return(existing, nil)
		memberships.On("Find", ctx, userID, existing.ID).
			Return(membership(t, userID, existing.ID, tenant.RoleOwner), nil)
		memberships.On("CountOwners", ctx, existing.ID).Return(int64(1), nil)

		svc := NewMembershipService(tenants, memberships, zap.NewNop())
		_, err := svc.AddMember(ctx, existing.ID, AddMemberRequest{UserID: userID, Role: tenant.RoleAdmin})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "OWNER_REQUIRED", domainErr.Code)
		memberships.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("demoting an owner with a co-owner allowed", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		memberships := new(MockMembershipRepository)
		existing := existingTenant(t)

		tenants.On("FindByID", ctx, existing.ID).Return(existing, nil)
		memberships.On("Find", ctx, userID, existing.ID).
			Return(membership(t, userID, existing.ID, tenant.RoleOwner), nil)
		memberships.On("CountOwners", ctx, existing.ID).Return(int64(2), nil)
		memberships.On("Upsert", ctx, mock.Anything).Return(nil)

		svc := NewMembershipService(tenants, memberships, zap.NewNop())
		_, err := svc.AddMember(ctx, existing.ID, AddMemberRequest{UserID: userID, Role: tenant.RoleAdmin})

		require.NoError(t, err)
		memberships.AssertExpectations(t)
	})
}

func TestMembershipService_RemoveMember(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	tenantID := uuid.New()

	t.Run("removes a regular member", func(t *testing.T) {
		memberships := new(MockMembershipRepository)
		memberships.On("Find", ctx, userID, tenantID).
			Return(membership(t, userID, tenantID, tenant.RoleMember), nil)
		memberships.On("Remove", ctx, userID, tenantID).Return(nil)

		svc := NewMembershipService(new(MockTenantRepository), memberships, zap.NewNop())
		require.NoError(t, svc.RemoveMember(ctx, tenantID, userID))
		memberships.AssertExpectations(t)
	})

	t.Run("removing the last owner blocked", func(t *testing.T) {
		memberships := new(MockMembershipRepository)
		memberships.On("Find", ctx, userID, tenantID).
			Return(membership(t, userID, tenantID, tenant.RoleOwner), nil)
		memberships.On("CountOwners", ctx, tenantID).Return(int64(1), nil)

		svc := NewMembershipService(new(MockTenantRepository), memberships, zap.NewNop())
		err := svc.RemoveMember(ctx, tenantID, userID)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "OWNER_REQUIRED", domainErr.Code)
		memberships.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("removing an owner with a co-owner allowed", func(t *testing.T) {
		memberships := new(MockMembershipRepository)
		memberships.On("Find", ctx, userID, tenantID).
			Return(membership(t, userID, tenantID, tenant.RoleOwner), nil)
		memberships.On("CountOwners", ctx, tenantID).Return(int64(2), nil)
		memberships.On("Remove", ctx, userID, tenantID).Return(nil)

		svc := NewMembershipService(new(MockTenantRepository), memberships, zap.NewNop())
		require.NoError(t, svc.RemoveMember(ctx, tenantID, userID))
		memberships.AssertExpectations(t)
	})

	t.Run("unknown membership surfaces not found", func(t *testing.T) {
		memberships := new(MockMembershipRepository)
		memberships.On("Find", ctx, userID, tenantID).Return(nil, shared.ErrNotFound)

		svc := NewMembershipService(new(MockTenantRepository), memberships, zap.NewNop())
		assert.ErrorIs(t, svc.RemoveMember(ctx, tenantID, userID), shared.ErrNotFound)
	})
}
