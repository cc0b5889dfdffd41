package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/tenant"
	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMembershipRepository implements tenant.MembershipRepository using GORM
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a new GormMembershipRepository
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// Upsert inserts or updates the role for (userID, tenantID)
func (r *GormMembershipRepository) Upsert(ctx context.Context, m *tenant.Membership) error {
	var model models.MembershipModel
	model.FromDomain(m)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&model).Error
}

// Remove deletes the membership for (userID, tenantID)
func (r *GormMembershipRepository) Remove(ctx context.Context, userID, tenantID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Delete(&models.MembershipModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Find returns the membership for (userID, tenantID)
func (r *GormMembershipRepository) Find(ctx context.Context, userID, tenantID uuid.UUID) (*tenant.Membership, error) {
	var model models.MembershipModel
	if err := r.db.WithContext(ctx).
		First(&model, "user_id = ? AND tenant_id = ?", userID, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListForUser returns all memberships of a user
func (r *GormMembershipRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]tenant.Membership, error) {
	var rows []models.MembershipModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMemberships(rows), nil
}

// ListForTenant returns all memberships of a tenant
func (r *GormMembershipRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Membership, error) {
	var rows []models.MembershipModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMemberships(rows), nil
}

// CountOwners returns the number of owner memberships for a tenant
func (r *GormMembershipRepository) CountOwners(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MembershipModel{}).
		Where("tenant_id = ? AND role = ?", tenantID, string(tenant.RoleOwner)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func toMemberships(rows []models.MembershipModel) []tenant.Membership {
	memberships := make([]tenant.Membership, 0, len(rows))
	for i := range rows {
		memberships = append(memberships, *rows[i].ToDomain())
	}
	return memberships
}
