package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/tenant"
	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// isUniqueViolation reports whether err is a unique constraint violation.
// Covers the postgres driver's translated error and the raw message forms
// from postgres and sqlite (used in tests).
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// GormTenantRepository implements tenant.Repository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// Create inserts a new tenant. A concurrent insert with the same slug
// surfaces shared.ErrAlreadyExists.
func (r *GormTenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	var model models.TenantModel
	model.FromDomain(t)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates an existing tenant
func (r *GormTenantRepository) Save(ctx context.Context, t *tenant.Tenant) error {
	var model models.TenantModel
	model.FromDomain(t)
	result := r.db.WithContext(ctx).Model(&models.TenantModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"name":          model.Name,
			"plan":          model.Plan,
			"status":        model.Status,
			"billing_email": model.BillingEmail,
			"settings":      model.Settings,
			"status_reason": model.StatusReason,
			"updated_at":    model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a tenant by ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySlug finds a tenant by its slug
func (r *GormTenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).First(&model, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsBySlug reports whether a tenant with the slug exists
func (r *GormTenantRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TenantModel{}).
		Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll returns tenants matching the optional status filter, paginated
func (r *GormTenantRepository) FindAll(ctx context.Context, status *tenant.Status, filter shared.Filter) ([]tenant.Tenant, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.TenantModel{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR slug LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.TenantModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").
		Limit(filter.PageSize).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	tenants := make([]tenant.Tenant, 0, len(rows))
	for i := range rows {
		tenants = append(tenants, *rows[i].ToDomain())
	}
	return tenants, total, nil
}

// Delete removes a tenant row. Used only by tests and admin tooling;
// normal lifecycle ends at the cancelled status.
func (r *GormTenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.TenantModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
