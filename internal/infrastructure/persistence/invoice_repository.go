package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Create inserts an invoice; duplicate provider invoice IDs surface
// shared.ErrAlreadyExists so webhook re-delivery can no-op
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *billing.Invoice) error {
	var model models.InvoiceModel
	model.FromDomain(inv)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates an existing invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	var model models.InvoiceModel
	model.FromDomain(inv)
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"tenant_id":    model.TenantID,
			"amount_cents": model.AmountCents,
			"currency":     model.Currency,
			"status":       model.Status,
			"issued_at":    model.IssuedAt,
			"due_at":       model.DueAt,
			"paid_at":      model.PaidAt,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByProviderInvoiceID finds an invoice by the provider's identifier
func (r *GormInvoiceRepository) FindByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "provider_invoice_id = ?", providerInvoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOverdue returns open invoices whose due date has passed, oldest first
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due_at IS NOT NULL AND due_at < ?", billing.InvoiceStatusOpen, asOf).
		Order("due_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, 0, len(rows))
	for i := range rows {
		invoices = append(invoices, *rows[i].ToDomain())
	}
	return invoices, nil
}

// FindAll returns invoices, optionally scoped to a tenant, paginated
func (r *GormInvoiceRepository) FindAll(ctx context.Context, tenantID *uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InvoiceModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").
		Limit(filter.PageSize).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	invoices := make([]billing.Invoice, 0, len(rows))
	for i := range rows {
		invoices = append(invoices, *rows[i].ToDomain())
	}
	return invoices, total, nil
}
