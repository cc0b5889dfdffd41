package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/support"
	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// slaWindowsByPriority mirrors the domain's first-response windows for
// building the SLA candidate query in SQL
var slaWindowsByPriority = map[string]time.Duration{
	string(support.PriorityUrgent): 2 * time.Hour,
	string(support.PriorityHigh):   8 * time.Hour,
	string(support.PriorityNormal): 24 * time.Hour,
	string(support.PriorityLow):    72 * time.Hour,
}

// GormTicketRepository implements support.Repository using GORM
type GormTicketRepository struct {
	db *gorm.DB
}

// NewGormTicketRepository creates a new GormTicketRepository
func NewGormTicketRepository(db *gorm.DB) *GormTicketRepository {
	return &GormTicketRepository{db: db}
}

// Create inserts a new ticket
func (r *GormTicketRepository) Create(ctx context.Context, ticket *support.Ticket) error {
	var model models.TicketModel
	model.FromDomain(ticket)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save updates an existing ticket
func (r *GormTicketRepository) Save(ctx context.Context, ticket *support.Ticket) error {
	var model models.TicketModel
	model.FromDomain(ticket)
	result := r.db.WithContext(ctx).Model(&models.TicketModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"status":         model.Status,
			"priority":       model.Priority,
			"assignee_id":    model.AssigneeID,
			"first_reply_at": model.FirstReplyAt,
			"resolved_at":    model.ResolvedAt,
			"closed_at":      model.ClosedAt,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a ticket by ID
func (r *GormTicketRepository) FindByID(ctx context.Context, id uuid.UUID) (*support.Ticket, error) {
	var model models.TicketModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns tickets filtered by tenant and status, paginated
func (r *GormTicketRepository) FindAll(ctx context.Context, tenantID *uuid.UUID, status *support.TicketStatus, filter shared.Filter) ([]support.Ticket, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.TicketModel{})
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.TicketModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").
		Limit(filter.PageSize).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	tickets := make([]support.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, *rows[i].ToDomain())
	}
	return tickets, total, nil
}

// AddMessage appends a message to a ticket's thread
func (r *GormTicketRepository) AddMessage(ctx context.Context, msg *support.Message) error {
	var model models.MessageModel
	model.FromDomain(msg)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindMessages returns a ticket's messages in chronological order
func (r *GormTicketRepository) FindMessages(ctx context.Context, ticketID uuid.UUID) ([]support.Message, error) {
	var rows []models.MessageModel
	if err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	messages := make([]support.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].ToDomain())
	}
	return messages, nil
}

// FindSLACandidates returns unresolved tickets past their first-response
// window with no staff reply recorded
func (r *GormTicketRepository) FindSLACandidates(ctx context.Context, now time.Time) ([]support.Ticket, error) {
	query := r.db.WithContext(ctx).Model(&models.TicketModel{}).
		Where("first_reply_at IS NULL").
		Where("status NOT IN ?", []string{
			string(support.TicketStatusResolved),
			string(support.TicketStatusClosed),
		})

	// One clause per priority: created_at + window < now
	clause := r.db.Session(&gorm.Session{NewDB: true})
	var cond *gorm.DB
	for priority, window := range slaWindowsByPriority {
		c := clause.Where("priority = ? AND created_at < ?", priority, now.Add(-window))
		if cond == nil {
			cond = c
		} else {
			cond = cond.Or(c)
		}
	}
	query = query.Where(cond)

	var rows []models.TicketModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	tickets := make([]support.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, *rows[i].ToDomain())
	}
	return tickets, nil
}

// FindAutoCloseCandidates returns resolved tickets older than the
// auto-close window
func (r *GormTicketRepository) FindAutoCloseCandidates(ctx context.Context, now time.Time) ([]support.Ticket, error) {
	cutoff := now.Add(-7 * 24 * time.Hour)
	var rows []models.TicketModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND resolved_at < ?", string(support.TicketStatusResolved), cutoff).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	tickets := make([]support.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, *rows[i].ToDomain())
	}
	return tickets, nil
}
