package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormJobRepository implements job.Repository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Enqueue inserts a job. A duplicate idempotency key is swallowed; the
// bool reports whether the job was actually inserted.
func (r *GormJobRepository) Enqueue(ctx context.Context, j *job.Job) (bool, error) {
	var model models.JobModel
	model.FromDomain(j)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ClaimDue atomically claims up to limit queued jobs whose RunAt has
// passed. Row locks with SKIP LOCKED keep concurrent pollers from
// claiming the same job.
func (r *GormJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]job.Job, error) {
	var claimed []job.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		// SKIP LOCKED keeps concurrent pollers off the same rows; sqlite
		// (tests) has no row locks and runs single-writer anyway
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var rows []models.JobModel
		if err := query.
			Where("status = ? AND run_at <= ?", string(job.StatusQueued), now).
			Order("run_at ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		if err := tx.Model(&models.JobModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     string(job.StatusRunning),
				"attempts":   gorm.Expr("attempts + 1"),
				"started_at": now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		claimed = make([]job.Job, 0, len(rows))
		for i := range rows {
			j := rows[i].ToDomain()
			j.Status = job.StatusRunning
			j.Attempts++
			started := now
			j.StartedAt = &started
			claimed = append(claimed, *j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Save persists the outcome of an attempt
func (r *GormJobRepository) Save(ctx context.Context, j *job.Job) error {
	var model models.JobModel
	model.FromDomain(j)
	result := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"status":      model.Status,
			"run_at":      model.RunAt,
			"attempts":    model.Attempts,
			"last_error":  model.LastError,
			"started_at":  model.StartedAt,
			"finished_at": model.FinishedAt,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReclaimStale requeues running jobs whose claim expired. The attempt
// already counted at claim time is kept; the retry schedule continues
// from there.
func (r *GormJobRepository) ReclaimStale(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-job.StaleRunningAfter)
	result := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("status = ? AND started_at < ?", string(job.StatusRunning), cutoff).
		Updates(map[string]any{
			"status":     string(job.StatusQueued),
			"run_at":     now,
			"started_at": nil,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindByID finds a job by ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	var model models.JobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns jobs filtered by status and type, paginated
func (r *GormJobRepository) FindAll(ctx context.Context, status *job.Status, jobType *string, filter shared.Filter) ([]job.Job, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.JobModel{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	if jobType != nil {
		query = query.Where("type = ?", *jobType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.JobModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").
		Limit(filter.PageSize).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]job.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, *rows[i].ToDomain())
	}
	return jobs, total, nil
}

// CountByStatus returns job counts grouped by status
func (r *GormJobRepository) CountByStatus(ctx context.Context) (map[job.Status]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[job.Status]int64, len(rows))
	for _, r := range rows {
		counts[job.Status(r.Status)] = r.Count
	}
	return counts, nil
}
