package job

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// Repository is the durable queue store backing the worker pool
type Repository interface {
	// Enqueue inserts a job. A duplicate idempotency key is swallowed;
	// the bool reports whether the job was actually inserted.
	Enqueue(ctx context.Context, j *Job) (bool, error)

	// ClaimDue atomically claims up to limit queued jobs whose RunAt has
	// passed, marking them running and counting the attempt. Two pollers
	// never claim the same job.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error)

	// Save persists the outcome of an attempt (completed, requeued, dead)
	Save(ctx context.Context, j *Job) error

	// ReclaimStale requeues running jobs whose claim expired, without
	// consuming an extra attempt. Returns the number reclaimed.
	ReclaimStale(ctx context.Context, now time.Time) (int64, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	FindAll(ctx context.Context, status *Status, jobType *string, filter shared.Filter) ([]Job, int64, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
