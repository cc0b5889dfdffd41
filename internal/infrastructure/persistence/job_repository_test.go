package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/noro/control-plane/internal/domain/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormJobRepository_Enqueue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()

	t.Run("inserts a job", func(t *testing.T) {
		j, err := job.NewJob("support_notify_email", map[string]string{"ticket_id": "t1"})
		require.NoError(t, err)
		inserted, err := repo.Enqueue(ctx, j)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("deduplicates on idempotency key", func(t *testing.T) {
		first, err := job.NewJob("sla_check", nil)
		require.NoError(t, err)
		first.WithIdempotencyKey("sla:2026-08-29T10")
		inserted, err := repo.Enqueue(ctx, first)
		require.NoError(t, err)
		assert.True(t, inserted)

		second, err := job.NewJob("sla_check", nil)
		require.NoError(t, err)
		second.WithIdempotencyKey("sla:2026-08-29T10")
		inserted, err = repo.Enqueue(ctx, second)
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("jobs without keys never collide", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			j, err := job.NewJob("support_notify_email", nil)
			require.NoError(t, err)
			inserted, err := repo.Enqueue(ctx, j)
			require.NoError(t, err)
			assert.True(t, inserted)
		}
	})
}

func TestGormJobRepository_ClaimDue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	due, err := job.NewScheduledJob("due_now", nil, now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, due)
	require.NoError(t, err)

	future, err := job.NewScheduledJob("due_later", nil, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, future)
	require.NoError(t, err)

	claimed, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "due_now", claimed[0].Type)
	assert.Equal(t, job.StatusRunning, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)

	// Claimed jobs are not claimable again
	again, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestGormJobRepository_SaveOutcomes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	j, err := job.NewScheduledJob("flaky", nil, now.Add(-time.Second))
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, j)
	require.NoError(t, err)

	claimed, err := repo.ClaimDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	failed := claimed[0]
	failed.Fail(now, errors.New("smtp timeout"))
	require.NoError(t, repo.Save(ctx, &failed))

	stored, err := repo.FindByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, stored.Status)
	assert.Equal(t, "smtp timeout", stored.LastError)
	assert.WithinDuration(t, now.Add(30*time.Second), stored.RunAt, time.Second)

	// Requeued job only becomes due after the backoff delay
	none, err := repo.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	later, err := repo.ClaimDue(ctx, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, 2, later[0].Attempts)
}

func TestGormJobRepository_ReclaimStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	j, err := job.NewScheduledJob("stuck", nil, now.Add(-15*time.Minute))
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, j)
	require.NoError(t, err)

	// Claimed 10 minutes ago, well past the stale cutoff
	claimed, err := repo.ClaimDue(ctx, now.Add(-10*time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	reclaimed, err := repo.ReclaimStale(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	stored, err := repo.FindByID(ctx, claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, stored.Status)
	// Attempt counted at claim time is preserved
	assert.Equal(t, 1, stored.Attempts)

	// Fresh running jobs are untouched
	fresh, err := job.NewJob("busy", nil)
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, fresh)
	require.NoError(t, err)
	_, err = repo.ClaimDue(ctx, now, 1)
	require.NoError(t, err)

	reclaimed, err = repo.ReclaimStale(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reclaimed)
}

func TestGormJobRepository_CountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		j, err := job.NewScheduledJob("queued_job", nil, now.Add(-time.Second))
		require.NoError(t, err)
		_, err = repo.Enqueue(ctx, j)
		require.NoError(t, err)
	}
	claimed, err := repo.ClaimDue(ctx, now, 1)
	require.NoError(t, err)
	done := claimed[0]
	done.Complete(now)
	require.NoError(t, repo.Save(ctx, &done))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[job.StatusQueued])
	assert.Equal(t, int64(1), counts[job.StatusCompleted])
}
