package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockJobRepository is a mock implementation of job.Repository
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Enqueue(ctx context.Context, j *job.Job) (bool, error) {
	args := m.Called(ctx, j)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]job.Job, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]job.Job), args.Error(1)
}

func (m *MockJobRepository) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *MockJobRepository) ReclaimStale(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *MockJobRepository) FindAll(ctx context.Context, status *job.Status, jobType *string, filter shared.Filter) ([]job.Job, int64, error) {
	args := m.Called(ctx, status, jobType, filter)
	return args.Get(0).([]job.Job), args.Get(1).(int64), args.Error(2)
}

func (m *MockJobRepository) CountByStatus(ctx context.Context) (map[job.Status]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[job.Status]int64), args.Error(1)
}

// capturingNotifier records sent emails instead of delivering them
type capturingNotifier struct {
	mu   sync.Mutex
	sent []notifier.Email
}

func (n *capturingNotifier) SendEmail(ctx context.Context, email notifier.Email) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	return nil
}

func (n *capturingNotifier) emails() []notifier.Email {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifier.Email(nil), n.sent...)
}

func overdueInvoice(t *testing.T, providerID string, dueAgo time.Duration) billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(providerID, nil, 5000, "BRL", billing.InvoiceStatusOpen)
	require.NoError(t, err)
	due := time.Now().Add(-dueAgo)
	inv.DueAt = &due
	return *inv
}

func newBillingHandlers(invoices *MockInvoiceRepository, jobs *MockJobRepository, n *capturingNotifier) *BillingJobHandlers {
	return NewBillingJobHandlers(invoices, jobs, n, "billing@example.com", time.Hour, zap.NewNop())
}

func TestHandleOverdueCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("overdue invoices produce a digest and the next sweep", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		jobs := new(MockJobRepository)
		n := &capturingNotifier{}

		invoices.On("FindOverdue", ctx, mock.Anything).Return([]billing.Invoice{
			overdueInvoice(t, "in_800", 72*time.Hour),
			overdueInvoice(t, "in_801", 24*time.Hour),
		}, nil)
		var next *job.Job
		jobs.On("Enqueue", ctx, mock.Anything).Run(func(args mock.Arguments) {
			next = args.Get(1).(*job.Job)
		}).Return(true, nil)

		h := newBillingHandlers(invoices, jobs, n)
		j := mustSweepJob(t)

		require.NoError(t, h.HandleOverdueCheck(ctx, j))

		sent := n.emails()
		require.Len(t, sent, 1)
		assert.Equal(t, "billing@example.com", sent[0].To)
		assert.Contains(t, sent[0].Subject, "2 overdue invoices")
		assert.Contains(t, sent[0].Body, "in_800")
		assert.Contains(t, sent[0].Body, "in_801")

		require.NotNil(t, next)
		assert.Equal(t, JobTypeOverdueCheck, next.Type)
		assert.NotEmpty(t, next.IdempotencyKey)
		assert.WithinDuration(t, time.Now().Add(time.Hour), next.RunAt, time.Minute)
	})

	t.Run("nothing overdue still reschedules, no email", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		jobs := new(MockJobRepository)
		n := &capturingNotifier{}

		invoices.On("FindOverdue", ctx, mock.Anything).Return([]billing.Invoice{}, nil)
		jobs.On("Enqueue", ctx, mock.Anything).Return(true, nil)

		h := newBillingHandlers(invoices, jobs, n)

		require.NoError(t, h.HandleOverdueCheck(ctx, mustSweepJob(t)))

		assert.Empty(t, n.emails())
		jobs.AssertCalled(t, "Enqueue", ctx, mock.Anything)
	})

	t.Run("repository failure is retried without rescheduling", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		jobs := new(MockJobRepository)

		invoices.On("FindOverdue", ctx, mock.Anything).Return(nil, assert.AnError)

		h := newBillingHandlers(invoices, jobs, &capturingNotifier{})

		assert.Error(t, h.HandleOverdueCheck(ctx, mustSweepJob(t)))
		jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})
}

func TestScheduleOverdueCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("same bucket carries the same idempotency key", func(t *testing.T) {
		jobs := new(MockJobRepository)
		var keys []string
		jobs.On("Enqueue", ctx, mock.Anything).Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(1).(*job.Job).IdempotencyKey)
		}).Return(true, nil).Once()
		// The store swallows the duplicate key on the second insert
		jobs.On("Enqueue", ctx, mock.Anything).Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(1).(*job.Job).IdempotencyKey)
		}).Return(false, nil).Once()

		h := newBillingHandlers(new(MockInvoiceRepository), jobs, &capturingNotifier{})

		at := time.Now().Truncate(time.Hour).Add(10 * time.Minute)
		require.NoError(t, h.ScheduleOverdueCheck(ctx, at))
		require.NoError(t, h.ScheduleOverdueCheck(ctx, at.Add(time.Minute)))

		require.Len(t, keys, 2)
		assert.Equal(t, keys[0], keys[1])
	})

	t.Run("later bucket gets a fresh key", func(t *testing.T) {
		jobs := new(MockJobRepository)
		var keys []string
		jobs.On("Enqueue", ctx, mock.Anything).Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(1).(*job.Job).IdempotencyKey)
		}).Return(true, nil)

		h := newBillingHandlers(new(MockInvoiceRepository), jobs, &capturingNotifier{})

		at := time.Now().Truncate(time.Hour).Add(10 * time.Minute)
		require.NoError(t, h.ScheduleOverdueCheck(ctx, at))
		require.NoError(t, h.ScheduleOverdueCheck(ctx, at.Add(time.Hour)))

		require.Len(t, keys, 2)
		assert.NotEqual(t, keys[0], keys[1])
	})
}

func mustSweepJob(t *testing.T) *job.Job {
	t.Helper()
	j, err := job.NewJob(JobTypeOverdueCheck, nil)
	require.NoError(t, err)
	return j
}
