package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/infrastructure/notifier"
	"github.com/noro/control-plane/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// JobTypeOverdueCheck sweeps open invoices past their due date
const JobTypeOverdueCheck = "billing_overdue_check"

// BillingJobHandlers runs the recurring billing sweeps on the job queue.
// The overdue check reschedules itself: each run enqueues the next one,
// keyed per time bucket so a crash between runs cannot double-schedule.
type BillingJobHandlers struct {
	invoiceRepo billing.InvoiceRepository
	jobRepo     job.Repository
	notifier    notifier.Notifier
	alertsEmail string
	checkPeriod time.Duration
	logger      *zap.Logger
}

// NewBillingJobHandlers creates the handler set. alertsEmail receives the
// overdue digest; checkPeriod is the sweep interval.
func NewBillingJobHandlers(
	invoiceRepo billing.InvoiceRepository,
	jobRepo job.Repository,
	n notifier.Notifier,
	alertsEmail string,
	checkPeriod time.Duration,
	logger *zap.Logger,
) *BillingJobHandlers {
	return &BillingJobHandlers{
		invoiceRepo: invoiceRepo,
		jobRepo:     jobRepo,
		notifier:    n,
		alertsEmail: alertsEmail,
		checkPeriod: checkPeriod,
		logger:      logger.Named("billing-jobs"),
	}
}

// Register binds the handlers to their job types on the pool
func (h *BillingJobHandlers) Register(pool *queue.WorkerPool) error {
	return pool.Register(JobTypeOverdueCheck, h.HandleOverdueCheck)
}

// ScheduleOverdueCheck enqueues an overdue sweep for the given instant.
// The idempotency key is bucketed on the sweep period, so enqueueing the
// same bucket twice (startup plus a self-reschedule, or two instances
// racing) inserts only one job.
func (h *BillingJobHandlers) ScheduleOverdueCheck(ctx context.Context, runAt time.Time) error {
	j, err := job.NewScheduledJob(JobTypeOverdueCheck, nil, runAt)
	if err != nil {
		return err
	}
	bucket := runAt.Truncate(h.checkPeriod).Unix()
	j.WithIdempotencyKey(fmt.Sprintf("%s:%d", JobTypeOverdueCheck, bucket))

	inserted, err := h.jobRepo.Enqueue(ctx, j)
	if err != nil {
		return err
	}
	if inserted {
		h.logger.Info("overdue invoice sweep scheduled", zap.Time("run_at", runAt))
	}
	return nil
}

// HandleOverdueCheck finds open invoices past their due date, mails one
// digest to the billing alerts address, and schedules the next sweep.
func (h *BillingJobHandlers) HandleOverdueCheck(ctx context.Context, j *job.Job) error {
	now := time.Now()

	overdue, err := h.invoiceRepo.FindOverdue(ctx, now)
	if err != nil {
		return err
	}

	if len(overdue) > 0 {
		h.logger.Warn("open invoices past due date", zap.Int("count", len(overdue)))
		if err := h.notifier.SendEmail(ctx, notifier.Email{
			To:      h.alertsEmail,
			Subject: fmt.Sprintf("%d overdue invoices", len(overdue)),
			Body:    overdueDigest(overdue, now),
		}); err != nil {
			return err
		}
	}

	// The next sweep lands in a fresh bucket; a failed run is retried by
	// the queue and reschedules on the attempt that finally succeeds.
	return h.ScheduleOverdueCheck(ctx, now.Add(h.checkPeriod))
}

func overdueDigest(invoices []billing.Invoice, now time.Time) string {
	var b strings.Builder
	for i := range invoices {
		inv := &invoices[i]
		days := int(now.Sub(*inv.DueAt).Hours() / 24)
		fmt.Fprintf(&b, "%s  %d %s  %d days overdue", inv.ProviderInvoiceID, inv.AmountCents, inv.Currency, days)
		if inv.TenantID != nil {
			fmt.Fprintf(&b, "  tenant %s", inv.TenantID)
		}
		b.WriteString("\n")
	}
	return b.String()
}
