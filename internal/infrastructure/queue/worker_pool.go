package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/infrastructure/config"
	"github.com/noro/control-plane/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// HandlerFunc processes one job. The payload is the raw JSON the enqueuer
// supplied. Handlers must be idempotent: delivery is at-least-once.
type HandlerFunc func(ctx context.Context, j *job.Job) error

// WorkerPool polls the jobs table and executes due jobs on a fixed set of
// workers. Claims are row-level (SKIP LOCKED on postgres) so multiple
// instances can poll the same table without double execution.
type WorkerPool struct {
	cfg    config.QueueConfig
	repo   job.Repository
	logger *zap.Logger
	m      *metrics.Metrics

	handlers map[string]HandlerFunc

	jobs      chan job.Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewWorkerPool creates a worker pool. Metrics may be nil.
func NewWorkerPool(cfg config.QueueConfig, repo job.Repository, logger *zap.Logger, m *metrics.Metrics) *WorkerPool {
	return &WorkerPool{
		cfg:      cfg,
		repo:     repo,
		logger:   logger.Named("queue"),
		m:        m,
		handlers: make(map[string]HandlerFunc),
		jobs:     make(chan job.Job, cfg.BatchSize),
	}
}

// Register binds a handler to a job type. Registration happens during
// wiring, before Start; a duplicate type is a programming error.
func (p *WorkerPool) Register(jobType string, handler HandlerFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("cannot register handler for %q: pool already started", jobType)
	}
	if _, exists := p.handlers[jobType]; exists {
		return fmt.Errorf("handler already registered for job type %q", jobType)
	}
	p.handlers[jobType] = handler
	return nil
}

// Start launches the workers, the poll loop, and the reclaim loop
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(2)
	go p.pollLoop(ctx)
	go p.reclaimLoop(ctx)

	p.logger.Info("worker pool started",
		zap.Int("workers", p.cfg.Concurrency),
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Duration("job_timeout", p.cfg.JobTimeout),
	)
	return nil
}

// Stop drains the pool. In-flight jobs finish; claimed-but-unstarted jobs
// stay running in the store and are eventually reclaimed.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
		return ctx.Err()
	}
}

// pollLoop claims due jobs on a fixed interval and feeds the workers
func (p *WorkerPool) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *WorkerPool) poll(ctx context.Context) {
	claimed, err := p.repo.ClaimDue(ctx, time.Now(), p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("failed to claim due jobs", zap.Error(err))
		return
	}

	for _, j := range claimed {
		select {
		case p.jobs <- j:
		case <-ctx.Done():
			return
		}
	}

	if p.m != nil {
		if counts, err := p.repo.CountByStatus(ctx); err == nil {
			for _, status := range []job.Status{job.StatusQueued, job.StatusRunning, job.StatusCompleted, job.StatusDead} {
				p.m.QueueDepth.WithLabelValues(string(status)).Set(float64(counts[status]))
			}
		}
	}
}

// reclaimLoop returns jobs stuck in running back to the queue. A job goes
// stale when the worker that claimed it died before saving an outcome.
func (p *WorkerPool) reclaimLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.ReclaimPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := p.repo.ReclaimStale(ctx, time.Now())
			if err != nil {
				p.logger.Error("failed to reclaim stale jobs", zap.Error(err))
				continue
			}
			if reclaimed > 0 {
				p.logger.Warn("reclaimed stale jobs", zap.Int64("count", reclaimed))
				if p.m != nil {
					p.m.JobsReclaimedTotal.Add(float64(reclaimed))
				}
			}
		}
	}
}

func (p *WorkerPool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.process(ctx, &j, workerID)
		}
	}
}

// process runs one claimed job and persists the outcome
func (p *WorkerPool) process(ctx context.Context, j *job.Job, workerID int) {
	logger := p.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", j.ID.String()),
		zap.String("job_type", j.Type),
		zap.Int("attempt", j.Attempts),
	)

	started := time.Now()
	err := p.execute(ctx, j)
	elapsed := time.Since(started)

	if p.m != nil {
		p.m.JobDuration.WithLabelValues(j.Type).Observe(elapsed.Seconds())
	}

	now := time.Now()
	if err != nil {
		j.Fail(now, err)
		outcome := "requeued"
		if j.Status == job.StatusDead {
			outcome = "dead"
			logger.Error("job dead-lettered", zap.Error(err), zap.Int("max_attempts", j.MaxAttempts))
		} else {
			logger.Warn("job failed, requeued", zap.Error(err), zap.Time("run_at", j.RunAt))
		}
		if p.m != nil {
			p.m.JobsTotal.WithLabelValues(j.Type, outcome).Inc()
		}
	} else {
		j.Complete(now)
		logger.Info("job completed", zap.Duration("elapsed", elapsed))
		if p.m != nil {
			p.m.JobsTotal.WithLabelValues(j.Type, "completed").Inc()
		}
	}

	// Outcomes are saved on a detached context so a shutdown that cancels
	// the worker context does not lose the result of a finished job.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if saveErr := p.repo.Save(saveCtx, j); saveErr != nil {
		// The claim stays in running and the reclaim loop retries it later
		logger.Error("failed to save job outcome", zap.Error(saveErr))
	}
}

// execute runs the handler with a per-job timeout, converting panics and
// missing handlers into ordinary job failures.
func (p *WorkerPool) execute(ctx context.Context, j *job.Job) (err error) {
	p.mu.Lock()
	handler, ok := p.handlers[j.Type]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler registered for job type %q", j.Type)
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()

	return handler(jobCtx, j)
}
