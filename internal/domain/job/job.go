package job

import (
	"encoding/json"
	"time"

	"github.com/noro/control-plane/internal/domain/shared"
)

// Status represents the lifecycle state of a queued job
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusDead      Status = "dead"
)

const (
	// DefaultMaxAttempts is how many times a job runs before dead-lettering
	DefaultMaxAttempts = 5
	// backoffBase is the delay after the first failure; it doubles per attempt
	backoffBase = 30 * time.Second
	// StaleRunningAfter is how long a running job can hold its claim before
	// a worker restart is assumed and the job is reclaimed
	StaleRunningAfter = 5 * time.Minute
)

// Job is a unit of deferred work delivered at-least-once. Handlers must be
// idempotent; the same payload may be processed more than once.
type Job struct {
	shared.BaseEntity
	Type           string
	Payload        json.RawMessage
	IdempotencyKey string
	Status         Status
	RunAt          time.Time
	Attempts       int
	MaxAttempts    int
	LastError      string
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// NewJob enqueues a job for immediate execution
func NewJob(jobType string, payload any) (*Job, error) {
	return NewScheduledJob(jobType, payload, time.Now())
}

// NewScheduledJob enqueues a job to run at or after runAt
func NewScheduledJob(jobType string, payload any, runAt time.Time) (*Job, error) {
	if jobType == "" {
		return nil, shared.NewDomainError("INVALID_JOB", "Job type is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_JOB", "Job payload is not serializable: "+err.Error())
	}
	return &Job{
		BaseEntity:  shared.NewBaseEntity(),
		Type:        jobType,
		Payload:     raw,
		Status:      StatusQueued,
		RunAt:       runAt,
		MaxAttempts: DefaultMaxAttempts,
	}, nil
}

// WithIdempotencyKey sets a dedupe key; enqueueing a second job with the
// same key is a no-op at the store level
func (j *Job) WithIdempotencyKey(key string) *Job {
	j.IdempotencyKey = key
	return j
}

// Start marks the job as claimed by a worker and counts the attempt
func (j *Job) Start(now time.Time) {
	j.Status = StatusRunning
	j.Attempts++
	j.StartedAt = &now
	j.Touch()
}

// Complete marks the job as successfully finished
func (j *Job) Complete(now time.Time) {
	j.Status = StatusCompleted
	j.FinishedAt = &now
	j.Touch()
}

// Fail records a handler error. The job is requeued with exponential
// backoff until attempts are exhausted, then dead-lettered.
func (j *Job) Fail(now time.Time, handlerErr error) {
	j.LastError = handlerErr.Error()
	if j.Attempts >= j.MaxAttempts {
		j.Status = StatusDead
		j.FinishedAt = &now
	} else {
		j.Status = StatusQueued
		j.RunAt = now.Add(BackoffDelay(j.Attempts))
	}
	j.Touch()
}

// IsStale reports whether a running job's claim has expired
func (j *Job) IsStale(now time.Time) bool {
	if j.Status != StatusRunning || j.StartedAt == nil {
		return false
	}
	return now.Sub(*j.StartedAt) > StaleRunningAfter
}

// BackoffDelay returns the requeue delay after the given attempt count:
// 30s, 1m, 2m, 4m, ...
func BackoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return backoffBase * (1 << (attempts - 1))
}
