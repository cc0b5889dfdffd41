package models

import (
	"time"

	"github.com/noro/control-plane/internal/domain/job"
)

// JobModel is the persistence model for queued jobs
type JobModel struct {
	BaseModel
	Type           string    `gorm:"size:100;not null;index"`
	Payload        string    `gorm:"type:jsonb;not null;default:'{}'"`
	IdempotencyKey *string   `gorm:"size:255;uniqueIndex"`
	Status         string    `gorm:"size:20;not null;index:idx_jobs_claim"`
	RunAt          time.Time `gorm:"not null;index:idx_jobs_claim"`
	Attempts       int       `gorm:"not null;default:0"`
	MaxAttempts    int       `gorm:"not null"`
	LastError      string    `gorm:"type:text"`
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// TableName returns the table name
func (JobModel) TableName() string {
	return "jobs"
}

// ToDomain converts the model to a domain job
func (m *JobModel) ToDomain() *job.Job {
	j := &job.Job{
		BaseEntity:  m.BaseModel.ToDomain(),
		Type:        m.Type,
		Payload:     []byte(m.Payload),
		Status:      job.Status(m.Status),
		RunAt:       m.RunAt,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		LastError:   m.LastError,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
	}
	if m.IdempotencyKey != nil {
		j.IdempotencyKey = *m.IdempotencyKey
	}
	return j
}

// FromDomain populates the model from a domain job
func (m *JobModel) FromDomain(j *job.Job) {
	m.FromDomainBaseEntity(j.BaseEntity)
	m.Type = j.Type
	m.Payload = string(j.Payload)
	if j.IdempotencyKey != "" {
		key := j.IdempotencyKey
		m.IdempotencyKey = &key
	} else {
		m.IdempotencyKey = nil
	}
	m.Status = string(j.Status)
	m.RunAt = j.RunAt
	m.Attempts = j.Attempts
	m.MaxAttempts = j.MaxAttempts
	m.LastError = j.LastError
	m.StartedAt = j.StartedAt
	m.FinishedAt = j.FinishedAt
}
