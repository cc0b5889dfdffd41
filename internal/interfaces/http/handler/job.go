package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/interfaces/http/dto"
)

// JobHandler exposes read-only queue inspection endpoints for operators
type JobHandler struct {
	BaseHandler
	jobRepo job.Repository
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobRepo job.Repository) *JobHandler {
	return &JobHandler{jobRepo: jobRepo}
}

// RegisterRoutes registers job routes
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	{
		jobs.GET("", h.List)
		jobs.GET("/stats", h.Stats)
		jobs.GET("/:id", h.Get)
	}
}

// JobResponse is the wire representation of a queued job
type JobResponse struct {
	ID             uuid.UUID       `json:"id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Status         string          `json:"status"`
	RunAt          time.Time       `json:"run_at"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	LastError      string          `json:"last_error,omitempty"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:             j.ID,
		Type:           j.Type,
		Payload:        j.Payload,
		IdempotencyKey: j.IdempotencyKey,
		Status:         string(j.Status),
		RunAt:          j.RunAt,
		Attempts:       j.Attempts,
		MaxAttempts:    j.MaxAttempts,
		LastError:      j.LastError,
		StartedAt:      j.StartedAt,
		FinishedAt:     j.FinishedAt,
		CreatedAt:      j.CreatedAt,
	}
}

// List returns jobs, optionally filtered by status and type
func (h *JobHandler) List(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	listReq.Normalize()

	var status *job.Status
	if s := c.Query("status"); s != "" {
		st := job.Status(s)
		status = &st
	}
	var jobType *string
	if t := c.Query("type"); t != "" {
		jobType = &t
	}

	filter := shared.Filter{Page: listReq.Page, PageSize: listReq.PageSize}.Normalize()
	jobs, total, err := h.jobRepo.FindAll(c.Request.Context(), status, jobType, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]JobResponse, len(jobs))
	for i := range jobs {
		items[i] = toJobResponse(&jobs[i])
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get returns a job by id
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	j, err := h.jobRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toJobResponse(j))
}

// Stats returns the queue depth per status
func (h *JobHandler) Stats(c *gin.Context) {
	counts, err := h.jobRepo.CountByStatus(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	stats := make(map[string]int64, len(counts))
	for status, count := range counts {
		stats[string(status)] = count
	}
	h.Success(c, stats)
}
