package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	supportapp "github.com/noro/control-plane/internal/application/support"
	"github.com/noro/control-plane/internal/domain/job"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/support"
	"github.com/noro/control-plane/internal/domain/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memTicketRepo is an in-memory support.Repository
type memTicketRepo struct {
	mu       sync.Mutex
	tickets  map[uuid.UUID]*support.Ticket
	messages map[uuid.UUID][]support.Message
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{
		tickets:  make(map[uuid.UUID]*support.Ticket),
		messages: make(map[uuid.UUID][]support.Message),
	}
}

func (r *memTicketRepo) Create(ctx context.Context, t *support.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *t
	r.tickets[t.ID] = &clone
	return nil
}

func (r *memTicketRepo) Save(ctx context.Context, t *support.Ticket) error {
	return r.Create(ctx, t)
}

func (r *memTicketRepo) FindByID(ctx context.Context, id uuid.UUID) (*support.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *memTicketRepo) FindAll(ctx context.Context, tenantID *uuid.UUID, status *support.TicketStatus, filter shared.Filter) ([]support.Ticket, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []support.Ticket
	for _, t := range r.tickets {
		if tenantID != nil && t.TenantID != *tenantID {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (r *memTicketRepo) AddMessage(ctx context.Context, msg *support.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.TicketID] = append(r.messages[msg.TicketID], *msg)
	return nil
}

func (r *memTicketRepo) FindMessages(ctx context.Context, ticketID uuid.UUID) ([]support.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]support.Message(nil), r.messages[ticketID]...), nil
}

func (r *memTicketRepo) FindSLACandidates(ctx context.Context, now time.Time) ([]support.Ticket, error) {
	return nil, nil
}

func (r *memTicketRepo) FindAutoCloseCandidates(ctx context.Context, now time.Time) ([]support.Ticket, error) {
	return nil, nil
}

// memJobRepo collects enqueued jobs without running them
type memJobRepo struct {
	mu   sync.Mutex
	jobs []*job.Job
}

func (r *memJobRepo) Enqueue(ctx context.Context, j *job.Job) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
	return true, nil
}

func (r *memJobRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]job.Job, error) {
	return nil, nil
}

func (r *memJobRepo) Save(ctx context.Context, j *job.Job) error { return nil }

func (r *memJobRepo) ReclaimStale(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (r *memJobRepo) FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	return nil, shared.ErrNotFound
}

func (r *memJobRepo) FindAll(ctx context.Context, status *job.Status, jobType *string, filter shared.Filter) ([]job.Job, int64, error) {
	return nil, 0, nil
}

func (r *memJobRepo) CountByStatus(ctx context.Context) (map[job.Status]int64, error) {
	return map[job.Status]int64{}, nil
}

func newTicketTestServer() (*gin.Engine, *memTicketRepo, *memTenantRepo) {
	gin.SetMode(gin.TestMode)

	tickets := newMemTicketRepo()
	tenants := newMemTenantRepo()
	svc := supportapp.NewTicketService(tickets, tenants, &memJobRepo{}, noopPublisher{}, zap.NewNop())

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewTicketHandler(svc).RegisterRoutes(api)
	return engine, tickets, tenants
}

func seedTicket(t *testing.T, tickets *memTicketRepo, tenants *memTenantRepo) *support.Ticket {
	t.Helper()
	tn, err := tenant.NewTenant("Acme", "acme", tenant.DefaultPlan, "")
	require.NoError(t, err)
	require.NoError(t, tn.Activate())
	tn.ClearDomainEvents()
	require.NoError(t, tenants.Create(context.Background(), tn))

	ticket, err := support.NewTicket(tn.ID, "Login broken", "user@example.com", support.PriorityNormal)
	require.NoError(t, err)
	ticket.ClearDomainEvents()
	require.NoError(t, tickets.Create(context.Background(), ticket))
	return ticket
}

func TestTicketHandler_Update(t *testing.T) {
	t.Run("patches status assignee and priority together", func(t *testing.T) {
		engine, tickets, tenants := newTicketTestServer()
		ticket := seedTicket(t, tickets, tenants)
		agent := uuid.New()

		w := doJSON(t, engine, http.MethodPatch, "/api/v1/tickets/"+ticket.ID.String(), gin.H{
			"status":      "in_progress",
			"assigned_to": agent.String(),
			"priority":    "high",
		})

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "in_progress", data["status"])
		assert.Equal(t, "high", data["priority"])
		assert.Equal(t, agent.String(), data["assignee_id"])

		stored, err := tickets.FindByID(context.Background(), ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, support.TicketStatusInProgress, stored.Status)
	})

	t.Run("single-field patch leaves the rest untouched", func(t *testing.T) {
		engine, tickets, tenants := newTicketTestServer()
		ticket := seedTicket(t, tickets, tenants)

		w := doJSON(t, engine, http.MethodPatch, "/api/v1/tickets/"+ticket.ID.String(), gin.H{
			"priority": "urgent",
		})

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "urgent", data["priority"])
		assert.Equal(t, "open", data["status"])
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		engine, tickets, tenants := newTicketTestServer()
		ticket := seedTicket(t, tickets, tenants)

		w := doJSON(t, engine, http.MethodPatch, "/api/v1/tickets/"+ticket.ID.String(), gin.H{})

		assert.Equal(t, http.StatusBadRequest, w.Code)

		stored, err := tickets.FindByID(context.Background(), ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, support.TicketStatusOpen, stored.Status)
	})

	t.Run("invalid transition in a patch is unprocessable", func(t *testing.T) {
		engine, tickets, tenants := newTicketTestServer()
		ticket := seedTicket(t, tickets, tenants)

		w := doJSON(t, engine, http.MethodPatch, "/api/v1/tickets/"+ticket.ID.String(), gin.H{
			"status": "closed",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "INVALID_TRANSITION", errorCode(t, w))
	})

	t.Run("unknown ticket is 404", func(t *testing.T) {
		engine, _, _ := newTicketTestServer()

		w := doJSON(t, engine, http.MethodPatch, "/api/v1/tickets/"+uuid.New().String(), gin.H{
			"priority": "low",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
