package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	supportapp "github.com/noro/control-plane/internal/application/support"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/support"
	"github.com/noro/control-plane/internal/interfaces/http/dto"
)

// TicketHandler handles support ticket endpoints
type TicketHandler struct {
	BaseHandler
	ticketService *supportapp.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService *supportapp.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// RegisterRoutes registers ticket routes
func (h *TicketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tickets := rg.Group("/tickets")
	{
		tickets.POST("", h.Create)
		tickets.GET("", h.List)
		tickets.GET("/:id", h.Get)
		tickets.PATCH("/:id", h.Update)
		tickets.POST("/:id/transition", h.Transition)
		tickets.POST("/:id/assign", h.Assign)
		tickets.GET("/:id/messages", h.ListMessages)
		tickets.POST("/:id/messages", h.AddMessage)
	}
}

// TicketResponse is the wire representation of a ticket
type TicketResponse struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	Subject        string     `json:"subject"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	RequesterEmail string     `json:"requester_email"`
	AssigneeID     *uuid.UUID `json:"assignee_id,omitempty"`
	SLADeadline    time.Time  `json:"sla_deadline"`
	FirstReplyAt   *time.Time `json:"first_reply_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toTicketResponse(t *support.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		TenantID:       t.TenantID,
		Subject:        t.Subject,
		Status:         string(t.Status),
		Priority:       string(t.Priority),
		RequesterEmail: t.RequesterEmail,
		AssigneeID:     t.AssigneeID,
		SLADeadline:    t.SLADeadline(),
		FirstReplyAt:   t.FirstReplyAt,
		ResolvedAt:     t.ResolvedAt,
		ClosedAt:       t.ClosedAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// Create opens a new ticket
func (h *TicketHandler) Create(c *gin.Context) {
	var req supportapp.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toTicketResponse(ticket))
}

// Get returns a ticket by id
func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTicketResponse(ticket))
}

// List returns tickets, optionally filtered by tenant and status
func (h *TicketHandler) List(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	listReq.Normalize()

	var tenantID *uuid.UUID
	if s := c.Query("tenant_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid tenant_id parameter")
			return
		}
		tenantID = &id
	}
	var status *support.TicketStatus
	if s := c.Query("status"); s != "" {
		st := support.TicketStatus(s)
		status = &st
	}

	filter := shared.Filter{Page: listReq.Page, PageSize: listReq.PageSize}.Normalize()
	tickets, total, err := h.ticketService.List(c.Request.Context(), tenantID, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TicketResponse, len(tickets))
	for i := range tickets {
		items[i] = toTicketResponse(&tickets[i])
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Update applies a partial update: any of status, assigned_to, and
// priority. A patch with none of them is rejected.
func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req supportapp.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}
	if req.IsEmpty() {
		h.BadRequest(c, "Update carries no changes")
		return
	}

	ticket, err := h.ticketService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTicketResponse(ticket))
}

// TransitionRequest names the target status
type TransitionRequest struct {
	Status support.TicketStatus `json:"status" binding:"required"`
}

// Transition moves a ticket through its state machine
func (h *TicketHandler) Transition(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTicketResponse(ticket))
}

// AssignRequest names the staff member taking the ticket
type AssignRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// Assign sets the staff member working a ticket
func (h *TicketHandler) Assign(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.Assign(c.Request.Context(), id, req.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTicketResponse(ticket))
}

// MessageResponse is the wire representation of a ticket message
type MessageResponse struct {
	ID         uuid.UUID  `json:"id"`
	TicketID   uuid.UUID  `json:"ticket_id"`
	AuthorKind string     `json:"author_kind"`
	AuthorID   *uuid.UUID `json:"author_id,omitempty"`
	Body       string     `json:"body"`
	Internal   bool       `json:"internal"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toMessageResponse(m *support.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		AuthorKind: string(m.AuthorKind),
		AuthorID:   m.AuthorID,
		Body:       m.Body,
		Internal:   m.Internal,
		CreatedAt:  m.CreatedAt,
	}
}

// AddMessage appends a message to a ticket's thread
func (h *TicketHandler) AddMessage(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req supportapp.AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	msg, err := h.ticketService.AddMessage(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toMessageResponse(msg))
}

// ListMessages returns the full thread of a ticket
func (h *TicketHandler) ListMessages(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	messages, err := h.ticketService.ListMessages(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]MessageResponse, len(messages))
	for i := range messages {
		items[i] = toMessageResponse(&messages[i])
	}
	h.Success(c, items)
}
