package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	tenantapp "github.com/noro/control-plane/internal/application/tenant"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/tenant"
	"github.com/noro/control-plane/internal/interfaces/http/dto"
	"github.com/noro/control-plane/internal/interfaces/http/middleware"
)

// TenantHandler handles tenant provisioning and membership endpoints
type TenantHandler struct {
	BaseHandler
	provisioningService *tenantapp.ProvisioningService
	membershipService   *tenantapp.MembershipService
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(provisioningService *tenantapp.ProvisioningService, membershipService *tenantapp.MembershipService) *TenantHandler {
	return &TenantHandler{
		provisioningService: provisioningService,
		membershipService:   membershipService,
	}
}

// RegisterRoutes registers tenant routes
func (h *TenantHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tenants := rg.Group("/tenants")
	{
		tenants.POST("", h.Provision)
		tenants.GET("", h.List)
		tenants.GET("/:id", h.Get)
		tenants.POST("/:id/suspend", h.Suspend)
		tenants.POST("/:id/unsuspend", h.Unsuspend)
		tenants.POST("/:id/cancel", h.Cancel)
		tenants.PUT("/:id/settings", h.UpdateSettings)
		tenants.PUT("/:id/billing-email", h.UpdateBillingEmail)

		tenants.GET("/:id/members", h.ListMembers)
		tenants.POST("/:id/members", h.AddMember)
		tenants.DELETE("/:id/members/:userId", h.RemoveMember)
	}
	rg.GET("/users/:userId/memberships", h.ListUserMemberships)
}

// TenantResponse is the wire representation of a tenant
type TenantResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	SchemaName   string    `json:"schema_name"`
	Plan         string    `json:"plan"`
	Status       string    `json:"status"`
	StatusReason string    `json:"status_reason,omitempty"`
	BillingEmail string    `json:"billing_email,omitempty"`
	Settings     string    `json:"settings,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		ID:           t.ID,
		Name:         t.Name,
		Slug:         t.Slug,
		SchemaName:   t.SchemaName,
		Plan:         string(t.Plan),
		Status:       string(t.Status),
		StatusReason: t.StatusReason,
		BillingEmail: t.BillingEmail,
		Settings:     t.Settings,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// Provision creates a tenant and its schema
func (h *TenantHandler) Provision(c *gin.Context) {
	var req tenantapp.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	created, err := h.provisioningService.Provision(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toTenantResponse(created))
}

// Get returns a tenant by id
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	t, err := h.provisioningService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTenantResponse(t))
}

// List returns tenants, optionally filtered by status
func (h *TenantHandler) List(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	listReq.Normalize()

	var status *tenant.Status
	if s := c.Query("status"); s != "" {
		st := tenant.Status(s)
		status = &st
	}

	filter := shared.Filter{Page: listReq.Page, PageSize: listReq.PageSize}.Normalize()
	tenants, total, err := h.provisioningService.List(c.Request.Context(), status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TenantResponse, len(tenants))
	for i := range tenants {
		items[i] = toTenantResponse(&tenants[i])
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// StatusReasonRequest carries the operator's reason for a status change
type StatusReasonRequest struct {
	Reason string `json:"reason"`
}

// Suspend suspends an active tenant
func (h *TenantHandler) Suspend(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req StatusReasonRequest
	_ = c.ShouldBindJSON(&req) // reason body is optional

	t, err := h.provisioningService.Suspend(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTenantResponse(t))
}

// Unsuspend reactivates a suspended tenant
func (h *TenantHandler) Unsuspend(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	t, err := h.provisioningService.Unsuspend(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTenantResponse(t))
}

// Cancel cancels a tenant. Cancellation is terminal.
func (h *TenantHandler) Cancel(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req StatusReasonRequest
	_ = c.ShouldBindJSON(&req) // reason body is optional

	t, err := h.provisioningService.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTenantResponse(t))
}

// UpdateSettingsRequest carries the tenant settings document
type UpdateSettingsRequest struct {
	Settings string `json:"settings" binding:"required"`
}

// UpdateSettings replaces the tenant settings document
func (h *TenantHandler) UpdateSettings(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	t, err := h.provisioningService.UpdateSettings(c.Request.Context(), id, req.Settings)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTenantResponse(t))
}

// UpdateBillingEmailRequest carries the new billing contact
type UpdateBillingEmailRequest struct {
	BillingEmail string `json:"billing_email" binding:"required,email"`
}

// UpdateBillingEmail changes the tenant billing contact
func (h *TenantHandler) UpdateBillingEmail(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateBillingEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	t, err := h.provisioningService.UpdateBillingEmail(c.Request.Context(), id, req.BillingEmail)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTenantResponse(t))
}

// MembershipResponse is the wire representation of a membership
type MembershipResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMembershipResponse(m *tenant.Membership) MembershipResponse {
	return MembershipResponse{
		UserID:    m.UserID,
		TenantID:  m.TenantID,
		Role:      string(m.Role),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ListMembers returns all memberships of a tenant
func (h *TenantHandler) ListMembers(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	members, err := h.membershipService.ListForTenant(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]MembershipResponse, len(members))
	for i := range members {
		items[i] = toMembershipResponse(&members[i])
	}
	h.Success(c, items)
}

// AddMember adds a user to a tenant or updates their role
func (h *TenantHandler) AddMember(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req tenantapp.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	m, err := h.membershipService.AddMember(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toMembershipResponse(m))
}

// RemoveMember removes a user from a tenant
func (h *TenantHandler) RemoveMember(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.parseUUIDParam(c, "userId")
	if !ok {
		return
	}

	if err := h.membershipService.RemoveMember(c.Request.Context(), id, userID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ListUserMemberships returns all tenants a user belongs to
func (h *TenantHandler) ListUserMemberships(c *gin.Context) {
	userID, ok := h.parseUUIDParam(c, "userId")
	if !ok {
		return
	}

	members, err := h.membershipService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]MembershipResponse, len(members))
	for i := range members {
		items[i] = toMembershipResponse(&members[i])
	}
	h.Success(c, items)
}
