package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	billingapp "github.com/noro/control-plane/internal/application/billing"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/interfaces/http/dto"
)

// BillingHandler handles invoice and ledger read endpoints
type BillingHandler struct {
	BaseHandler
	webhookService *billingapp.WebhookService
	ledgerService  *billingapp.LedgerService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(webhookService *billingapp.WebhookService, ledgerService *billingapp.LedgerService) *BillingHandler {
	return &BillingHandler{
		webhookService: webhookService,
		ledgerService:  ledgerService,
	}
}

// RegisterRoutes registers billing routes
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	grp := rg.Group("/billing")
	{
		grp.GET("/invoices", h.ListInvoices)
		grp.GET("/ledger/trial-balance", h.TrialBalance)
		grp.GET("/ledger/entries", h.LedgerEntries)
	}
}

// InvoiceResponse is the wire representation of a mirrored invoice
type InvoiceResponse struct {
	ID                uuid.UUID  `json:"id"`
	TenantID          *uuid.UUID `json:"tenant_id,omitempty"`
	ProviderInvoiceID string     `json:"provider_invoice_id"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                inv.ID,
		TenantID:          inv.TenantID,
		ProviderInvoiceID: inv.ProviderInvoiceID,
		AmountCents:       inv.AmountCents,
		Currency:          inv.Currency,
		Status:            string(inv.Status),
		PaidAt:            inv.PaidAt,
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}

// ListInvoices returns mirrored invoices, optionally per tenant
func (h *BillingHandler) ListInvoices(c *gin.Context) {
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

	filter := shared.Filter{Page: listReq.Page, PageSize: listReq.PageSize}.Normalize()
	invoices, total, err := h.webhookService.ListInvoices(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		items[i] = toInvoiceResponse(&invoices[i])
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// TrialBalanceResponse sums every ledger account. A non-zero total means
// the books are out of balance.
type TrialBalanceResponse struct {
	Accounts []AccountBalanceResponse `json:"accounts"`
	Total    decimal.Decimal          `json:"total"`
	Balanced bool                     `json:"balanced"`
}

// AccountBalanceResponse is one account's net position
type AccountBalanceResponse struct {
	Code    string          `json:"code"`
	Balance decimal.Decimal `json:"balance"`
}

// TrialBalance returns the net position of every ledger account
func (h *BillingHandler) TrialBalance(c *gin.Context) {
	result, err := h.ledgerService.TrialBalance(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	accounts := make([]AccountBalanceResponse, len(result.Accounts))
	for i, a := range result.Accounts {
		accounts[i] = AccountBalanceResponse{Code: a.Code, Balance: a.Balance}
	}
	h.Success(c, TrialBalanceResponse{
		Accounts: accounts,
		Total:    result.Total,
		Balanced: result.Balanced,
	})
}

// LedgerEntryResponse is the wire representation of a ledger entry
type LedgerEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	TenantID    *uuid.UUID `json:"tenant_id,omitempty"`
	AmountCents int64      `json:"amount_cents"`
	Memo        string     `json:"memo,omitempty"`
	Reference   string     `json:"reference"`
	CreatedAt   time.Time  `json:"created_at"`
}

// LedgerEntries returns the entries posted for one provider invoice
func (h *BillingHandler) LedgerEntries(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		h.BadRequest(c, "reference query parameter is required")
		return
	}

	entries, err := h.ledgerService.EntriesForInvoice(c.Request.Context(), reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = LedgerEntryResponse{
			ID:          e.ID,
			AccountID:   e.AccountID,
			TenantID:    e.TenantID,
			AmountCents: e.AmountCents,
			Memo:        e.Memo,
			Reference:   e.Reference,
			CreatedAt:   e.CreatedAt,
		}
	}
	h.Success(c, items)
}
