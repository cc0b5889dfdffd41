package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusOpen          InvoiceStatus = "open"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusVoid          InvoiceStatus = "void"
	InvoiceStatusUncollectible InvoiceStatus = "uncollectible"
)

// Invoice mirrors a payment-provider invoice. ProviderInvoiceID uniquely
// identifies the source event; re-delivery of the same provider event must
// not create a duplicate row.
type Invoice struct {
	shared.BaseEntity
	TenantID          *uuid.UUID
	ProviderInvoiceID string
	AmountCents       int64
	Currency          string
	Status            InvoiceStatus
	IssuedAt          *time.Time
	DueAt             *time.Time
	PaidAt            *time.Time
}

// NewInvoice creates an invoice from a provider event
func NewInvoice(providerInvoiceID string, tenantID *uuid.UUID, amountCents int64, currency string, status InvoiceStatus) (*Invoice, error) {
	if providerInvoiceID == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Provider invoice ID is required")
	}
	if amountCents < 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice amount cannot be negative")
	}
	if currency == "" {
		currency = "BRL"
	}
	if status == "" {
		status = InvoiceStatusOpen
	}
	return &Invoice{
		BaseEntity:        shared.NewBaseEntity(),
		TenantID:          tenantID,
		ProviderInvoiceID: providerInvoiceID,
		AmountCents:       amountCents,
		Currency:          currency,
		Status:            status,
	}, nil
}

// MarkPaid transitions the invoice to paid. Returns false when the invoice
// was already paid, so callers can skip re-posting ledger entries on
// webhook re-delivery.
func (i *Invoice) MarkPaid(at time.Time) bool {
	if i.Status == InvoiceStatusPaid {
		return false
	}
	i.Status = InvoiceStatusPaid
	i.PaidAt = &at
	i.Touch()
	return true
}

// IsPaid returns true if the invoice has been paid
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsOverdue reports whether the invoice is still open past its due date.
// Invoices without a due date never go overdue.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == InvoiceStatusOpen && i.DueAt != nil && i.DueAt.Before(now)
}
