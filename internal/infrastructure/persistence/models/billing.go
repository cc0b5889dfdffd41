package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
)

// InvoiceModel is the persistence model for provider invoices
type InvoiceModel struct {
	BaseModel
	TenantID          *uuid.UUID `gorm:"type:uuid;index"`
	ProviderInvoiceID string     `gorm:"size:255;not null;uniqueIndex"`
	AmountCents       int64      `gorm:"not null"`
	Currency          string     `gorm:"size:3;not null"`
	Status            string     `gorm:"size:20;not null;index"`
	IssuedAt          *time.Time
	DueAt             *time.Time
	PaidAt            *time.Time
}

// TableName returns the table name
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the model to a domain invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseEntity:        m.BaseModel.ToDomain(),
		TenantID:          m.TenantID,
		ProviderInvoiceID: m.ProviderInvoiceID,
		AmountCents:       m.AmountCents,
		Currency:          m.Currency,
		Status:            billing.InvoiceStatus(m.Status),
		IssuedAt:          m.IssuedAt,
		DueAt:             m.DueAt,
		PaidAt:            m.PaidAt,
	}
}

// FromDomain populates the model from a domain invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.TenantID = inv.TenantID
	m.ProviderInvoiceID = inv.ProviderInvoiceID
	m.AmountCents = inv.AmountCents
	m.Currency = inv.Currency
	m.Status = string(inv.Status)
	m.IssuedAt = inv.IssuedAt
	m.DueAt = inv.DueAt
	m.PaidAt = inv.PaidAt
}

// LedgerAccountModel is the persistence model for ledger accounts
type LedgerAccountModel struct {
	BaseModel
	Code string `gorm:"size:20;not null;uniqueIndex"`
	Name string `gorm:"size:200;not null"`
	Type string `gorm:"size:20;not null"`
}

// TableName returns the table name
func (LedgerAccountModel) TableName() string {
	return "ledger_accounts"
}

// ToDomain converts the model to a domain ledger account
func (m *LedgerAccountModel) ToDomain() *billing.LedgerAccount {
	return &billing.LedgerAccount{
		BaseEntity: m.BaseModel.ToDomain(),
		Code:       m.Code,
		Name:       m.Name,
		Type:       billing.AccountType(m.Type),
	}
}

// FromDomain populates the model from a domain ledger account
func (m *LedgerAccountModel) FromDomain(a *billing.LedgerAccount) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Code = a.Code
	m.Name = a.Name
	m.Type = string(a.Type)
}

// LedgerEntryModel is the persistence model for ledger entries. Entries are
// append-only; there is no update path.
type LedgerEntryModel struct {
	BaseModel
	AccountID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_reference_account"`
	TenantID    *uuid.UUID `gorm:"type:uuid;index"`
	AmountCents int64      `gorm:"not null"`
	Memo        string     `gorm:"size:500"`
	Reference   string     `gorm:"size:255;not null;uniqueIndex:idx_ledger_entries_reference_account"`
}

// TableName returns the table name
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the model to a domain ledger entry
func (m *LedgerEntryModel) ToDomain() billing.LedgerEntry {
	return billing.LedgerEntry{
		BaseEntity:  m.BaseModel.ToDomain(),
		AccountID:   m.AccountID,
		TenantID:    m.TenantID,
		AmountCents: m.AmountCents,
		Memo:        m.Memo,
		Reference:   m.Reference,
	}
}

// FromDomain populates the model from a domain ledger entry
func (m *LedgerEntryModel) FromDomain(e billing.LedgerEntry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.AccountID = e.AccountID
	m.TenantID = e.TenantID
	m.AmountCents = e.AmountCents
	m.Memo = e.Memo
	m.Reference = e.Reference
}
