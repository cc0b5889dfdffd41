package billing

import (
	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
)

// AccountType classifies a ledger account
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Canonical accounts used for invoice payments. Codes follow the
// platform chart of accounts.
const (
	AccountCodeCash    = "1000"
	AccountCodeRevenue = "4000"
)

// LedgerAccount is a lazily created singleton-per-code account
type LedgerAccount struct {
	shared.BaseEntity
	Code string
	Name string
	Type AccountType
}

// NewLedgerAccount creates a ledger account
func NewLedgerAccount(code, name string, accountType AccountType) (*LedgerAccount, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account code is required")
	}
	switch accountType {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeRevenue, AccountTypeExpense:
	default:
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Invalid account type")
	}
	return &LedgerAccount{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Type:       accountType,
	}, nil
}

// LedgerEntry is a single signed posting against an account.
//
// Sign convention: debits are stored positive, credits negative. Asset and
// expense accounts carry their natural balance as a positive sum; revenue
// and liability accounts as a negative sum. Every business event posts a
// matched set tagged with the same Reference, and the set sums to zero.
type LedgerEntry struct {
	shared.BaseEntity
	AccountID   uuid.UUID
	TenantID    *uuid.UUID
	AmountCents int64
	Memo        string
	Reference   string
}

// NewInvoicePaymentEntries builds the balanced pair for a paid invoice:
// a debit against cash and a credit against revenue, both tagged with the
// provider invoice ID so the posting can be detected on re-delivery.
func NewInvoicePaymentEntries(cashAccountID, revenueAccountID uuid.UUID, tenantID *uuid.UUID, amountCents int64, providerInvoiceID string) ([]LedgerEntry, error) {
	if amountCents <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if providerInvoiceID == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Provider invoice ID is required")
	}
	memo := "Invoice " + providerInvoiceID
	return []LedgerEntry{
		{
			BaseEntity:  shared.NewBaseEntity(),
			AccountID:   cashAccountID,
			TenantID:    tenantID,
			AmountCents: amountCents,
			Memo:        memo,
			Reference:   providerInvoiceID,
		},
		{
			BaseEntity:  shared.NewBaseEntity(),
			AccountID:   revenueAccountID,
			TenantID:    tenantID,
			AmountCents: -amountCents,
			Memo:        memo,
			Reference:   providerInvoiceID,
		},
	}, nil
}

// BalanceEntries sums a set of entries; a balanced set sums to zero
func BalanceEntries(entries []LedgerEntry) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.AmountCents
	}
	return sum
}
